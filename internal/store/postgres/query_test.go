package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func TestListQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	q := newListQuery(`SELECT id FROM verdicts WHERE market_id = $1`, "m1").
		window("created_at", domain.ListOpts{Since: &since, Until: &until}).
		page("created_at DESC", domain.ListOpts{Limit: 10, Offset: 20})

	assert.Equal(t,
		`SELECT id FROM verdicts WHERE market_id = $1 AND created_at >= $2 AND created_at <= $3 ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		q.String())
	assert.Equal(t, []any{"m1", since, until, 10, 20}, q.Args())
}

func TestListQueryNoBounds(t *testing.T) {
	q := newListQuery(`SELECT id FROM audit_log WHERE 1=1`).
		window("created_at", domain.ListOpts{}).
		page("created_at DESC", domain.ListOpts{})

	assert.Equal(t, `SELECT id FROM audit_log WHERE 1=1 ORDER BY created_at DESC`, q.String())
	assert.Empty(t, q.Args())
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/polyedge?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "polyedge"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestMigrationFilesOrdered(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_edge_analyses.sql", "002_verdicts.sql", "003_audit_log.sql"}, names)
}
