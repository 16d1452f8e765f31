package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// VerdictStore implements domain.VerdictStore using PostgreSQL.
type VerdictStore struct {
	pool *pgxpool.Pool
}

func NewVerdictStore(pool *pgxpool.Pool) *VerdictStore {
	return &VerdictStore{pool: pool}
}

const verdictSelectCols = `id, market_id, score, direction, conviction, reasoning,
	target_price, stop_loss, confidence_score, providers, fallback, created_at`

func (s *VerdictStore) Insert(ctx context.Context, v domain.ConsensusVerdict) error {
	const query = `
		INSERT INTO verdicts (
			id, market_id, score, direction, conviction, reasoning,
			target_price, stop_loss, confidence_score, providers, fallback, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, query,
		v.ID, v.MarketID, v.Score, string(v.Direction), string(v.Conviction), nonNil(v.Reasoning),
		v.TargetPrice, v.StopLoss, v.ConfidenceScore, nonNil(v.Providers), v.Fallback, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert verdict %s: %w", v.ID, err)
	}
	return nil
}

// GetByID returns domain.ErrNotFound when no verdict has the id.
func (s *VerdictStore) GetByID(ctx context.Context, id string) (domain.ConsensusVerdict, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+verdictSelectCols+` FROM verdicts WHERE id = $1`, id)
	if err != nil {
		return domain.ConsensusVerdict{}, fmt.Errorf("postgres: get verdict %s: %w", id, err)
	}
	defer rows.Close()

	v, err := pgx.CollectExactlyOneRow(rows, scanVerdict)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConsensusVerdict{}, fmt.Errorf("postgres: get verdict %s: %w", id, domain.ErrNotFound)
		}
		return domain.ConsensusVerdict{}, fmt.Errorf("postgres: get verdict %s: %w", id, err)
	}
	return v, nil
}

// ListRecent returns the newest verdicts across all markets.
func (s *VerdictStore) ListRecent(ctx context.Context, limit int) ([]domain.ConsensusVerdict, error) {
	q := newListQuery(`SELECT ` + verdictSelectCols + ` FROM verdicts WHERE 1=1`).
		page("created_at DESC", domain.ListOpts{Limit: limit})
	return s.query(ctx, "list recent verdicts", q)
}

func (s *VerdictStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.ConsensusVerdict, error) {
	q := newListQuery(`SELECT `+verdictSelectCols+` FROM verdicts WHERE market_id = $1`, marketID).
		window("created_at", opts).
		page("created_at DESC", opts)
	return s.query(ctx, "list verdicts "+marketID, q)
}

// ListBefore returns up to limit verdicts created before the cutoff, oldest
// first.
func (s *VerdictStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ConsensusVerdict, error) {
	q := newListQuery(`SELECT `+verdictSelectCols+` FROM verdicts WHERE created_at < $1`, before).
		page("created_at ASC", domain.ListOpts{Limit: limit})
	return s.query(ctx, "list verdicts before", q)
}

func (s *VerdictStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM verdicts WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete verdicts before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *VerdictStore) query(ctx context.Context, op string, q *listQuery) ([]domain.ConsensusVerdict, error) {
	rows, err := s.pool.Query(ctx, q.String(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	verdicts, err := pgx.CollectRows(rows, scanVerdict)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	return verdicts, nil
}

func scanVerdict(row pgx.CollectableRow) (domain.ConsensusVerdict, error) {
	var (
		v          domain.ConsensusVerdict
		direction  string
		conviction string
	)
	err := row.Scan(
		&v.ID, &v.MarketID, &v.Score, &direction, &conviction, &v.Reasoning,
		&v.TargetPrice, &v.StopLoss, &v.ConfidenceScore, &v.Providers, &v.Fallback, &v.CreatedAt,
	)
	v.Direction = domain.Direction(direction)
	v.Conviction = domain.Conviction(conviction)
	return v, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Compile-time interface check.
var _ domain.VerdictStore = (*VerdictStore)(nil)
