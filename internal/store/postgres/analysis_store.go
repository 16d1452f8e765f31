package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// AnalysisStore implements domain.AnalysisStore. Each scan cycle appends one
// row per scored market; price history is not persisted.
type AnalysisStore struct {
	pool *pgxpool.Pool
}

func NewAnalysisStore(pool *pgxpool.Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

const analysisSelectCols = `market_id, question, price, volume_24h, liquidity,
	funding_rate, whale_count_15m, copy_trader_count_20m, recent_whale_action,
	score, direction, tags, reward_risk, observed_at`

// InsertBatch writes all snapshots of a cycle in one pgx batch.
func (s *AnalysisStore) InsertBatch(ctx context.Context, snaps []domain.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	const query = `
		INSERT INTO edge_analyses (
			market_id, question, price, volume_24h, liquidity,
			funding_rate, whale_count_15m, copy_trader_count_20m, recent_whale_action,
			score, direction, tags, reward_risk, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		m, a := snap.Market, snap.Analysis
		observed := m.ObservedAt
		if observed.IsZero() {
			observed = time.Now().UTC()
		}
		tags := a.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(query,
			m.ID, m.Question, m.Price, m.Volume24h, m.Liquidity,
			m.FundingRate, m.WhaleCount15m, m.CopyTraderCount20m, string(m.RecentWhaleAction),
			a.Score, string(a.Direction), tags, a.RewardRisk, observed,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert analysis %s: %w", snaps[i].Market.ID, err)
		}
	}
	return nil
}

// ListByMarket returns the analysis history of one market, newest first.
func (s *AnalysisStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.MarketSnapshot, error) {
	q := newListQuery(`SELECT `+analysisSelectCols+` FROM edge_analyses WHERE market_id = $1`, marketID).
		window("observed_at", opts).
		page("observed_at DESC", opts)

	rows, err := s.pool.Query(ctx, q.String(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list analyses %s: %w", marketID, err)
	}
	defer rows.Close()

	snaps, err := scanAnalysisRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan analyses %s: %w", marketID, err)
	}
	return snaps, nil
}

// ListBefore returns up to limit rows observed before the cutoff, oldest
// first, for archival.
func (s *AnalysisStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.MarketSnapshot, error) {
	const query = `SELECT ` + analysisSelectCols + ` FROM edge_analyses
		WHERE observed_at < $1 ORDER BY observed_at ASC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list analyses before: %w", err)
	}
	defer rows.Close()

	snaps, err := scanAnalysisRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan analyses before: %w", err)
	}
	return snaps, nil
}

// DeleteBefore removes rows observed before the cutoff.
func (s *AnalysisStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM edge_analyses WHERE observed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete analyses before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAnalysisRows(rows pgx.Rows) ([]domain.MarketSnapshot, error) {
	var snaps []domain.MarketSnapshot
	for rows.Next() {
		var (
			m         domain.Market
			a         domain.EdgeAnalysis
			action    string
			direction string
		)
		if err := rows.Scan(
			&m.ID, &m.Question, &m.Price, &m.Volume24h, &m.Liquidity,
			&m.FundingRate, &m.WhaleCount15m, &m.CopyTraderCount20m, &action,
			&a.Score, &direction, &a.Tags, &a.RewardRisk, &m.ObservedAt,
		); err != nil {
			return nil, err
		}
		m.RecentWhaleAction = domain.WhaleAction(action)
		a.MarketID = m.ID
		a.Direction = domain.Direction(direction)
		snaps = append(snaps, domain.MarketSnapshot{Market: m, Analysis: a})
	}
	return snaps, rows.Err()
}

// Compile-time interface check.
var _ domain.AnalysisStore = (*AnalysisStore)(nil)
