package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/intent"
)

// BoardSource serves the scanner's in-memory results.
type BoardSource interface {
	Board() domain.EdgeBoard
	Snapshot(marketID string) (domain.MarketSnapshot, bool)
	Snapshots() []domain.MarketSnapshot
}

// MarketService answers market and edge queries from the scanner's memory,
// falling back to the shared snapshot cache so API replicas that do not scan
// can still serve.
type MarketService struct {
	board  BoardSource
	cache  domain.SnapshotCache
	logger *slog.Logger
}

// NewMarketService creates a MarketService. Either board or cache may be nil,
// not both.
func NewMarketService(board BoardSource, cache domain.SnapshotCache, logger *slog.Logger) *MarketService {
	return &MarketService{
		board:  board,
		cache:  cache,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// Board returns the current top edges.
func (s *MarketService) Board(ctx context.Context) (domain.EdgeBoard, error) {
	if s.board != nil {
		if b := s.board.Board(); b.Cycle > 0 {
			return b, nil
		}
	}
	if s.cache != nil {
		b, err := s.cache.GetBoard(ctx)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "board cache read failed", slog.String("error", err.Error()))
		}
	}
	return domain.EdgeBoard{Edges: []domain.MarketSnapshot{}}, nil
}

// Markets returns every market scored in the latest cycle.
func (s *MarketService) Markets(_ context.Context) []domain.MarketSnapshot {
	if s.board == nil {
		return []domain.MarketSnapshot{}
	}
	return s.board.Snapshots()
}

// Market returns the latest snapshot of one market or domain.ErrNotFound.
func (s *MarketService) Market(ctx context.Context, id string) (domain.MarketSnapshot, error) {
	if s.board != nil {
		if snap, ok := s.board.Snapshot(id); ok {
			return snap, nil
		}
	}
	if s.cache != nil {
		snap, err := s.cache.GetSnapshot(ctx, id)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.MarketSnapshot{}, fmt.Errorf("market_service: get %s: %w", id, err)
		}
	}
	return domain.MarketSnapshot{}, fmt.Errorf("market_service: get %s: %w", id, domain.ErrNotFound)
}

// Intent renders the copy-trade instruction for a market's current edge.
func (s *MarketService) Intent(ctx context.Context, id string, sizeUSD float64) (domain.ExecutionIntent, error) {
	snap, err := s.Market(ctx, id)
	if err != nil {
		return domain.ExecutionIntent{}, err
	}
	in, err := intent.Build(snap.Market, snap.Analysis, sizeUSD)
	if err != nil {
		return domain.ExecutionIntent{}, fmt.Errorf("market_service: intent %s: %w", id, err)
	}
	return in, nil
}
