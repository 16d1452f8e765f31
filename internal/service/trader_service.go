package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/feed"
)

// Profiler writes a free-text profile of a trader. It never fails.
type Profiler interface {
	Profile(ctx context.Context, t domain.Trader) string
}

// TraderService exposes the tracked leaderboard and whale profiles.
type TraderService struct {
	profiler Profiler
}

func NewTraderService(profiler Profiler) *TraderService {
	return &TraderService{profiler: profiler}
}

func (s *TraderService) Leaderboard() []domain.Trader {
	return feed.Leaderboard()
}

// Profile returns the trader at rank with its generated profile text.
func (s *TraderService) Profile(ctx context.Context, rank int) (domain.Trader, string, error) {
	t, ok := feed.TraderByRank(rank)
	if !ok {
		return domain.Trader{}, "", fmt.Errorf("trader_service: rank %d: %w", rank, domain.ErrNotFound)
	}
	return t, s.profiler.Profile(ctx, t), nil
}
