package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/platform/polymarket"
)

// MarketLister is the part of the Gamma client the live feed needs.
type MarketLister interface {
	ListMarkets(ctx context.Context, q polymarket.MarketQuery) ([]polymarket.APIMarket, error)
}

// Gamma is the live feed: active Polymarket markets with enriched flow
// metrics and tracked price history.
type Gamma struct {
	client   MarketLister
	enricher Enricher
	history  *HistoryTracker
	limit    int
	now      func() time.Time

	limiter    domain.RateLimiter
	rateLimit  int
	rateWindow time.Duration
	logger     *slog.Logger
}

// gammaRateKey is shared by every scanner process using the same Redis.
const gammaRateKey = "gamma:markets"

var _ Source = (*Gamma)(nil)

func NewGamma(client MarketLister, enricher Enricher, history *HistoryTracker, limit int) *Gamma {
	if limit <= 0 {
		limit = 200
	}
	if history == nil {
		history = NewHistoryTracker(domain.HistoryLength)
	}
	return &Gamma{client: client, enricher: enricher, history: history, limit: limit, now: time.Now}
}

// Throttle makes each fetch wait for a slot in a limit-per-window budget
// held by l. A limiter error other than cancellation lets the fetch proceed.
func (g *Gamma) Throttle(l domain.RateLimiter, limit int, window time.Duration, logger *slog.Logger) *Gamma {
	g.limiter, g.rateLimit, g.rateWindow = l, limit, window
	g.logger = logger.With(slog.String("component", "gamma_feed"))
	return g
}

func (g *Gamma) Name() string { return "gamma" }

func (g *Gamma) Markets(ctx context.Context) ([]domain.Market, error) {
	if g.limiter != nil && g.rateLimit > 0 {
		if err := g.limiter.Wait(ctx, gammaRateKey, g.rateLimit, g.rateWindow); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("feed: gamma: %w", err)
			}
			g.logger.WarnContext(ctx, "gamma rate limiter unavailable, fetching anyway",
				slog.String("error", err.Error()),
			)
		}
	}

	listed, err := g.client.ListMarkets(ctx, polymarket.MarketQuery{ActiveOnly: true, Limit: g.limit})
	if err != nil {
		return nil, fmt.Errorf("feed: gamma: %w", err)
	}

	observed := g.now().UTC()
	seen := make(map[string]struct{}, len(listed))
	out := make([]domain.Market, 0, len(listed))
	for i := range listed {
		api := &listed[i]
		if !api.Tradable() || api.ID == "" {
			continue
		}
		m := api.ToDomainMarket(observed)
		if g.enricher != nil {
			g.enricher.Enrich(&m)
		}
		g.history.Track(m.ID, m.Price)
		m.History = g.history.History(m.ID)
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	g.history.Retain(seen)
	return out, nil
}
