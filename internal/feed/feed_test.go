package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/edge"
	"github.com/alanyoungcy/polyedge/internal/platform/polymarket"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedClock() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

func TestSimulatedIsDeterministicWithSeed(t *testing.T) {
	a, err := NewSimulated(rand.New(rand.NewSource(42)), fixedClock).Markets(context.Background())
	require.NoError(t, err)
	b, err := NewSimulated(rand.New(rand.NewSource(42)), fixedClock).Markets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	require.Len(t, a, 5)
	for _, m := range a {
		require.NoError(t, Validate(m))
		assert.Len(t, m.History, domain.HistoryLength)
		assert.Equal(t, "0m", m.History[0].Time)
		assert.Equal(t, "19m", m.History[19].Time)
		assert.Equal(t, fixedClock(), m.ObservedAt)
	}
	assert.Equal(t, "No", a[1].Outcome)
}

func TestSimulatedHistoryStaysInBand(t *testing.T) {
	markets, err := NewSimulated(rand.New(rand.NewSource(1)), fixedClock).Markets(context.Background())
	require.NoError(t, err)
	m1 := markets[0]
	for _, p := range m1.History {
		assert.GreaterOrEqual(t, p.Price, 0.35)
		assert.LessOrEqual(t, p.Price, 0.40)
	}
}

func TestSimulatedTopEdges(t *testing.T) {
	markets, err := NewSimulated(rand.New(rand.NewSource(3)), fixedClock).Markets(context.Background())
	require.NoError(t, err)

	top := edge.TopEdges(edge.ScoreAll(markets), edge.DefaultMinScore, edge.DefaultLimit)
	ids := make([]string, len(top))
	for i, s := range top {
		ids[i] = s.Market.ID
	}
	// m1 scores 10, m4 scores 10 (3+3+2+2 then copy bonus, clamped), m2 scores 8.
	assert.Equal(t, []string{"m1", "m4", "m2"}, ids)
}

func TestValidate(t *testing.T) {
	good := Seeds()[0]
	require.NoError(t, Validate(good))

	tests := []struct {
		name   string
		mutate func(m *domain.Market)
		field  string
	}{
		{"missing id", func(m *domain.Market) { m.ID = "" }, "Market.ID"},
		{"price above one", func(m *domain.Market) { m.Price = 1.2 }, "Market.Price"},
		{"negative price", func(m *domain.Market) { m.Price = -0.1 }, "Market.Price"},
		{"nan funding", func(m *domain.Market) { m.FundingRate = math.NaN() }, "Market.FundingRate"},
		{"infinite volume", func(m *domain.Market) { m.Volume24h = math.Inf(1) }, "Market.Volume24h"},
		{"negative liquidity", func(m *domain.Market) { m.Liquidity = -1 }, "Market.Liquidity"},
		{"negative whales", func(m *domain.Market) { m.WhaleCount15m = -1 }, "Market.WhaleCount15m"},
		{"unknown whale action", func(m *domain.Market) { m.RecentWhaleAction = "sell_no" }, "Market.RecentWhaleAction"},
		{"bad history sample", func(m *domain.Market) {
			m.History = []domain.PricePoint{{Time: "0m", Price: 2}}
		}, "Market.History[0].Price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := good
			tt.mutate(&m)
			err := Validate(m)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidMarket)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestPartition(t *testing.T) {
	seedsList := Seeds()
	bad := seedsList[2]
	bad.Price = 3
	in := []domain.Market{seedsList[0], bad, seedsList[1]}

	valid, errs := Partition(in)
	require.Len(t, valid, 2)
	assert.Equal(t, "m1", valid[0].ID)
	assert.Equal(t, "m2", valid[1].ID)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrInvalidMarket)
}

type stubLister struct {
	markets []polymarket.APIMarket
	err     error
}

func (s stubLister) ListMarkets(context.Context, polymarket.MarketQuery) ([]polymarket.APIMarket, error) {
	return s.markets, s.err
}

type fixedEnricher struct{}

func (fixedEnricher) Enrich(m *domain.Market) {
	m.WhaleCount15m = 2
	m.RecentWhaleAction = domain.WhaleActionBuyYes
}

func TestGammaFeed(t *testing.T) {
	lister := stubLister{markets: []polymarket.APIMarket{
		{ID: "a", Question: "A?", OutcomePrices: `["0.30","0.70"]`},
		{ID: "b", Question: "B?", Closed: true},
	}}
	lister.markets[0].Active = true

	tracker := NewHistoryTracker(3)
	g := NewGamma(lister, fixedEnricher{}, tracker, 0)

	for i := 0; i < 4; i++ {
		markets, err := g.Markets(context.Background())
		require.NoError(t, err)
		require.Len(t, markets, 1)
		m := markets[0]
		assert.Equal(t, "a", m.ID)
		assert.Equal(t, 2, m.WhaleCount15m)
		assert.Equal(t, domain.WhaleActionBuyYes, m.RecentWhaleAction)
		assert.Len(t, m.History, min(i+1, 3))
		require.NoError(t, Validate(m))
	}
	assert.Equal(t, 1, tracker.Len())
}

type recordingLimiter struct {
	calls []string
	err   error
}

func (l *recordingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (l *recordingLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	l.calls = append(l.calls, fmt.Sprintf("%s %d %s", key, limit, window))
	if l.err != nil {
		return l.err
	}
	return ctx.Err()
}

func TestGammaThrottle(t *testing.T) {
	lister := stubLister{markets: []polymarket.APIMarket{{ID: "a", Question: "A?", Active: true, OutcomePrices: `["0.30","0.70"]`}}}

	lim := &recordingLimiter{}
	g := NewGamma(lister, nil, nil, 0).Throttle(lim, 2, time.Minute, discard)
	_, err := g.Markets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma:markets 2 1m0s"}, lim.calls)

	// A broken limiter does not block the feed.
	lim.err = errors.New("redis down")
	markets, err := g.Markets(context.Background())
	require.NoError(t, err)
	assert.Len(t, markets, 1)

	lim.err = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Markets(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistoryTrackerRetain(t *testing.T) {
	tr := NewHistoryTracker(2)
	tr.Track("a", 0.1)
	tr.Track("a", 0.2)
	tr.Track("a", 0.3)
	tr.Track("b", 0.5)

	assert.Equal(t, []domain.PricePoint{{Time: "0m", Price: 0.2}, {Time: "1m", Price: 0.3}}, tr.History("a"))

	tr.Retain(map[string]struct{}{"b": {}})
	assert.Empty(t, tr.History("a"))
	assert.Equal(t, 1, tr.Len())
}

type failingSource struct{ err error }

func (f failingSource) Name() string { return "broken" }

func (f failingSource) Markets(context.Context) ([]domain.Market, error) {
	return nil, f.err
}

func TestFallback(t *testing.T) {
	sim := NewSimulated(rand.New(rand.NewSource(9)), fixedClock)

	fb := NewFallback(failingSource{err: errors.New("gamma down")}, sim, discard)
	markets, err := fb.Markets(context.Background())
	require.NoError(t, err)
	assert.Len(t, markets, 5)
	assert.Equal(t, "broken+simulated", fb.Name())

	empty := NewFallback(failingSource{}, sim, discard)
	markets, err = empty.Markets(context.Background())
	require.NoError(t, err)
	assert.Len(t, markets, 5)

	both := NewFallback(failingSource{err: errors.New("a")}, failingSource{err: errors.New("b")}, discard)
	_, err = both.Markets(context.Background())
	assert.Error(t, err)
}

func TestLeaderboard(t *testing.T) {
	lb := Leaderboard()
	require.Len(t, lb, 5)
	lb[0].Name = "mutated"

	tr, ok := TraderByRank(1)
	require.True(t, ok)
	assert.Equal(t, "0xWhale...8a92", tr.Name)

	_, ok = TraderByRank(99)
	assert.False(t, ok)
}
