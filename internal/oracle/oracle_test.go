package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

type fakeProvider struct {
	name  string
	text  string
	err   error
	panic bool
	block bool

	mu      sync.Mutex
	prompts []Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req)
	f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

type countingRecorder struct {
	mu        sync.Mutex
	outcomes  map[string]string
	fallbacks int
	consults  int
}

func (r *countingRecorder) ObserveProvider(provider, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]string)
	}
	r.outcomes[provider] = outcome
}

func (r *countingRecorder) ObserveConsult(fallback bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consults++
	if fallback {
		r.fallbacks++
	}
}

var (
	testMarket = domain.Market{
		ID: "m1", Question: "Will Bitcoin hit $100k by Jan 1?", Price: 0.38,
		Volume24h: 1_250_000, Liquidity: 75_000, FundingRate: -0.012,
		WhaleCount15m: 3, CopyTraderCount20m: 14, RecentWhaleAction: domain.WhaleActionBuyYes,
	}
	testAnalysis = domain.EdgeAnalysis{
		MarketID: "m1", Score: 10, Direction: domain.DirectionYes,
		Tags: []string{domain.TagLiquiditySqueeze, domain.TagWhaleCluster, domain.TagCopyCluster},
	}
)

func TestNewRequiresProviders(t *testing.T) {
	o, err := New(nil)
	require.Error(t, err)
	assert.Nil(t, o)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	var empty *Oracle
	_, err = empty.Consult(context.Background(), testMarket, testAnalysis)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestConsultAgreeingProviders(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &fakeProvider{name: "anthropic", text: `{"score":9,"direction":"YES","reasoning":["whales loading"],"targetPrice":0.55}`}
	g := &fakeProvider{name: "gemini", text: "```json\n{\"score\":8,\"direction\":\"YES\",\"reasoning\":[\"whales loading\",\"cheap funding\"],\"stopLoss\":0.3}\n```"}

	o, err := New([]Provider{a, g}, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	v, err := o.Consult(context.Background(), testMarket, testAnalysis)
	require.NoError(t, err)

	assert.Equal(t, "m1", v.MarketID)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, fixed, v.CreatedAt)
	assert.InDelta(t, 8.5, v.Score, 1e-9)
	assert.Equal(t, domain.DirectionYes, v.Direction)
	assert.Equal(t, domain.ConvictionHigh, v.Conviction)
	assert.Equal(t, 100, v.ConfidenceScore)
	assert.Equal(t, []string{"whales loading", "cheap funding"}, v.Reasoning)
	require.NotNil(t, v.TargetPrice)
	assert.InDelta(t, 0.55, *v.TargetPrice, 1e-9)
	require.NotNil(t, v.StopLoss)
	assert.InDelta(t, 0.3, *v.StopLoss, 1e-9)
	assert.Equal(t, []string{"anthropic", "gemini"}, v.Providers)
	assert.False(t, v.Fallback)
}

func TestConsultEveryProviderSeesTheSameContext(t *testing.T) {
	a := &fakeProvider{name: "a", text: `{"score":5}`}
	b := &fakeProvider{name: "b", text: `{"score":6}`}
	o, err := New([]Provider{a, b})
	require.NoError(t, err)

	_, err = o.Consult(context.Background(), testMarket, testAnalysis)
	require.NoError(t, err)

	require.Len(t, a.prompts, 1)
	require.Len(t, b.prompts, 1)
	assert.Equal(t, a.prompts[0], b.prompts[0])
	assert.True(t, a.prompts[0].JSON)
	assert.Equal(t, BuildContext(testMarket, testAnalysis), a.prompts[0].Prompt)
}

func TestConsultAllProvidersFail(t *testing.T) {
	rec := &countingRecorder{}
	o, err := New([]Provider{
		&fakeProvider{name: "down", err: errors.New("503")},
		&fakeProvider{name: "garbled", text: "I think YES!"},
		&fakeProvider{name: "empty", text: "{}"},
	}, WithRecorder(rec))
	require.NoError(t, err)

	a := testAnalysis
	a.Direction = domain.DirectionShadowWhale
	a.Score = 7.25

	v, err := o.Consult(context.Background(), testMarket, a)
	require.NoError(t, err)

	assert.True(t, v.Fallback)
	assert.Equal(t, domain.ConvictionLow, v.Conviction)
	assert.Equal(t, 0, v.ConfidenceScore)
	assert.Equal(t, domain.DirectionNo, v.Direction)
	assert.InDelta(t, 7.3, v.Score, 1e-9)
	require.NotEmpty(t, v.Reasoning)
	assert.Equal(t, FallbackReason, v.Reasoning[0])
	assert.Equal(t, a.Tags, v.Reasoning[1:])
	assert.Equal(t, "m1", v.MarketID)

	assert.Equal(t, 1, rec.fallbacks)
	assert.Equal(t, OutcomeError, rec.outcomes["down"])
	assert.Equal(t, OutcomeMalformed, rec.outcomes["garbled"])
	assert.Equal(t, OutcomeMalformed, rec.outcomes["empty"])
}

func TestConsultIsolatesFailures(t *testing.T) {
	o, err := New([]Provider{
		&fakeProvider{name: "panics", panic: true},
		&fakeProvider{name: "slow", block: true},
		&fakeProvider{name: "ok", text: `{"score":7.5,"direction":"no"}`},
	}, WithProviderTimeout(20*time.Millisecond))
	require.NoError(t, err)

	v, err := o.Consult(context.Background(), testMarket, testAnalysis)
	require.NoError(t, err)

	assert.False(t, v.Fallback)
	assert.Equal(t, []string{"ok"}, v.Providers)
	assert.Equal(t, domain.DirectionNo, v.Direction)
	assert.Equal(t, domain.ConvictionMedium, v.Conviction)
	assert.Equal(t, 100, v.ConfidenceScore)
}

type barrierProvider struct {
	name    string
	started *atomic.Int32
	total   int32
}

func (b *barrierProvider) Name() string { return b.name }

func (b *barrierProvider) Complete(ctx context.Context, _ Request) (string, error) {
	b.started.Add(1)
	deadline := time.After(2 * time.Second)
	for b.started.Load() < b.total {
		select {
		case <-deadline:
			return "", errors.New("providers were not called concurrently")
		case <-time.After(time.Millisecond):
		}
	}
	return `{"score":8,"direction":"YES"}`, nil
}

func TestConsultRunsProvidersConcurrently(t *testing.T) {
	var started atomic.Int32
	providers := make([]Provider, 3)
	for i := range providers {
		providers[i] = &barrierProvider{name: string(rune('a' + i)), started: &started, total: 3}
	}
	o, err := New(providers)
	require.NoError(t, err)

	v, err := o.Consult(context.Background(), testMarket, testAnalysis)
	require.NoError(t, err)
	assert.False(t, v.Fallback)
	assert.Len(t, v.Providers, 3)
}

func TestCollectKeepsConfigurationOrder(t *testing.T) {
	o, err := New([]Provider{
		&fakeProvider{name: "first", text: `{"score":1}`},
		&fakeProvider{name: "second", err: errors.New("down")},
		&fakeProvider{name: "third", text: `{"score":3}`},
	})
	require.NoError(t, err)

	results := o.Collect(context.Background(), "prompt")
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Provider)
	assert.True(t, results[0].OK())
	assert.Equal(t, "second", results[1].Provider)
	assert.ErrorIs(t, results[1].Err, domain.ErrProvider)
	assert.Equal(t, "third", results[2].Provider)
	assert.Equal(t, []string{"first", "second", "third"}, o.Providers())
}
