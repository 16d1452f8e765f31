package feed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// seed describes one of the fixed demo markets and the band its synthetic
// history is drawn from.
type seed struct {
	market    domain.Market
	histFloor float64
	histSpan  float64
}

var seeds = []seed{
	{
		market: domain.Market{
			ID: "m1", Question: "Will Bitcoin hit $100k by Jan 1?", Outcome: "Yes",
			Price: 0.38, Volume24h: 1_250_000, Liquidity: 75_000, FundingRate: -0.012,
			WhaleCount15m: 3, CopyTraderCount20m: 14, RecentWhaleAction: domain.WhaleActionBuyYes,
		},
		histFloor: 0.35, histSpan: 0.05,
	},
	{
		market: domain.Market{
			ID: "m2", Question: "Fed Interest Rate Cut in March?", Outcome: "No",
			Price: 0.78, Volume24h: 45_000, Liquidity: 120_000, FundingRate: 0.09,
			WhaleCount15m: 1, CopyTraderCount20m: 4, RecentWhaleAction: domain.WhaleActionBuyNo,
		},
		histFloor: 0.76, histSpan: 0.03,
	},
	{
		market: domain.Market{
			ID: "m3", Question: "GPT-5 Release before Q3?", Outcome: "Yes",
			Price: 0.12, Volume24h: 500_000, Liquidity: 200_000, FundingRate: 0.005,
			WhaleCount15m: 0, CopyTraderCount20m: 2, RecentWhaleAction: domain.WhaleActionNeutral,
		},
		histFloor: 0.11, histSpan: 0.02,
	},
	{
		market: domain.Market{
			ID: "m4", Question: "Solana flip ETH market cap in 2025?", Outcome: "Yes",
			Price: 0.22, Volume24h: 890_000, Liquidity: 45_000, FundingRate: -0.02,
			WhaleCount15m: 4, CopyTraderCount20m: 25, RecentWhaleAction: domain.WhaleActionBuyYes,
		},
		histFloor: 0.2, histSpan: 0.06,
	},
	{
		market: domain.Market{
			ID: "m5", Question: "US Ban TikTok by April?", Outcome: "Yes",
			Price: 0.65, Volume24h: 320_000, Liquidity: 150_000, FundingRate: 0.01,
			WhaleCount15m: 0, CopyTraderCount20m: 1, RecentWhaleAction: domain.WhaleActionNeutral,
		},
		histFloor: 0.64, histSpan: 0.02,
	},
}

// Simulated serves the five fixed demo markets with freshly jittered price
// history on every call. With a seeded rng the output is reproducible.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

var _ Source = (*Simulated)(nil)

func NewSimulated(rng *rand.Rand, now func() time.Time) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Simulated{rng: rng, now: now}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Markets(_ context.Context) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	observed := s.now().UTC()
	out := make([]domain.Market, len(seeds))
	for i, sd := range seeds {
		m := sd.market
		m.ObservedAt = observed
		m.History = make([]domain.PricePoint, domain.HistoryLength)
		for j := range m.History {
			m.History[j] = domain.PricePoint{
				Time:  historyLabel(j),
				Price: clampPrice(sd.histFloor + s.rng.Float64()*sd.histSpan),
			}
		}
		out[i] = m
	}
	return out, nil
}

// Seeds returns the demo markets without history. Used for lookups that must
// not consume randomness.
func Seeds() []domain.Market {
	out := make([]domain.Market, len(seeds))
	for i, sd := range seeds {
		out[i] = sd.market
	}
	return out
}

func historyLabel(i int) string {
	return fmt.Sprintf("%dm", i)
}

func clampPrice(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
