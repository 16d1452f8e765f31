package feed

import (
	"math/rand"
	"sync"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Enricher fills in the flow metrics the market listing does not carry:
// funding rate, whale and copy-trader counts, and the latest whale action.
type Enricher interface {
	Enrich(m *domain.Market)
}

// RandomEnricher draws the flow metrics from the same ranges the dashboard
// used while no flow data provider is wired.
type RandomEnricher struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomEnricher(rng *rand.Rand) *RandomEnricher {
	return &RandomEnricher{rng: rng}
}

var enrichActions = []domain.WhaleAction{
	domain.WhaleActionBuyYes,
	domain.WhaleActionBuyNo,
	domain.WhaleActionNeutral,
}

func (e *RandomEnricher) Enrich(m *domain.Market) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m.FundingRate = (e.rng.Float64() - 0.5) * 0.08
	m.WhaleCount15m = e.rng.Intn(8)
	m.CopyTraderCount20m = e.rng.Intn(60)
	m.RecentWhaleAction = enrichActions[e.rng.Intn(len(enrichActions))]
}
