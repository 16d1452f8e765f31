package feed

import (
	"sync"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// HistoryTracker keeps a rolling window of observed prices per market so the
// live feed can attach real history to each snapshot.
type HistoryTracker struct {
	size    int
	history map[string][]float64
	mu      sync.RWMutex
}

// NewHistoryTracker keeps at most size samples per market.
func NewHistoryTracker(size int) *HistoryTracker {
	if size <= 0 {
		size = domain.HistoryLength
	}
	return &HistoryTracker{size: size, history: make(map[string][]float64)}
}

// Track appends a price observation and drops samples beyond the window.
func (t *HistoryTracker) Track(marketID string, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pts := append(t.history[marketID], price)
	if len(pts) > t.size {
		pts = pts[len(pts)-t.size:]
	}
	t.history[marketID] = pts
}

// History returns the window oldest first, labelled by minutes ago from
// oldest. The returned slice is safe to mutate.
func (t *HistoryTracker) History(marketID string) []domain.PricePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	src := t.history[marketID]
	out := make([]domain.PricePoint, len(src))
	for i, p := range src {
		out[i] = domain.PricePoint{Time: historyLabel(i), Price: p}
	}
	return out
}

// Retain forgets every market not in ids, bounding memory as markets close.
func (t *HistoryTracker) Retain(ids map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := range t.history {
		if _, ok := ids[id]; !ok {
			delete(t.history, id)
		}
	}
}

// Len returns the number of tracked markets.
func (t *HistoryTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.history)
}
