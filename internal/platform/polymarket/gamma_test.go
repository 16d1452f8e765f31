package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

const marketsJSON = `[
  {"id":"101","question":"Will it rain?","active":true,"closed":false,
   "outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"0.27\",\"0.73\"]",
   "volume24hr":15234.5,"liquidityNum":41000,"liquidity":"41000.00"},
  {"id":"102","question":"","active":"true","closed":false,
   "outcomes":"","outcomePrices":"","volume24hr":"820","bestBid":0.61},
  {"id":"103","question":"Stale","active":false,"closed":true}
]`

func TestListMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketsJSON))
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL, srv.Client())
	got, err := c.ListMarkets(context.Background(), MarketQuery{ActiveOnly: true, Limit: 200})
	require.NoError(t, err)
	require.Len(t, got, 3)

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	m := got[0].ToDomainMarket(now)
	assert.Equal(t, "101", m.ID)
	assert.Equal(t, "Yes", m.Outcome)
	assert.InDelta(t, 0.27, m.Price, 1e-9)
	assert.InDelta(t, 15234.5, m.Volume24h, 1e-9)
	assert.InDelta(t, 41000, m.Liquidity, 1e-9)
	assert.Equal(t, domain.WhaleActionNeutral, m.RecentWhaleAction)
	assert.Equal(t, now, m.ObservedAt)
	assert.True(t, got[0].Tradable())

	m = got[1].ToDomainMarket(now)
	assert.Equal(t, "Unknown", m.Question)
	assert.InDelta(t, 0.61, m.Price, 1e-9)
	assert.InDelta(t, 820, m.Volume24h, 1e-9)
	assert.InDelta(t, defaultLiquidity, m.Liquidity, 1e-9)
	assert.True(t, got[1].Tradable())

	assert.False(t, got[2].Tradable())
	assert.InDelta(t, defaultPrice, got[2].YesPrice(), 1e-9)
}

func TestGammaStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		_, err := NewGammaClient(srv.URL, nil).GetMarket(context.Background(), "x")
		srv.Close()
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}
}
