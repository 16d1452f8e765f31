package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/intent"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var m1 = domain.MarketSnapshot{
	Market:   domain.Market{ID: "m1", Question: "Will Bitcoin hit $100k by Jan 1?", Outcome: "Yes", Price: 0.38},
	Analysis: domain.EdgeAnalysis{MarketID: "m1", Score: 10, Direction: domain.DirectionYes, Tags: []string{}},
}

type fakeMarkets struct{}

func (fakeMarkets) Board(context.Context) (domain.EdgeBoard, error) {
	return domain.EdgeBoard{Cycle: 4, Edges: []domain.MarketSnapshot{m1}, Scanned: 5}, nil
}

func (fakeMarkets) Markets(context.Context) []domain.MarketSnapshot { return []domain.MarketSnapshot{m1} }

func (fakeMarkets) Market(_ context.Context, id string) (domain.MarketSnapshot, error) {
	if id != "m1" {
		return domain.MarketSnapshot{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return m1, nil
}

func (f fakeMarkets) Intent(ctx context.Context, id string, size float64) (domain.ExecutionIntent, error) {
	snap, err := f.Market(ctx, id)
	if err != nil {
		return domain.ExecutionIntent{}, err
	}
	return intent.Build(snap.Market, snap.Analysis, size)
}

type fakeOracle struct {
	err   error
	force bool
}

func (f *fakeOracle) Consult(_ context.Context, snap domain.MarketSnapshot, force bool) (domain.ConsensusVerdict, error) {
	f.force = force
	if f.err != nil {
		return domain.ConsensusVerdict{}, f.err
	}
	return domain.ConsensusVerdict{ID: "v1", MarketID: snap.Market.ID, Score: 8.7, Direction: domain.DirectionYes, Conviction: domain.ConvictionHigh}, nil
}

func (f *fakeOracle) Recent(context.Context, int) ([]domain.ConsensusVerdict, error) { return nil, nil }

func (f *fakeOracle) Replay(_ context.Context, after string, _ int) ([]domain.ConsensusVerdict, string, error) {
	return []domain.ConsensusVerdict{{ID: "v1"}}, after + "-next", nil
}

func (f *fakeOracle) Latest(_ context.Context, id string) (domain.ConsensusVerdict, error) {
	if id == "m1" {
		return domain.ConsensusVerdict{ID: "v1", MarketID: "m1"}, nil
	}
	return domain.ConsensusVerdict{}, domain.ErrNotFound
}

func newMux(o *fakeOracle) *http.ServeMux {
	mh := NewMarketHandler(fakeMarkets{}, o, discard())
	oh := NewOracleHandler(fakeMarkets{}, o, discard())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/edges", mh.ListEdges)
	mux.HandleFunc("GET /api/markets", mh.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", mh.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/intent", mh.GetIntent)
	mux.HandleFunc("POST /api/markets/{id}/consult", oh.Consult)
	mux.HandleFunc("GET /api/verdicts/recent", oh.ListRecent)
	mux.HandleFunc("GET /api/verdicts/stream", oh.Stream)
	return mux
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestListEdges(t *testing.T) {
	rec, body := do(t, newMux(&fakeOracle{}), http.MethodGet, "/api/edges")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), body["cycle"])
	assert.Len(t, body["edges"], 1)
}

func TestGetMarket(t *testing.T) {
	mux := newMux(&fakeOracle{})

	rec, body := do(t, mux, http.MethodGet, "/api/markets/m1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "market")
	assert.Contains(t, body, "analysis")
	require.Contains(t, body, "verdict")

	rec, body = do(t, mux, http.MethodGet, "/api/markets/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", body["error"])
}

func TestGetIntent(t *testing.T) {
	mux := newMux(&fakeOracle{})

	rec, body := do(t, mux, http.MethodGet, "/api/markets/m1/intent")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `@bankrbot buy $250 Yes shares on "Will Bitcoin hit $100k by Jan 1?" via PolyEdge signal. Max slippage 0.5%.`, body["prompt"])

	rec, _ = do(t, mux, http.MethodGet, "/api/markets/m1/intent?size=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, mux, http.MethodGet, "/api/markets/m1/intent?size=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsult(t *testing.T) {
	o := &fakeOracle{}
	rec, body := do(t, newMux(o), http.MethodPost, "/api/markets/m1/consult?force=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIGH", body["conviction"])
	assert.True(t, o.force)
}

func TestConsultErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrConfiguration, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec, _ := do(t, newMux(&fakeOracle{err: fmt.Errorf("wrapped: %w", tt.err)}), http.MethodPost, "/api/markets/m1/consult")
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRecentVerdictsNeverNull(t *testing.T) {
	rec, _ := do(t, newMux(&fakeOracle{}), http.MethodGet, "/api/verdicts/recent?limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"verdicts":[]}`, rec.Body.String())
}

func TestStream(t *testing.T) {
	_, body := do(t, newMux(&fakeOracle{}), http.MethodGet, "/api/verdicts/stream?after=5-0")
	assert.Equal(t, "5-0-next", body["next"])
}

type fakeTraders struct{}

func (fakeTraders) Leaderboard() []domain.Trader { return []domain.Trader{{Rank: 1, Name: "w"}} }
func (fakeTraders) Profile(_ context.Context, rank int) (domain.Trader, string, error) {
	if rank != 1 {
		return domain.Trader{}, "", domain.ErrNotFound
	}
	return domain.Trader{Rank: 1, Name: "w"}, "aggressive", nil
}

func TestTraderHandler(t *testing.T) {
	h := NewTraderHandler(fakeTraders{}, discard())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/traders", h.ListTraders)
	mux.HandleFunc("POST /api/traders/{rank}/profile", h.Profile)

	_, body := do(t, mux, http.MethodGet, "/api/traders")
	assert.Len(t, body["traders"], 1)

	rec, body := do(t, mux, http.MethodPost, "/api/traders/1/profile")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aggressive", body["profile"])

	rec, _ = do(t, mux, http.MethodPost, "/api/traders/x/profile")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, mux, http.MethodPost, "/api/traders/9/profile")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	ok := NewHealthHandler(map[string]Pinger{"redis": func(context.Context) error { return nil }}, discard())
	rec, body := do(t, http.HandlerFunc(ok.HealthCheck), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	bad := NewHealthHandler(map[string]Pinger{"postgres": func(context.Context) error { return errors.New("refused") }}, discard())
	rec, body = do(t, http.HandlerFunc(bad.HealthCheck), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestStatus(t *testing.T) {
	h := NewStatusHandler(func() domain.ServiceStatus {
		return domain.ServiceStatus{Mode: "serve", Feed: "gamma+simulated", Providers: []string{"anthropic"}}
	})
	_, body := do(t, http.HandlerFunc(h.GetStatus), http.MethodGet, "/api/status")
	assert.Equal(t, "serve", body["mode"])
	assert.Equal(t, "gamma+simulated", body["feed"])
}
