package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/config"
	"github.com/alanyoungcy/polyedge/internal/domain"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func consultConfig(anthropicURL string) *config.Config {
	cfg := config.Defaults()
	cfg.Mode = config.ModeConsult
	cfg.Redis.Addr = ""
	cfg.Scanner.Feed = "simulated"
	cfg.Scanner.Seed = 7
	cfg.Scanner.MinScore = 0
	cfg.Oracle.Order = []string{config.ProviderAnthropic}
	cfg.Oracle.Anthropic.APIKey = "test-key"
	cfg.Oracle.Anthropic.BaseURL = anthropicURL
	return &cfg
}

func TestConsultModeWritesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"score\":8,\"direction\":\"YES\",\"conviction\":\"HIGH\",\"reasoning\":[\"whales buying\"]}"}]}`))
	}))
	defer srv.Close()

	cfg := consultConfig(srv.URL)
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	a := New(cfg, quietLogger(), WithOutput(&out))
	defer a.Close()
	require.NoError(t, a.Run(context.Background()))

	var got struct {
		Market  domain.Market           `json:"market"`
		Verdict domain.ConsensusVerdict `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.NotEmpty(t, got.Market.ID)
	assert.Equal(t, got.Market.ID, got.Verdict.MarketID)
	assert.False(t, got.Verdict.Fallback)
	assert.Equal(t, domain.DirectionYes, got.Verdict.Direction)
}

func TestConsultModeUnknownTarget(t *testing.T) {
	a := New(consultConfig("http://127.0.0.1:1"), quietLogger(), WithConsultTarget("nope"), WithOutput(io.Discard))
	defer a.Close()
	assert.ErrorIs(t, a.Run(context.Background()), domain.ErrNotFound)
}

func TestConsultModeWithoutProviders(t *testing.T) {
	cfg := consultConfig("")
	cfg.Oracle.Anthropic.APIKey = ""
	a := New(cfg, quietLogger(), WithOutput(io.Discard))
	defer a.Close()
	assert.ErrorIs(t, a.Run(context.Background()), domain.ErrConfiguration)
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "polyedge:", keyPrefix("polyedge"))
	assert.Equal(t, "polyedge:", keyPrefix("polyedge:"))
	assert.Equal(t, "", keyPrefix(" "))
}

func TestOriginChecker(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.CORSOrigins = []string{"https://dash.example"}
	check := New(&cfg, quietLogger()).originChecker()
	require.NotNil(t, check)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://dash.example")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://other.example")
	assert.False(t, check(r))

	cfg.Server.CORSOrigins = nil
	assert.Nil(t, New(&cfg, quietLogger()).originChecker())
}
