package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

type stubSender struct {
	name  string
	err   error
	calls int
}

func (s *stubSender) Send(context.Context, string, string) error {
	s.calls++
	return s.err
}

func (s *stubSender) Name() string { return s.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFilter(t *testing.T) {
	s := &stubSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{EventVerdict, " "}, discard())

	require.NoError(t, n.Notify(context.Background(), EventEdge, "t", "m"))
	assert.Equal(t, 0, s.calls)

	require.NoError(t, n.Notify(context.Background(), EventVerdict, "t", "m"))
	assert.Equal(t, 1, s.calls)
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	n := NewNotifier([]Sender{&stubSender{}}, nil, discard())
	assert.True(t, n.Allows(EventScanFailure))
	assert.False(t, NewNotifier(nil, nil, discard()).Enabled())
}

func TestNotifierContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	bad := &stubSender{name: "bad", err: boom}
	good := &stubSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventEdge, "t", "m")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, good.calls)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botSECRET/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("SECRET", "42").WithBaseURL(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestTelegramSenderRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewTelegramSender("SECRET", "42").WithBaseURL(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
	assert.Contains(t, err.Error(), "401")
}

func TestDiscordSender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "**T**\nm", body["content"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "T", "m"))
}

func TestVerdictAlert(t *testing.T) {
	target := 0.55
	title, msg := VerdictAlert("Will it rain?", domain.ConsensusVerdict{
		Score: 9.3, Direction: domain.DirectionYes, Conviction: domain.ConvictionNuclear,
		ConfidenceScore: 100, Providers: []string{"anthropic", "gemini"},
		TargetPrice: &target, Reasoning: []string{"whales buying"},
	})
	assert.Equal(t, "NUCLEAR verdict: YES 9.3/10", title)
	assert.Equal(t, "Will it rain?\nAgreement: 100% (anthropic, gemini)\nTarget: 0.55\n- whales buying", msg)
}

func TestEdgeAlert(t *testing.T) {
	title, msg := EdgeAlert(domain.MarketSnapshot{
		Market:   domain.Market{Question: "Q?", Price: 0.38},
		Analysis: domain.EdgeAnalysis{Score: 10, Direction: domain.DirectionYes, RewardRisk: 2.74, Tags: []string{domain.TagLiquiditySqueeze}},
	})
	assert.Equal(t, "Edge 10.0/10 YES", title)
	assert.Equal(t, "Q?\nYes price: 38.0%\nReward/risk: 2.74\nTags: LIQUIDITY SQUEEZE", msg)
}
