package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

var whale = domain.Trader{
	Rank: 1, Name: "0xWhale...8a92", PnL: 4_500_000, WinRate: 78,
	CurrentPosition: "Long BTC", Volume: 12_000_000, IsWhale: true,
}

func TestProfilePrompt(t *testing.T) {
	p := ProfilePrompt(whale)
	assert.Contains(t, p, "Name: 0xWhale...8a92\n")
	assert.Contains(t, p, "Total PnL: $4,500,000\n")
	assert.Contains(t, p, "Win Rate: 78%\n")
	assert.Contains(t, p, "Trading Volume: $12,000,000\n")
	assert.Contains(t, p, "Is Whale: true\n")
}

func TestProfile(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ProfileUnconfigured, NewProfiler(nil, nil).Profile(ctx, whale))

	failing := &fakeProvider{name: "gemini", err: errors.New("quota")}
	assert.Equal(t, ProfileFailed, NewProfiler(failing, nil).Profile(ctx, whale))

	blank := &fakeProvider{name: "gemini", text: "   "}
	assert.Equal(t, ProfileEmpty, NewProfiler(blank, nil).Profile(ctx, whale))

	ok := &fakeProvider{name: "gemini", text: "Diamond Hand Paladin"}
	assert.Equal(t, "Diamond Hand Paladin", NewProfiler(ok, nil).Profile(ctx, whale))
	require.Len(t, ok.prompts, 1)
	assert.False(t, ok.prompts[0].JSON)
}
