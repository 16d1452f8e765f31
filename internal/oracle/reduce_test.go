package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func judged(provider string, score *float64, direction string, reasoning ...string) domain.JudgmentResult {
	j := domain.RawJudgment{Score: score, Reasoning: reasoning}
	if direction != "" {
		j.Direction = &direction
	}
	return domain.JudgmentResult{Provider: provider, Judgment: j}
}

func failed(provider string) domain.JudgmentResult {
	return domain.JudgmentResult{Provider: provider, Err: errors.New("down")}
}

func f(v float64) *float64 { return &v }

func TestReduce(t *testing.T) {
	tests := []struct {
		name       string
		results    []domain.JudgmentResult
		score      float64
		direction  domain.Direction
		conviction domain.Conviction
		confidence int
	}{
		{
			name:       "split vote resolves to the first configured provider",
			results:    []domain.JudgmentResult{judged("a", f(8), "YES"), judged("b", f(6), "NO")},
			score:      7,
			direction:  domain.DirectionYes,
			conviction: domain.ConvictionLow,
			confidence: 50,
		},
		{
			name:       "split vote in the other order",
			results:    []domain.JudgmentResult{judged("a", f(6), "NO"), judged("b", f(8), "YES")},
			score:      7,
			direction:  domain.DirectionNo,
			conviction: domain.ConvictionLow,
			confidence: 50,
		},
		{
			name:       "missing score counts as zero",
			results:    []domain.JudgmentResult{judged("a", f(9), "YES"), judged("b", nil, "YES")},
			score:      4.5,
			direction:  domain.DirectionYes,
			conviction: domain.ConvictionLow,
			confidence: 100,
		},
		{
			name:       "missing direction votes NO",
			results:    []domain.JudgmentResult{judged("a", f(8), ""), judged("b", f(8), "YES"), judged("c", f(8), "")},
			score:      8,
			direction:  domain.DirectionNo,
			conviction: domain.ConvictionMedium,
			confidence: 67,
		},
		{
			name:       "failed results are not counted",
			results:    []domain.JudgmentResult{failed("a"), judged("b", f(9.5), "YES"), failed("c")},
			score:      9.5,
			direction:  domain.DirectionYes,
			conviction: domain.ConvictionNuclear,
			confidence: 100,
		},
		{
			name:       "conviction uses the unrounded mean",
			results:    []domain.JudgmentResult{judged("a", f(9), "YES"), judged("b", f(9), "YES"), judged("c", f(9.55), "YES")},
			score:      9.2,
			direction:  domain.DirectionYes,
			conviction: domain.ConvictionHigh,
			confidence: 100,
		},
		{
			name:       "non binary winner is reported as NO",
			results:    []domain.JudgmentResult{judged("a", f(7), "SHADOW_WHALE"), judged("b", f(7), "SHADOW_WHALE"), judged("c", f(7), "YES")},
			score:      7,
			direction:  domain.DirectionNo,
			conviction: domain.ConvictionLow,
			confidence: 67,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Reduce(tt.results, domain.EdgeAnalysis{MarketID: "m"})
			assert.False(t, v.Fallback)
			assert.InDelta(t, tt.score, v.Score, 1e-9)
			assert.Equal(t, tt.direction, v.Direction)
			assert.Equal(t, tt.conviction, v.Conviction)
			assert.Equal(t, tt.confidence, v.ConfidenceScore)
			assert.Equal(t, "m", v.MarketID)
		})
	}
}

func TestReduceMergesReasoningAndLevels(t *testing.T) {
	first := judged("a", f(8), "YES", "whales loading", "thin book")
	second := judged("b", f(8), "YES", "thin book", "funding negative")
	second.Judgment.TargetPrice = f(0.6)
	second.Judgment.StopLoss = f(0.3)
	third := judged("c", f(8), "YES", "whales loading")
	third.Judgment.TargetPrice = f(0.9)

	v := Reduce([]domain.JudgmentResult{first, second, third}, domain.EdgeAnalysis{})

	assert.Equal(t, []string{"whales loading", "thin book", "funding negative"}, v.Reasoning)
	require.NotNil(t, v.TargetPrice)
	assert.InDelta(t, 0.6, *v.TargetPrice, 1e-9)
	require.NotNil(t, v.StopLoss)
	assert.InDelta(t, 0.3, *v.StopLoss, 1e-9)
	assert.Equal(t, []string{"a", "b", "c"}, v.Providers)
}

func TestReduceWithoutValidResultsFallsBack(t *testing.T) {
	a := domain.EdgeAnalysis{MarketID: "m", Score: 2, Direction: domain.DirectionYes, Tags: []string{}}

	for _, results := range [][]domain.JudgmentResult{nil, {failed("a"), failed("b")}} {
		v := Reduce(results, a)
		assert.True(t, v.Fallback)
		assert.Equal(t, domain.DirectionYes, v.Direction)
		assert.Equal(t, domain.ConvictionLow, v.Conviction)
		assert.Equal(t, []string{FallbackReason}, v.Reasoning)
		assert.Equal(t, 0, v.ConfidenceScore)
		assert.Nil(t, v.TargetPrice)
		assert.Empty(t, v.Providers)
	}
}

func TestFallbackMapsDirection(t *testing.T) {
	for dir, want := range map[domain.Direction]domain.Direction{
		domain.DirectionYes:         domain.DirectionYes,
		domain.DirectionNo:          domain.DirectionNo,
		domain.DirectionShadowWhale: domain.DirectionNo,
		"":                          domain.DirectionNo,
	} {
		assert.Equal(t, want, Fallback(domain.EdgeAnalysis{Direction: dir}).Direction, "direction %q", dir)
	}
}
