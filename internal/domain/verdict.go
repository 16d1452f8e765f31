package domain

import "time"

// Conviction is the categorical confidence tier of a consensus verdict.
type Conviction string

const (
	ConvictionLow     Conviction = "LOW"
	ConvictionMedium  Conviction = "MEDIUM"
	ConvictionHigh    Conviction = "HIGH"
	ConvictionNuclear Conviction = "NUCLEAR"
)

// RawJudgment is one provider's response after JSON validation. Every field is
// optional; nil means the provider did not supply a usable value.
type RawJudgment struct {
	Score       *float64 `json:"score,omitempty"`
	Direction   *string  `json:"direction,omitempty"`
	Conviction  *string  `json:"conviction,omitempty"`
	Reasoning   []string `json:"reasoning,omitempty"`
	TargetPrice *float64 `json:"targetPrice,omitempty"`
	StopLoss    *float64 `json:"stopLoss,omitempty"`
}

// JudgmentResult is the outcome of asking one provider: either a validated
// judgment or the error that disqualified it.
type JudgmentResult struct {
	Provider string
	Judgment RawJudgment
	Err      error
}

// OK reports whether the result carries a usable judgment.
func (r JudgmentResult) OK() bool {
	return r.Err == nil
}

// ConsensusVerdict is the reduced, caller-facing answer of the oracle.
type ConsensusVerdict struct {
	ID              string     `json:"id"`
	MarketID        string     `json:"marketId"`
	Score           float64    `json:"score"`
	Direction       Direction  `json:"direction"` // YES or NO only
	Conviction      Conviction `json:"conviction"`
	Reasoning       []string   `json:"reasoning"`
	TargetPrice     *float64   `json:"targetPrice,omitempty"`
	StopLoss        *float64   `json:"stopLoss,omitempty"`
	ConfidenceScore int        `json:"confidenceScore"`
	Providers       []string   `json:"providers"`
	Fallback        bool       `json:"fallback"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Actionable reports whether the verdict is strong enough to alert on.
func (v ConsensusVerdict) Actionable() bool {
	return !v.Fallback && (v.Conviction == ConvictionHigh || v.Conviction == ConvictionNuclear)
}

// Trader is a leaderboard participant, used for whale profiling prompts.
type Trader struct {
	Rank            int     `json:"rank"`
	Name            string  `json:"name"`
	PnL             float64 `json:"pnl"`
	WinRate         float64 `json:"winRate"`
	CurrentPosition string  `json:"currentPosition"`
	Volume          float64 `json:"volume"`
	IsWhale         bool    `json:"isWhale"`
}
