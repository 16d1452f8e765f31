package domain

// Direction is the side an edge analysis recommends.
type Direction string

const (
	DirectionYes         Direction = "YES"
	DirectionNo          Direction = "NO"
	DirectionShadowWhale Direction = "SHADOW_WHALE"
)

// Edge tags attached by the scoring engine.
const (
	TagLiquiditySqueeze = "LIQUIDITY SQUEEZE"
	TagWhaleCluster     = "WHALE CLUSTER"
	TagFundingArb       = "FUNDING ARB"
	TagShadowFollow     = "SHADOW FOLLOW"
	TagCopyCluster      = "COPY CLUSTER"
)

// EdgeAnalysis is the deterministic score derived from exactly one Market.
type EdgeAnalysis struct {
	MarketID   string    `json:"marketId"`
	Score      float64   `json:"score"` // 0..10
	Direction  Direction `json:"direction"`
	Tags       []string  `json:"tags"`
	RewardRisk float64   `json:"rewardRisk"`
}

// Reason returns the tags that explain the score. The tag list doubles as the
// human-readable reason.
func (a EdgeAnalysis) Reason() []string {
	return a.Tags
}

// HasTag reports whether tag is attached to the analysis.
func (a EdgeAnalysis) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
