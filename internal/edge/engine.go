// Package edge converts a single market snapshot into a scored edge analysis.
// Everything here is pure: no I/O, no clocks, no shared state.
package edge

import (
	"math"
	"sort"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Band boundaries and thresholds used by the scoring rules.
const (
	LowPriceBand  = 0.4
	HighPriceBand = 0.75

	squeezeLiquidity    = 80_000
	thinVolume          = 100_000
	fundingArbThreshold = 0.08

	clusterWhales     = 2
	shadowWhales      = 3
	shadowScore       = 7.5
	shadowCeiling     = 8
	copyClusterTrader = 12
	copyBonusFloor    = 5

	neutralScore = 2
	maxScore     = 10
)

// Score computes the edge analysis for m.
func Score(m domain.Market) domain.EdgeAnalysis {
	var (
		score      float64
		direction  = domain.DirectionYes
		tags       []string
		rewardRisk float64
	)

	switch {
	case m.Price < LowPriceBand:
		if m.FundingRate < 0 {
			score += 3
		}
		if m.RecentWhaleAction == domain.WhaleActionBuyYes {
			score += 3
		}
		if m.Liquidity < squeezeLiquidity {
			score += 2
			tags = append(tags, domain.TagLiquiditySqueeze)
		}
		if m.WhaleCount15m >= clusterWhales {
			score += 2
			tags = append(tags, domain.TagWhaleCluster)
		}
		direction = domain.DirectionYes
		rewardRisk = ratio(0.9-m.Price, m.Price*0.5)

	case m.Price > HighPriceBand:
		if m.Volume24h < thinVolume {
			score += 2
		}
		if m.RecentWhaleAction == domain.WhaleActionBuyNo || m.RecentWhaleAction == domain.WhaleActionSellYes {
			score += 4
		}
		if m.FundingRate > fundingArbThreshold {
			score += 2
			tags = append(tags, domain.TagFundingArb)
		}
		direction = domain.DirectionNo
		rewardRisk = ratio(m.Price-0.1, 1-m.Price)

	default:
		score = neutralScore
	}

	if m.WhaleCount15m >= shadowWhales && score < shadowCeiling {
		direction = domain.DirectionShadowWhale
		score = shadowScore
		tags = append(tags, domain.TagShadowFollow)
	}

	if m.CopyTraderCount20m > copyClusterTrader {
		tags = append(tags, domain.TagCopyCluster)
		if score > copyBonusFloor {
			score++
		}
	}

	score = math.Max(0, math.Min(maxScore, score))

	if tags == nil {
		tags = []string{}
	}
	return domain.EdgeAnalysis{
		MarketID:   m.ID,
		Score:      score,
		Direction:  direction,
		Tags:       tags,
		RewardRisk: round2(rewardRisk),
	}
}

// ratio divides num by den and reports non-finite or negative results as 0.
func ratio(num, den float64) float64 {
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return 0
	}
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Default board parameters.
const (
	DefaultMinScore = 7
	DefaultLimit    = 5
)

// TopEdges returns the snapshots whose score is at least minScore, strongest
// first, capped at limit. Equal scores are ordered by market ID. A limit of
// zero or less means no cap.
func TopEdges(snaps []domain.MarketSnapshot, minScore float64, limit int) []domain.MarketSnapshot {
	out := make([]domain.MarketSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Analysis.Score >= minScore {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Analysis.Score != out[j].Analysis.Score {
			return out[i].Analysis.Score > out[j].Analysis.Score
		}
		return out[i].Market.ID < out[j].Market.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ScoreAll scores every market and returns the paired snapshots in input order.
func ScoreAll(markets []domain.Market) []domain.MarketSnapshot {
	out := make([]domain.MarketSnapshot, len(markets))
	for i, m := range markets {
		out[i] = domain.MarketSnapshot{Market: m, Analysis: Score(m)}
	}
	return out
}
