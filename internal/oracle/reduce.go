package oracle

import (
	"math"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// FallbackReason leads the reasoning of a verdict built without any provider.
const FallbackReason = "Oracle unavailable — using local model consensus."

// Conviction thresholds on the mean provider score.
const (
	nuclearThreshold = 9.2
	highThreshold    = 8.5
	mediumThreshold  = 7.5
)

// Reduce folds provider results into a single verdict. Failed results are
// ignored; when none succeeded the verdict is derived from the local analysis
// alone. Results are expected in provider configuration order, which decides
// tied direction votes and the first-wins price levels.
func Reduce(results []domain.JudgmentResult, a domain.EdgeAnalysis) domain.ConsensusVerdict {
	valid := make([]domain.JudgmentResult, 0, len(results))
	for _, r := range results {
		if r.OK() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return Fallback(a)
	}

	var (
		sum       float64
		reasoning = []string{}
		seen      = make(map[string]struct{})
		providers = make([]string, 0, len(valid))
		target    *float64
		stop      *float64
		tally     = newTally()
	)
	for _, r := range valid {
		j := r.Judgment
		providers = append(providers, r.Provider)
		if j.Score != nil {
			sum += *j.Score
		}
		tally.add(voteOf(j))
		for _, line := range j.Reasoning {
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			reasoning = append(reasoning, line)
		}
		if target == nil && j.TargetPrice != nil {
			target = floatPtr(*j.TargetPrice)
		}
		if stop == nil && j.StopLoss != nil {
			stop = floatPtr(*j.StopLoss)
		}
	}

	mean := sum / float64(len(valid))
	winner, agree := tally.winner()

	direction := domain.DirectionNo
	if winner == string(domain.DirectionYes) {
		direction = domain.DirectionYes
	}

	return domain.ConsensusVerdict{
		MarketID:        a.MarketID,
		Score:           round1(mean),
		Direction:       direction,
		Conviction:      convictionFor(mean),
		Reasoning:       reasoning,
		TargetPrice:     target,
		StopLoss:        stop,
		ConfidenceScore: int(math.Round(100 * float64(agree) / float64(len(valid)))),
		Providers:       providers,
	}
}

// Fallback builds the verdict returned when no provider produced a usable
// judgment.
func Fallback(a domain.EdgeAnalysis) domain.ConsensusVerdict {
	direction := domain.DirectionNo
	if a.Direction == domain.DirectionYes {
		direction = domain.DirectionYes
	}
	reasoning := make([]string, 0, len(a.Tags)+1)
	reasoning = append(reasoning, FallbackReason)
	reasoning = append(reasoning, a.Tags...)
	return domain.ConsensusVerdict{
		MarketID:        a.MarketID,
		Score:           round1(a.Score),
		Direction:       direction,
		Conviction:      domain.ConvictionLow,
		Reasoning:       reasoning,
		ConfidenceScore: 0,
		Providers:       []string{},
		Fallback:        true,
	}
}

func convictionFor(mean float64) domain.Conviction {
	switch {
	case mean >= nuclearThreshold:
		return domain.ConvictionNuclear
	case mean >= highThreshold:
		return domain.ConvictionHigh
	case mean >= mediumThreshold:
		return domain.ConvictionMedium
	default:
		return domain.ConvictionLow
	}
}

// voteOf returns the direction label a judgment votes for. A missing
// direction counts as a NO vote.
func voteOf(j domain.RawJudgment) string {
	if j.Direction == nil {
		return string(domain.DirectionNo)
	}
	return *j.Direction
}

// tally counts direction votes and remembers the order labels first appeared
// in, so ties resolve to the earliest voter.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

func (t *tally) winner() (string, int) {
	var (
		best  string
		count int
	)
	for _, label := range t.order {
		if c := t.counts[label]; c > count {
			best, count = label, c
		}
	}
	return best, count
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func floatPtr(v float64) *float64 {
	return &v
}
