package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// EdgeAlert renders a newly detected edge.
func EdgeAlert(s domain.MarketSnapshot) (title, message string) {
	a := s.Analysis
	title = fmt.Sprintf("Edge %.1f/10 %s", a.Score, a.Direction)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.Market.Question)
	fmt.Fprintf(&b, "Yes price: %.1f%%\n", s.Market.Price*100)
	fmt.Fprintf(&b, "Reward/risk: %.2f\n", a.RewardRisk)
	if len(a.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(a.Tags, ", "))
	}
	return title, strings.TrimRight(b.String(), "\n")
}

// VerdictAlert renders a consensus verdict for question.
func VerdictAlert(question string, v domain.ConsensusVerdict) (title, message string) {
	title = fmt.Sprintf("%s verdict: %s %.1f/10", v.Conviction, v.Direction, v.Score)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", question)
	fmt.Fprintf(&b, "Agreement: %d%% (%s)\n", v.ConfidenceScore, strings.Join(v.Providers, ", "))
	if v.TargetPrice != nil {
		fmt.Fprintf(&b, "Target: %.2f\n", *v.TargetPrice)
	}
	if v.StopLoss != nil {
		fmt.Fprintf(&b, "Stop: %.2f\n", *v.StopLoss)
	}
	for _, r := range v.Reasoning {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return title, strings.TrimRight(b.String(), "\n")
}
