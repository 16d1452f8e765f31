package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Messages returned in place of a profile when no model answer is available.
const (
	ProfileUnconfigured = "Set GEMINI_API_KEY (or REACT_APP_/VITE_ prefixed) to enable AI responses."
	ProfileEmpty        = "Analysis unavailable."
	ProfileFailed       = "Temporary error contacting the Oracle. Please try again."
)

// Profiler writes a free-text behavioural profile of a leaderboard trader.
type Profiler struct {
	provider Provider
	logger   *slog.Logger
}

// NewProfiler returns a Profiler backed by provider. A nil provider yields a
// Profiler that always answers with ProfileUnconfigured.
func NewProfiler(provider Provider, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{provider: provider, logger: logger.With(slog.String("component", "profiler"))}
}

// Profile never fails; provider errors degrade to a fixed message.
func (p *Profiler) Profile(ctx context.Context, t domain.Trader) string {
	if p.provider == nil {
		return ProfileUnconfigured
	}
	text, err := p.provider.Complete(ctx, Request{Prompt: ProfilePrompt(t)})
	if err != nil {
		p.logger.WarnContext(ctx, "profile request failed",
			slog.String("provider", p.provider.Name()),
			slog.String("trader", t.Name),
			slog.String("error", err.Error()),
		)
		return ProfileFailed
	}
	if strings.TrimSpace(text) == "" {
		return ProfileEmpty
	}
	return text
}

// ProfilePrompt renders the trader stats into the profiling prompt.
func ProfilePrompt(t domain.Trader) string {
	var b strings.Builder
	b.WriteString("Act as a behavioral economist and trading psychologist.\n")
	b.WriteString("Analyze this trader's profile based on their stats:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", t.Name)
	fmt.Fprintf(&b, "Total PnL: $%s\n", grouped(t.PnL))
	fmt.Fprintf(&b, "Win Rate: %s%%\n", trimFloat(t.WinRate))
	fmt.Fprintf(&b, "Current Active Position: %s\n", t.CurrentPosition)
	fmt.Fprintf(&b, "Trading Volume: $%s\n", grouped(t.Volume))
	fmt.Fprintf(&b, "Is Whale: %t\n\n", t.IsWhale)
	b.WriteString("Task:\n")
	b.WriteString("1. Assign them a creative \"RPG-style\" Trading Class (e.g., \"Diamond Hand Paladin\", \"High-Frequency Rogue\", \"Variance Wizard\").\n")
	b.WriteString("2. Explain their psychological profile in 2 sentences.\n")
	b.WriteString("3. Rate their \"Aggression\" and \"Sustainability\" out of 10.\n")
	return b.String()
}
