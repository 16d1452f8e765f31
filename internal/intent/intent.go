// Package intent renders copy-trade instructions for an external execution
// agent. Nothing here places orders.
package intent

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Defaults for a copy-trade instruction.
const (
	DefaultSizeUSD     = 250
	MaxSlippagePercent = 0.5
	Handle             = "@bankrbot"
)

// ErrInvalidSize is returned for non-positive or non-finite sizes.
var ErrInvalidSize = errors.New("intent: size must be a positive amount")

// Build renders the instruction to copy the edge on m with sizeUSD dollars.
func Build(m domain.Market, a domain.EdgeAnalysis, sizeUSD float64) (domain.ExecutionIntent, error) {
	if sizeUSD <= 0 || math.IsNaN(sizeUSD) || math.IsInf(sizeUSD, 0) {
		return domain.ExecutionIntent{}, fmt.Errorf("%w: %v", ErrInvalidSize, sizeUSD)
	}
	outcome := m.Outcome
	if outcome == "" {
		outcome = "Yes"
	}
	size := strconv.FormatFloat(sizeUSD, 'f', -1, 64)
	prompt := fmt.Sprintf("%s buy $%s %s shares on %q via PolyEdge signal. Max slippage %s%%.",
		Handle, size, outcome, m.Question, strconv.FormatFloat(MaxSlippagePercent, 'f', -1, 64))

	return domain.ExecutionIntent{
		MarketID:       m.ID,
		Outcome:        outcome,
		Direction:      a.Direction,
		SizeUSD:        sizeUSD,
		MaxSlippagePct: MaxSlippagePercent,
		Prompt:         prompt,
	}, nil
}
