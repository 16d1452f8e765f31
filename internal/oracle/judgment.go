package oracle

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

var judgmentKeys = []string{"score", "direction", "conviction", "reasoning", "targetPrice", "stopLoss"}

// ParseJudgment validates a provider's raw text and coerces it into a
// RawJudgment. The text must hold a JSON object, optionally wrapped in a
// Markdown code fence, with at least one recognized key. Unknown keys are
// ignored and fields of the wrong type are treated as absent.
func ParseJudgment(raw string) (domain.RawJudgment, error) {
	body := stripFence(raw)
	if body == "" {
		return domain.RawJudgment{}, fmt.Errorf("oracle: parse judgment: empty body: %w", domain.ErrMalformedJudgment)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return domain.RawJudgment{}, fmt.Errorf("oracle: parse judgment: %v: %w", err, domain.ErrMalformedJudgment)
	}

	recognized := 0
	for _, k := range judgmentKeys {
		if _, ok := fields[k]; ok {
			recognized++
		}
	}
	if recognized == 0 {
		return domain.RawJudgment{}, fmt.Errorf("oracle: parse judgment: no recognized keys: %w", domain.ErrMalformedJudgment)
	}

	j := domain.RawJudgment{
		Score:       numberField(fields["score"]),
		Direction:   labelField(fields["direction"]),
		Conviction:  labelField(fields["conviction"]),
		Reasoning:   reasoningField(fields["reasoning"]),
		TargetPrice: priceField(fields["targetPrice"]),
		StopLoss:    priceField(fields["stopLoss"]),
	}
	return j, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, which may carry a language tag.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func decode(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func numberField(raw json.RawMessage) *float64 {
	var f float64
	switch v := decode(raw).(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// priceField is numberField with zero treated as empty.
func priceField(raw json.RawMessage) *float64 {
	f := numberField(raw)
	if f == nil || *f == 0 {
		return nil
	}
	return f
}

func labelField(raw json.RawMessage) *string {
	s, ok := decode(raw).(string)
	if !ok {
		return nil
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return &s
}

func reasoningField(raw json.RawMessage) []string {
	var out []string
	switch v := decode(raw).(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
