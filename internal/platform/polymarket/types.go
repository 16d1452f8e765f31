package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. Gamma sends
// volume and liquidity both ways depending on the field.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	ConditionID    string    `json:"conditionId"`
	Slug           string    `json:"slug"`
	Active         flexBool  `json:"active"` // API may send bool or "true"/"false" string
	Closed         bool      `json:"closed"`
	Outcomes       string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices  string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	Volume24hr     flexFloat `json:"volume24hr"`
	Liquidity      flexFloat `json:"liquidity"`
	LiquidityNum   flexFloat `json:"liquidityNum"`
	BestBid        flexFloat `json:"bestBid"`
	LastTradePrice flexFloat `json:"lastTradePrice"`
}

// Defaults applied when Gamma omits a field, matching what the dashboard
// assumed for live markets.
const (
	defaultPrice     = 0.5
	defaultLiquidity = 100_000
)

// YesPrice returns the first outcome price, then the best bid, then the last
// trade, and finally 0.5 when none is available.
func (m *APIMarket) YesPrice() float64 {
	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err == nil && len(prices) > 0 {
		if p, err := strconv.ParseFloat(prices[0], 64); err == nil {
			return p
		}
	}
	if m.BestBid > 0 {
		return float64(m.BestBid)
	}
	if m.LastTradePrice > 0 {
		return float64(m.LastTradePrice)
	}
	return defaultPrice
}

// ToDomainMarket converts the listing into a Market carrying the fields Gamma
// knows about. Whale, copy-trader and funding metrics are left zero for the
// caller to enrich.
func (m *APIMarket) ToDomainMarket(observedAt time.Time) domain.Market {
	dm := domain.Market{
		ID:                m.ID,
		Question:          m.Question,
		Outcome:           "Yes",
		Price:             m.YesPrice(),
		Volume24h:         float64(m.Volume24hr),
		RecentWhaleAction: domain.WhaleActionNeutral,
		ObservedAt:        observedAt,
	}
	if dm.Question == "" {
		dm.Question = "Unknown"
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err == nil && len(outcomes) > 0 && outcomes[0] != "" {
		dm.Outcome = outcomes[0]
	}

	switch {
	case m.LiquidityNum > 0:
		dm.Liquidity = float64(m.LiquidityNum)
	case m.Liquidity > 0:
		dm.Liquidity = float64(m.Liquidity)
	default:
		dm.Liquidity = defaultLiquidity
	}
	return dm
}

// Tradable reports whether the market is open.
func (m *APIMarket) Tradable() bool {
	return bool(m.Active) && !m.Closed
}
