package domain

import "time"

// WhaleAction is the most recent large-participant move observed on a market.
type WhaleAction string

const (
	WhaleActionBuyYes  WhaleAction = "buy_yes"
	WhaleActionBuyNo   WhaleAction = "buy_no"
	WhaleActionSellYes WhaleAction = "sell_yes"
	WhaleActionNeutral WhaleAction = "neutral"
)

// Valid reports whether a is one of the known whale actions.
func (a WhaleAction) Valid() bool {
	switch a {
	case WhaleActionBuyYes, WhaleActionBuyNo, WhaleActionSellYes, WhaleActionNeutral:
		return true
	}
	return false
}

// HistoryLength is the number of price samples carried on every Market.
const HistoryLength = 20

// PricePoint is a single sample in a market's rolling price history.
type PricePoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price" validate:"finite,gte=0,lte=1"`
}

// Market is a normalized snapshot of one tradable question, produced fresh on
// every polling cycle. A Market is never mutated; the next cycle replaces it.
type Market struct {
	ID                 string       `json:"id" validate:"required"`
	Question           string       `json:"question" validate:"required"`
	Outcome            string       `json:"outcome"`
	Price              float64      `json:"price" validate:"finite,gte=0,lte=1"` // probability of "Yes"
	Volume24h          float64      `json:"volume24h" validate:"finite,gte=0"`
	Liquidity          float64      `json:"liquidity" validate:"finite,gte=0"`
	FundingRate        float64      `json:"fundingRate" validate:"finite"`
	WhaleCount15m      int          `json:"whaleCount15m" validate:"gte=0"`
	CopyTraderCount20m int          `json:"copyTraderCount20m" validate:"gte=0"`
	RecentWhaleAction  WhaleAction  `json:"recentWhaleAction" validate:"oneof=buy_yes buy_no sell_yes neutral"`
	History            []PricePoint `json:"history" validate:"max=20,dive"`
	ObservedAt         time.Time    `json:"observedAt"`
}

// MarketSnapshot pairs a market with the analysis derived from it in the same
// polling cycle.
type MarketSnapshot struct {
	Market   Market       `json:"market"`
	Analysis EdgeAnalysis `json:"analysis"`
}

// EdgeBoard is the ranked list of the strongest edges from one scan cycle.
type EdgeBoard struct {
	Cycle     int64            `json:"cycle"`
	Edges     []MarketSnapshot `json:"edges"`
	Scanned   int              `json:"scanned"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
