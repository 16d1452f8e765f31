package domain

// ExecutionIntent is a trade instruction handed to an external execution
// collaborator. Nothing in this service sends it anywhere.
type ExecutionIntent struct {
	MarketID       string    `json:"marketId"`
	Outcome        string    `json:"outcome"`
	Direction      Direction `json:"direction"`
	SizeUSD        float64   `json:"sizeUsd"`
	MaxSlippagePct float64   `json:"maxSlippagePct"`
	Prompt         string    `json:"prompt"`
}
