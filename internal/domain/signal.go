package domain

import "time"

// Pub/sub channels used to fan out scanner and oracle output.
const (
	ChannelEdges   = "ch:edges"
	ChannelVerdict = "ch:verdict"

	StreamVerdicts = "stream:verdicts"
)

// ServiceStatus is a summary of the service's current operational state.
type ServiceStatus struct {
	Mode          string    `json:"mode"`
	UptimeSeconds int64     `json:"uptimeSeconds"`
	Feed          string    `json:"feed"`
	Providers     []string  `json:"providers"`
	LastScan      time.Time `json:"lastScan"`
	ScanCycles    int64     `json:"scanCycles"`
	Tracked       int       `json:"tracked"`
}
