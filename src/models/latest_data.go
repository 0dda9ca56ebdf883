package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type      string                          `json:"type"` // "INITIAL" or "UPDATE"
	Snapshots map[string]map[string]MSnapshot `json:"snapshots"`
	// Current holds the windows still accumulating, as of the last window check.
	Current   map[string]map[string]MSnapshot `json:"current,omitempty"`
	Timestamp int64                           `json:"timestamp"`
	Metrics   MPipelineMetrics                `json:"metrics"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string   `json:"command"`
	Symbols []string `json:"symbols"`
	Window  string   `json:"window"`
}

// -----------------------------------------------------------------------------
// Status reported by the health endpoints
// -----------------------------------------------------------------------------

type MStreamStatus struct {
	State         string `json:"state"`
	SessionID     string `json:"session_id"`
	Attempt       int    `json:"attempt"`
	LastQuoteTime int64  `json:"last_quote_time"`
}
