package models

// MQuote is one observed trade for a symbol.
type MQuote struct {
	Symbol     string   `json:"symbol"`
	Price      float64  `json:"price"`
	Volume     float64  `json:"volume"`
	EventTime  int64    `json:"event_time"` // ms since epoch
	Conditions []string `json:"conditions,omitempty"`
	// ReceivedAt is the local wall clock, in ms, when the frame was decoded.
	ReceivedAt int64 `json:"received_at,omitempty"`
}
