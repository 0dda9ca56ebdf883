package models

// MSnapshot is an immutable copy of one symbol's statistics for a window.
type MSnapshot struct {
	Symbol         string  `json:"symbol"`
	Window         string  `json:"window"` // e.g. "1m", "15m"
	WindowStart    int64   `json:"window_start"`
	WindowEnd      int64   `json:"window_end"`
	Count          int64   `json:"count"`
	Mean           float64 `json:"mean"`
	Variance       float64 `json:"variance"`
	StdDev         float64 `json:"std_dev"`
	Open           float64 `json:"open"`
	Close          float64 `json:"close"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Volume         float64 `json:"volume"`
	PriceChangePct float64 `json:"price_change_pct"`
	LastEventTime  int64   `json:"last_event_time"`
	Partial        bool    `json:"partial,omitempty"`
}
