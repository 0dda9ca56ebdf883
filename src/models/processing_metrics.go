package models

// MPipelineMetrics is a point-in-time view of the pipeline counters.
type MPipelineMetrics struct {
	QuotesReceived   uint64 `json:"quotes_received"`
	QuotesDropped    uint64 `json:"quotes_dropped"`
	RecordsAppended  uint64 `json:"records_appended"`
	WriteFailures    uint64 `json:"write_failures"`
	SnapshotsEmitted uint64 `json:"snapshots_emitted"`
	SinkFailures     uint64 `json:"sink_failures"`
	DecodeErrors     uint64 `json:"decode_errors"`
	Reconnects       uint64 `json:"reconnects"`
	QueueDepth       int    `json:"queue_depth"`
	JournalSegment   uint64 `json:"journal_segment,omitempty"`
}
