// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamSource is the read side of the stream supervisor.
type StreamSource interface {
	Reconnects() uint64
	DecodeErrors() uint64
	Received() uint64
}

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	QuotesDropped    prometheus.Counter
	RecordsAppended  *prometheus.CounterVec
	WriteFailures    prometheus.Counter
	AppendLatency    prometheus.Histogram
	SnapshotsEmitted *prometheus.CounterVec
	SinkFailures     *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	StreamState      prometheus.Gauge

	registry prometheus.Registerer
}

// -----------------------------------------------------------------------------

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QuotesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_observer_quotes_dropped_total",
			Help: "Quotes evicted from the bounded queue or left behind at shutdown",
		}),
		RecordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quote_observer_journal_records_total",
			Help: "Records durably appended to the journal",
		}, []string{"kind"}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_observer_journal_write_failures_total",
			Help: "Records dropped after journal retries were exhausted",
		}),
		AppendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quote_observer_journal_append_seconds",
			Help:    "Time to write and fsync one journal record",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
		SnapshotsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quote_observer_snapshots_total",
			Help: "Snapshots produced by the analyzer",
		}, []string{"window"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quote_observer_sink_failures_total",
			Help: "Snapshot deliveries that failed, per sink",
		}, []string{"sink"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quote_observer_queue_depth",
			Help: "Quotes waiting in the bounded queue",
		}),
		StreamState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quote_observer_stream_state",
			Help: "Supervisor state: 0 disconnected, 1 connecting, 2 subscribing, 3 streaming, 4 shutting down",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.QuotesDropped,
		m.RecordsAppended,
		m.WriteFailures,
		m.AppendLatency,
		m.SnapshotsEmitted,
		m.SinkFailures,
		m.QueueDepth,
		m.StreamState,
	)
	return m
}

// -----------------------------------------------------------------------------

// WatchStream exports the supervisor's own counters.
func (m *Metrics) WatchStream(src StreamSource) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "quote_observer_quotes_received_total",
			Help: "Quotes decoded from the upstream feed",
		}, func() float64 { return float64(src.Received()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "quote_observer_reconnects_total",
			Help: "Failed dials and dropped sessions",
		}, func() float64 { return float64(src.Reconnects()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "quote_observer_decode_errors_total",
			Help: "Inbound frames that failed to decode",
		}, func() float64 { return float64(src.DecodeErrors()) }),
	)
}
