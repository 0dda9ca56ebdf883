package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"quote-observer/src/analysis"
	"quote-observer/src/helpers"
	"quote-observer/src/interfaces"
	"quote-observer/src/journal"
	"quote-observer/src/logger"
	"quote-observer/src/metrics"
	"quote-observer/src/models"
)

// Journal is the durable write path.
type Journal interface {
	Append(ctx context.Context, r journal.Record) error
}

// segmenter is implemented by journals that report their active segment.
type segmenter interface {
	Segment() uint64
}

// Supervisor is the producer side: it feeds the queue until its context is
// cancelled.
type Supervisor interface {
	metrics.StreamSource
	Run(ctx context.Context) error
}

// Options configure a Coordinator.
type Options struct {
	ShutdownGrace time.Duration
	CheckInterval time.Duration
}

// Coordinator connects the stream supervisor, through the bounded queue, to
// the analyzer and the journal, and runs the graceful shutdown sequence.
// The analyzer is touched only by the consumer goroutine.
type Coordinator struct {
	opts       Options
	queue      *Queue
	analyzer   *analysis.Analyzer
	journal    Journal
	supervisor Supervisor
	sinks      []interfaces.ISnapshotSink
	metrics    *metrics.Metrics
	errors     *helpers.ErrorHandler

	appended      atomic.Uint64
	writeFailures atomic.Uint64
	snapshots     atomic.Uint64

	latestMu sync.RWMutex
	latest   map[string]map[string]models.MSnapshot
	current  []models.MSnapshot

	now    func() time.Time
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewCoordinator(
	opts Options,
	queue *Queue,
	analyzer *analysis.Analyzer,
	writer Journal,
	supervisor Supervisor,
	m *metrics.Metrics,
	log *logger.Logger,
) *Coordinator {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 5 * time.Second
	}

	queue.OnDrop = m.QuotesDropped.Inc

	return &Coordinator{
		opts:       opts,
		queue:      queue,
		analyzer:   analyzer,
		journal:    writer,
		supervisor: supervisor,
		metrics:    m,
		errors:     helpers.NewErrorHandler(log),
		latest:     make(map[string]map[string]models.MSnapshot),
		now:        time.Now,
		Logger:     log,
	}
}

// AddSink registers a best-effort snapshot consumer. Call before Run.
func (c *Coordinator) AddSink(sink interfaces.ISnapshotSink) {
	c.sinks = append(c.sinks, sink)
}

// -----------------------------------------------------------------------------

// Run starts the supervisor and consumes quotes until ctx is cancelled, then
// shuts down: the queue stops accepting quotes, the backlog is written until
// the grace deadline, partial snapshots are flushed and finally the
// supervisor is stopped.
func (c *Coordinator) Run(ctx context.Context) error {
	supCtx, stopSupervisor := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSupervisor()

	supDone := make(chan error, 1)
	go func() {
		supDone <- c.supervisor.Run(supCtx)
	}()

	c.consume(ctx)
	c.drain()

	stopSupervisor()
	if err := <-supDone; err != nil && !errors.Is(err, context.Canceled) {
		c.Logger.Error("Stream supervisor exited with error: %v", err)
	}

	stats := c.Stats()
	c.Logger.Info("Pipeline stopped: %d records appended, %d write failures, %d quotes dropped",
		stats.RecordsAppended, stats.WriteFailures, stats.QuotesDropped)
	return nil
}

// -----------------------------------------------------------------------------

func (c *Coordinator) consume(ctx context.Context) {
	ticker := time.NewTicker(c.opts.CheckInterval)
	defer ticker.Stop()

	// Retries already in flight finish even if shutdown starts.
	writeCtx := context.WithoutCancel(ctx)

	for {
		for ctx.Err() == nil {
			q, ok := c.queue.TryReceive()
			if !ok {
				break
			}
			c.process(writeCtx, q)
		}
		c.metrics.QueueDepth.Set(float64(c.queue.Len()))

		select {
		case <-ctx.Done():
			return
		case <-c.queue.Ready():
		case <-ticker.C:
			c.emit(writeCtx, c.analyzer.Expire(c.now().UnixMilli()))
			c.setCurrent(c.analyzer.Current())
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Coordinator) drain() {
	c.queue.Close()

	graceCtx, cancel := context.WithTimeout(context.Background(), c.opts.ShutdownGrace)
	defer cancel()

	pending := c.queue.Len()
	if pending > 0 {
		c.Logger.Info("Draining %d queued quotes (grace %s)", pending, c.opts.ShutdownGrace)
	}

	for graceCtx.Err() == nil {
		q, ok := c.queue.TryReceive()
		if !ok {
			break
		}
		c.process(graceCtx, q)
	}

	if left := c.queue.Discard(); left > 0 {
		c.Logger.Warning("Grace period expired: dropped %d queued quotes", left)
	}
	c.metrics.QueueDepth.Set(0)

	c.emit(graceCtx, c.analyzer.Flush())
	c.setCurrent(nil)
}

// -----------------------------------------------------------------------------

func (c *Coordinator) process(ctx context.Context, q models.MQuote) {
	c.append(ctx, journal.QuoteRecord(q))
	c.emit(ctx, c.analyzer.Ingest(q))
}

func (c *Coordinator) emit(ctx context.Context, snapshots []models.MSnapshot) {
	if len(snapshots) == 0 {
		return
	}

	for _, s := range snapshots {
		c.append(ctx, journal.SnapshotRecord(s))
		c.snapshots.Add(1)
		c.metrics.SnapshotsEmitted.WithLabelValues(s.Window).Inc()
	}
	c.remember(snapshots)

	for _, sink := range c.sinks {
		if err := sink.Publish(ctx, snapshots); err != nil {
			c.metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
			c.errors.Handle(err, sink.Name())
		}
	}
}

// append writes one record. An unrecoverable failure drops the record and
// ingestion carries on.
func (c *Coordinator) append(ctx context.Context, r journal.Record) {
	start := c.now()
	err := c.journal.Append(ctx, r)
	c.metrics.AppendLatency.Observe(c.now().Sub(start).Seconds())

	if err != nil {
		c.writeFailures.Add(1)
		c.metrics.WriteFailures.Inc()
		c.Logger.Error("Dropping %s record: %v", r.Kind, err)
		return
	}
	c.appended.Add(1)
	c.metrics.RecordsAppended.WithLabelValues(string(r.Kind)).Inc()
}

// -----------------------------------------------------------------------------

func (c *Coordinator) remember(snapshots []models.MSnapshot) {
	c.latestMu.Lock()
	defer c.latestMu.Unlock()
	add(c.latest, snapshots)
}

// add indexes snapshots by symbol and window into into.
func add(into map[string]map[string]models.MSnapshot, snapshots []models.MSnapshot) {
	for _, s := range snapshots {
		windows, ok := into[s.Symbol]
		if !ok {
			windows = make(map[string]models.MSnapshot)
			into[s.Symbol] = windows
		}
		windows[s.Window] = s
	}
}

func group(snapshots []models.MSnapshot) map[string]map[string]models.MSnapshot {
	grouped := make(map[string]map[string]models.MSnapshot)
	add(grouped, snapshots)
	return grouped
}

func (c *Coordinator) setCurrent(snapshots []models.MSnapshot) {
	c.latestMu.Lock()
	defer c.latestMu.Unlock()
	c.current = snapshots
}

// -----------------------------------------------------------------------------

// Stats returns the pipeline counters.
func (c *Coordinator) Stats() models.MPipelineMetrics {
	stats := models.MPipelineMetrics{
		QuotesReceived:   c.supervisor.Received(),
		QuotesDropped:    c.queue.Dropped(),
		RecordsAppended:  c.appended.Load(),
		WriteFailures:    c.writeFailures.Load(),
		SnapshotsEmitted: c.snapshots.Load(),
		SinkFailures:     c.errors.Count(),
		DecodeErrors:     c.supervisor.DecodeErrors(),
		Reconnects:       c.supervisor.Reconnects(),
		QueueDepth:       c.queue.Len(),
	}
	if s, ok := c.journal.(segmenter); ok {
		stats.JournalSegment = s.Segment()
	}
	return stats
}

// LatestData returns a copy of the most recent snapshot per symbol and window
// together with the counters.
func (c *Coordinator) LatestData() models.MLatestData {
	c.latestMu.RLock()
	snapshots := make(map[string]map[string]models.MSnapshot, len(c.latest))
	for symbol, windows := range c.latest {
		copied := make(map[string]models.MSnapshot, len(windows))
		for w, s := range windows {
			copied[w] = s
		}
		snapshots[symbol] = copied
	}
	var current map[string]map[string]models.MSnapshot
	if len(c.current) > 0 {
		current = group(c.current)
	}
	c.latestMu.RUnlock()

	return models.MLatestData{
		Type:      "INITIAL",
		Snapshots: snapshots,
		Current:   current,
		Timestamp: c.now().UnixMilli(),
		Metrics:   c.Stats(),
	}
}
