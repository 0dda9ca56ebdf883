package analysis

import (
	"math"
	"sort"
	"time"

	"quote-observer/src/analysis/core"
	"quote-observer/src/logger"
	"quote-observer/src/models"
)

// Analyzer turns a stream of quotes into per-symbol rolling statistics, one
// accumulator per (symbol, window). Windows are aligned to multiples of their
// length, so a 1m window always starts on a minute boundary.
//
// Analyzer is not safe for concurrent use. It is owned by a single consumer
// goroutine; anything else receives snapshot copies only.
type Analyzer struct {
	windows []window
	states  map[stateKey]*symbolState
	symbols []string
	Logger  *logger.Logger
}

type window struct {
	name   string
	length int64 // ms
}

type stateKey struct {
	symbol string
	window string
}

// symbolState is the live accumulator for one symbol in one window.
type symbolState struct {
	start, end    int64
	stats         core.Welford
	open, last    float64
	min, max      float64
	volume        float64
	lastEventTime int64

	// close of the previous window, for the change figure
	prevClose    float64
	hasPrevClose bool
}

// -----------------------------------------------------------------------------

// NewAnalyzer creates an analyzer for the given named windows. Windows shorter
// than a millisecond are ignored.
func NewAnalyzer(windows map[string]time.Duration, log *logger.Logger) *Analyzer {
	a := &Analyzer{
		states: make(map[stateKey]*symbolState),
		Logger: log,
	}

	for name, d := range windows {
		if d.Milliseconds() <= 0 {
			log.Warning("Ignoring analysis window %s: too short", name)
			continue
		}
		a.windows = append(a.windows, window{name: name, length: d.Milliseconds()})
	}

	// Shortest first, so results come out in a stable order.
	sort.Slice(a.windows, func(i, j int) bool {
		if a.windows[i].length != a.windows[j].length {
			return a.windows[i].length < a.windows[j].length
		}
		return a.windows[i].name < a.windows[j].name
	})

	return a
}

// -----------------------------------------------------------------------------

// Ingest folds q into every window of its symbol. For each window whose end
// the quote's event time has reached, the pre-reset state is returned as a
// snapshot and a new window containing q is started.
func (a *Analyzer) Ingest(q models.MQuote) []models.MSnapshot {
	var snapshots []models.MSnapshot

	for _, w := range a.windows {
		key := stateKey{symbol: q.Symbol, window: w.name}
		st, ok := a.states[key]
		if !ok {
			st = &symbolState{}
			a.states[key] = st
			a.symbols = appendSorted(a.symbols, q.Symbol)
		}

		if st.stats.Count() > 0 && q.EventTime >= st.end {
			snapshots = append(snapshots, st.snapshot(q.Symbol, w.name, false))
			st.reset()
		}
		if st.stats.Count() == 0 {
			st.reopen(q.EventTime, w.length)
		}

		st.add(q)
	}

	return snapshots
}

// -----------------------------------------------------------------------------

// Expire closes every non-empty window whose end is at or before nowMs, even if
// no newer quote arrived to trigger it. Used by the periodic window check.
func (a *Analyzer) Expire(nowMs int64) []models.MSnapshot {
	var snapshots []models.MSnapshot

	a.each(func(symbol string, w window, st *symbolState) {
		if st.stats.Count() > 0 && nowMs >= st.end {
			snapshots = append(snapshots, st.snapshot(symbol, w.name, false))
			st.reset()
		}
	})

	return snapshots
}

// -----------------------------------------------------------------------------

// Flush emits a partial snapshot for every non-empty window and resets them.
// Called once at shutdown.
func (a *Analyzer) Flush() []models.MSnapshot {
	var snapshots []models.MSnapshot

	a.each(func(symbol string, w window, st *symbolState) {
		if st.stats.Count() > 0 {
			snapshots = append(snapshots, st.snapshot(symbol, w.name, true))
			st.reset()
		}
	})

	return snapshots
}

// -----------------------------------------------------------------------------

// Peek returns a copy of the current state of one symbol's window without
// resetting it.
func (a *Analyzer) Peek(symbol, windowName string) (models.MSnapshot, bool) {
	st, ok := a.states[stateKey{symbol: symbol, window: windowName}]
	if !ok || st.stats.Count() == 0 {
		return models.MSnapshot{}, false
	}
	return st.snapshot(symbol, windowName, true), true
}

// Current returns a copy of every non-empty window that is still open, by
// symbol then by window length.
func (a *Analyzer) Current() []models.MSnapshot {
	var snapshots []models.MSnapshot
	a.each(func(symbol string, w window, _ *symbolState) {
		if s, ok := a.Peek(symbol, w.name); ok {
			snapshots = append(snapshots, s)
		}
	})
	return snapshots
}

// -----------------------------------------------------------------------------

// Windows returns the configured window names, shortest first.
func (a *Analyzer) Windows() []string {
	names := make([]string, len(a.windows))
	for i, w := range a.windows {
		names[i] = w.name
	}
	return names
}

// -----------------------------------------------------------------------------

// each visits states by symbol, then by window length.
func (a *Analyzer) each(fn func(symbol string, w window, st *symbolState)) {
	for _, symbol := range a.symbols {
		for _, w := range a.windows {
			if st, ok := a.states[stateKey{symbol: symbol, window: w.name}]; ok {
				fn(symbol, w, st)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *symbolState) align(ts, length int64) {
	s.start = ts - mod(ts, length)
	s.end = s.start + length
}

// reopen starts the window for the first quote after a reset. A closed window
// is never reopened: a late quote lands in the window following it.
func (s *symbolState) reopen(ts, length int64) {
	prevEnd := s.end
	s.align(ts, length)
	if s.hasPrevClose && s.start < prevEnd {
		s.start = prevEnd
		s.end = prevEnd + length
	}
}

func (s *symbolState) add(q models.MQuote) {
	if s.stats.Count() == 0 {
		s.open = q.Price
		s.min = q.Price
		s.max = q.Price
	}
	s.stats.Add(q.Price)
	s.last = q.Price
	s.min = math.Min(s.min, q.Price)
	s.max = math.Max(s.max, q.Price)
	s.volume += q.Volume
	if q.EventTime > s.lastEventTime {
		s.lastEventTime = q.EventTime
	}
}

func (s *symbolState) reset() {
	s.prevClose = s.last
	s.hasPrevClose = true

	s.stats.Reset()
	s.open, s.last, s.min, s.max, s.volume = 0, 0, 0, 0, 0
	s.lastEventTime = 0
}

func (s *symbolState) snapshot(symbol, windowName string, partial bool) models.MSnapshot {
	// Change vs previous window close if there was one, else vs this open.
	reference := s.open
	if s.hasPrevClose {
		reference = s.prevClose
	}

	return models.MSnapshot{
		Symbol:         symbol,
		Window:         windowName,
		WindowStart:    s.start,
		WindowEnd:      s.end,
		Count:          s.stats.Count(),
		Mean:           s.stats.Mean(),
		Variance:       s.stats.Variance(),
		StdDev:         s.stats.StdDev(),
		Open:           s.open,
		Close:          s.last,
		Min:            s.min,
		Max:            s.max,
		Volume:         s.volume,
		PriceChangePct: core.CalculateChangePercent(s.last, reference),
		LastEventTime:  s.lastEventTime,
		Partial:        partial,
	}
}

// -----------------------------------------------------------------------------

// mod is a floored modulo so pre-epoch timestamps still align downwards.
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func appendSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
