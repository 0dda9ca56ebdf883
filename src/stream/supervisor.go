package stream

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"quote-observer/src/codec"
	"quote-observer/src/helpers"
	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/models"
	"quote-observer/src/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Options configure a Supervisor.
type Options struct {
	Symbols        []string
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	// ClosedMarketIdleFactor multiplies IdleTimeout while every subscribed
	// market is closed. Needs Scheduler.
	ClosedMarketIdleFactor int
	Backoff                Backoff
	// StableAfter is how long a session must stream before the attempt
	// counter is reset.
	StableAfter time.Duration
}

// OptionsFromConfig maps the stream section of the configuration.
func OptionsFromConfig(cfg models.MStreamConfig) Options {
	return Options{
		Symbols:                cfg.Symbols,
		ConnectTimeout:         cfg.ConnectTimeout,
		IdleTimeout:            cfg.IdleTimeout,
		ClosedMarketIdleFactor: cfg.ClosedMarketIdleFactor,
		Backoff: Backoff{
			Base:   cfg.BackoffBase,
			Cap:    cfg.BackoffCap,
			Jitter: cfg.BackoffJitter,
		},
		StableAfter: cfg.StableAfter,
	}
}

// session is one live connection attempt.
type session struct {
	id      string
	conn    interfaces.IStreamConn
	started time.Time
	log     *logger.Logger
}

// Supervisor owns the upstream connection and drives it through
// Disconnected, Connecting, Subscribing and Streaming, reconnecting with
// backoff until the context passed to Run is cancelled.
type Supervisor struct {
	opts      Options
	dialer    interfaces.IStreamDialer
	sink      interfaces.IQuoteSink
	Scheduler *utils.MarketScheduler

	state     atomic.Int32
	attempt   atomic.Int64
	sessionID atomic.Value // string
	lastQuote atomic.Int64 // unix ms, wall clock

	received     atomic.Uint64
	reconnects   atomic.Uint64
	decodeErrors atomic.Uint64

	listenersMu sync.Mutex
	listeners   []func(Transition)

	// Injected in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSupervisor(opts Options, dialer interfaces.IStreamDialer, sink interfaces.IQuoteSink, log *logger.Logger) *Supervisor {
	s := &Supervisor{
		opts:   opts,
		dialer: dialer,
		sink:   sink,
		sleep:  sleepContext,
		now:    time.Now,
		Logger: log,
	}
	s.sessionID.Store("")
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// OnTransition registers fn to be called synchronously on every state change.
// fn runs on the supervisor goroutine and must not block.
func (s *Supervisor) OnTransition(fn func(Transition)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Attempt returns the number of consecutive failures since the last stable
// session.
func (s *Supervisor) Attempt() int {
	return int(s.attempt.Load())
}

// Reconnects returns the total number of failed sessions or dials.
func (s *Supervisor) Reconnects() uint64 { return s.reconnects.Load() }

// DecodeErrors returns the number of frames that failed to decode.
func (s *Supervisor) DecodeErrors() uint64 { return s.decodeErrors.Load() }

// Received returns the number of quotes forwarded to the sink.
func (s *Supervisor) Received() uint64 { return s.received.Load() }

// Status returns a copy of the supervisor's observable state.
func (s *Supervisor) Status() models.MStreamStatus {
	return models.MStreamStatus{
		State:         s.State().String(),
		SessionID:     s.sessionID.Load().(string),
		Attempt:       s.Attempt(),
		LastQuoteTime: s.lastQuote.Load(),
	}
}

// -----------------------------------------------------------------------------

func (s *Supervisor) transition(to State, err error) {
	from := s.State()
	if from == to || !canTransition(from, to) {
		if from != to {
			s.Logger.Error("Illegal stream transition %s -> %s ignored", from, to)
		}
		return
	}
	s.state.Store(int32(to))

	t := Transition{
		From:      from,
		To:        to,
		Attempt:   s.Attempt(),
		SessionID: s.sessionID.Load().(string),
		Err:       err,
		At:        s.now(),
	}

	if err != nil {
		s.Logger.Warning("Stream %s -> %s (attempt %d): %v", from, to, t.Attempt, err)
	} else {
		s.Logger.Debug("Stream %s -> %s", from, to)
	}

	s.listenersMu.Lock()
	listeners := append([]func(Transition){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(t)
	}
}

// -----------------------------------------------------------------------------

// Run drives the connection until ctx is cancelled. It returns nil after
// entering ShuttingDown.
func (s *Supervisor) Run(ctx context.Context) error {
	s.Logger.Info("Stream supervisor starting with %d symbols", len(s.opts.Symbols))

	for {
		if ctx.Err() != nil {
			return s.shutdown()
		}

		s.transition(Connecting, nil)
		sess, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.shutdown()
			}
			if !s.disconnect(ctx, err) {
				return s.shutdown()
			}
			continue
		}

		err = s.serve(ctx, sess)
		if ctx.Err() != nil {
			return s.shutdown()
		}

		if streamed := s.now().Sub(sess.started); s.State() == Streaming && streamed >= s.opts.StableAfter {
			s.attempt.Store(0)
		}
		if !s.disconnect(ctx, err) {
			return s.shutdown()
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Supervisor) shutdown() error {
	s.transition(ShuttingDown, nil)
	s.sessionID.Store("")
	s.Logger.Info("Stream supervisor stopped")
	return nil
}

// disconnect records a failure, enters Disconnected and waits out the
// backoff. It reports false when ctx was cancelled during the wait.
func (s *Supervisor) disconnect(ctx context.Context, cause error) bool {
	attempt := s.attempt.Add(1)
	s.reconnects.Add(1)
	s.transition(Disconnected, cause)

	delay := s.opts.Backoff.Delay(int(attempt))
	s.Logger.Info("Reconnecting in %s (attempt %d)", delay.Round(time.Millisecond), attempt)
	return s.sleep(ctx, delay) == nil
}

// -----------------------------------------------------------------------------

func (s *Supervisor) connect(ctx context.Context) (*session, error) {
	id := uuid.NewString()
	s.sessionID.Store(id)

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	conn, err := s.dialer.Dial(dialCtx)
	if err != nil {
		var connErr *helpers.ConnectionError
		if !errors.As(err, &connErr) {
			err = helpers.NewConnectionError("dial", err)
		}
		return nil, err
	}

	return &session{
		id:   id,
		conn: conn,
		log:  s.Logger.With("session", id),
	}, nil
}

// -----------------------------------------------------------------------------

// serve subscribes and then streams until the connection fails or ctx is
// cancelled. The connection is always closed on return.
func (s *Supervisor) serve(ctx context.Context, sess *session) error {
	// Cancellation unblocks any pending read or write by closing the socket.
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { sess.conn.Close() }) }
	stop := context.AfterFunc(ctx, func() {
		if s.State() == Streaming {
			s.unsubscribe(sess)
		}
		closeConn()
	})
	defer func() {
		stop()
		closeConn()
	}()

	s.transition(Subscribing, nil)
	if err := s.subscribe(sess); err != nil {
		return err
	}

	s.transition(Streaming, nil)
	sess.started = s.now()
	sess.log.Info("Streaming %d symbols", len(s.opts.Symbols))

	return s.stream(ctx, sess)
}

// -----------------------------------------------------------------------------

func (s *Supervisor) subscribe(sess *session) error {
	for _, symbol := range s.opts.Symbols {
		frame, err := codec.EncodeSubscribe(symbol)
		if err != nil {
			// Symbols are validated at startup; treat as a protocol fault.
			return helpers.NewProtocolError("encode subscribe "+symbol, err)
		}
		if err := s.write(sess, frame); err != nil {
			return helpers.NewConnectionError("subscribe "+symbol, err)
		}
	}
	return nil
}

// unsubscribe is best-effort on the way out.
func (s *Supervisor) unsubscribe(sess *session) {
	for _, symbol := range s.opts.Symbols {
		frame, err := codec.EncodeUnsubscribe(symbol)
		if err != nil {
			continue
		}
		if err := s.write(sess, frame); err != nil {
			sess.log.Debug("Unsubscribe %s failed: %v", symbol, err)
			return
		}
	}
}

func (s *Supervisor) write(sess *session, frame []byte) error {
	if err := sess.conn.SetWriteDeadline(time.Now().Add(s.opts.ConnectTimeout)); err != nil {
		return err
	}
	return sess.conn.WriteMessage(websocket.TextMessage, frame)
}

// -----------------------------------------------------------------------------

func (s *Supervisor) stream(ctx context.Context, sess *session) error {
	for {
		idle := s.idleTimeout()
		if err := sess.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			return helpers.NewConnectionError("set read deadline", err)
		}

		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return helpers.NewConnectionError("idle timeout after "+idle.String(), err)
			}
			return helpers.NewConnectionError("read", err)
		}

		frame, err := codec.DecodeFrame(data)
		if err != nil {
			s.decodeErrors.Add(1)
			sess.log.Warning("Skipping frame: %v", err)
			continue
		}

		switch frame.Kind {
		case codec.FrameTrade:
			receivedAt := s.now().UnixMilli()
			for q := range frame.Quotes() {
				q.ReceivedAt = receivedAt
				s.received.Add(1)
				s.sink.Offer(q)
			}
			if frame.Len() > 0 {
				s.lastQuote.Store(receivedAt)
			}
		case codec.FramePing:
			sess.log.Debug("Ping")
		case codec.FrameError:
			sess.log.Error("Upstream error: %s", frame.Message)
		default:
			sess.log.Debug("Ignoring %q message", frame.Type)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Supervisor) idleTimeout() time.Duration {
	if s.Scheduler == nil {
		return s.opts.IdleTimeout
	}
	return s.Scheduler.IdleTimeout(s.opts.IdleTimeout, s.opts.ClosedMarketIdleFactor)
}
