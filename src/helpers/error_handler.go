package helpers

import (
	"context"
	"sync/atomic"
	"time"

	"quote-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryLinear runs fn up to attempts times. After the n-th failure it waits
// n*step before trying again. It stops early when fn returns an error that
// retryable rejects or when ctx is done, and returns the last error seen.
func RetryLinear(ctx context.Context, attempts int, step time.Duration, retryable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts || (retryable != nil && !retryable(err)) {
			break
		}

		timer := time.NewTimer(time.Duration(attempt) * step)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}

	return lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts and logs errors that are handled without stopping the
// pipeline. Safe for concurrent use.
type ErrorHandler struct {
	Logger *logger.Logger
	count  atomic.Uint64
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.count.Add(1)
		e.Logger.Error("Error in %s: %v", context, err)
	}
}

// Count returns the number of errors handled so far.
func (e *ErrorHandler) Count() uint64 {
	return e.count.Load()
}
