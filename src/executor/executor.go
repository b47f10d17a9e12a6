package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"alert-bridge/src/protocol"
	"alert-bridge/src/transport"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 5 * time.Second
)

// Caller is the protocol session surface the executor drives.
type Caller interface {
	Call(ctx context.Context, command any) (protocol.Response, error)
}

// Executor wraps session calls with a bounded fixed-delay retry
// policy. Both transport faults and non-OK replies trigger a retry;
// anything else (encode errors, cancellation) fails immediately.
type Executor struct {
	session     Caller
	maxAttempts int
	retryDelay  time.Duration
}

func New(session Caller, maxAttempts int, retryDelay time.Duration) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Executor{
		session:     session,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// Result is a successful delivery: the OK reply plus how many
// attempts it took.
type Result struct {
	Response protocol.Response
	Attempts int
}

// RetryExhaustedError is the terminal failure after every attempt was
// used up. It carries whatever the last attempt produced.
type RetryExhaustedError struct {
	Attempts     int
	LastResponse protocol.Response
	LastErr      error
}

func (e *RetryExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("delivery failed after %d attempts: %v", e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("delivery failed after %d attempts: terminal replied %q", e.Attempts, e.LastResponse.Status())
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// Execute runs one logical delivery. On success it stops immediately;
// retryable failures wait retryDelay between attempts, and the wait is
// cut short if ctx is cancelled.
func (ex *Executor) Execute(ctx context.Context, command any) (*Result, error) {
	var lastResp protocol.Response
	var lastErr error

	for attempt := 1; attempt <= ex.maxAttempts; attempt++ {
		resp, err := ex.session.Call(ctx, command)

		if err == nil && resp.OK() {
			return &Result{Response: resp, Attempts: attempt}, nil
		}

		if err != nil {
			var fault *transport.Fault
			if !errors.As(err, &fault) {
				// edge case: non-transport errors are not retryable
				return nil, err
			}
			lastResp, lastErr = nil, err
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", ex.maxAttempts).
				Msg("Delivery attempt failed")
		} else {
			lastResp, lastErr = resp, nil
			log.Warn().
				Str("status", resp.Status()).
				Int("attempt", attempt).
				Int("max_attempts", ex.maxAttempts).
				Msg("Terminal rejected command")
		}

		if attempt == ex.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(ex.retryDelay):
		}
	}

	return nil, &RetryExhaustedError{
		Attempts:     ex.maxAttempts,
		LastResponse: lastResp,
		LastErr:      lastErr,
	}
}
