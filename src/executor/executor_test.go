package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"alert-bridge/src/protocol"
	"alert-bridge/src/transport"
)

// scriptedSession returns one canned outcome per call, in order. The
// last outcome repeats once the script runs out.
type scriptedSession struct {
	outcomes  []callOutcome
	calls     int
	callTimes []time.Time
}

type callOutcome struct {
	resp protocol.Response
	err  error
}

func (s *scriptedSession) Call(ctx context.Context, command any) (protocol.Response, error) {
	s.callTimes = append(s.callTimes, time.Now())
	i := s.calls
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.calls++
	return s.outcomes[i].resp, s.outcomes[i].err
}

func ok() callOutcome {
	return callOutcome{resp: protocol.Response{"RES": "OK"}}
}

func rejected(status string) callOutcome {
	return callOutcome{resp: protocol.Response{"RES": status}}
}

func faulted() callOutcome {
	return callOutcome{err: &transport.Fault{Phase: transport.PhaseSend, Err: fmt.Errorf("connection refused")}}
}

func TestFirstAttemptSuccess(t *testing.T) {
	sess := &scriptedSession{outcomes: []callOutcome{ok()}}
	ex := New(sess, 5, 10*time.Millisecond)

	result, err := ex.Execute(context.Background(), protocol.OrderCommand{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", result.Attempts)
	}
	if sess.calls != 1 {
		t.Errorf("Expected exactly 1 call, got: %d", sess.calls)
	}
	if !result.Response.OK() {
		t.Errorf("Expected OK response")
	}
}

// TestEarlyTermination verifies that no further attempts are made once
// an attempt succeeds.
func TestEarlyTermination(t *testing.T) {
	sess := &scriptedSession{outcomes: []callOutcome{faulted(), rejected("BUSY"), ok(), faulted()}}
	ex := New(sess, 5, 5*time.Millisecond)

	result, err := ex.Execute(context.Background(), protocol.OrderCommand{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Attempts != 3 {
		t.Errorf("Expected success on attempt 3, got: %d", result.Attempts)
	}
	if sess.calls != 3 {
		t.Errorf("Expected exactly 3 calls, got: %d", sess.calls)
	}
}

func TestExhaustionOnTransportFaults(t *testing.T) {
	sess := &scriptedSession{outcomes: []callOutcome{faulted()}}
	ex := New(sess, 3, 20*time.Millisecond)

	start := time.Now()
	_, err := ex.Execute(context.Background(), protocol.OrderCommand{})
	elapsed := time.Since(start)

	if sess.calls != 3 {
		t.Errorf("Expected exactly maxAttempts=3 calls, got: %d", sess.calls)
	}

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected *RetryExhaustedError, got: %T %v", err, err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Expected 3 attempts recorded, got: %d", exhausted.Attempts)
	}
	if exhausted.LastErr == nil {
		t.Errorf("Expected last fault to be carried")
	}

	// 2 inter-attempt delays for 3 attempts
	if elapsed < 40*time.Millisecond {
		t.Errorf("Expected at least 40ms of retry delay, got: %v", elapsed)
	}
}

func TestExhaustionOnRejectedReplies(t *testing.T) {
	sess := &scriptedSession{outcomes: []callOutcome{rejected("ERR_MARGIN")}}
	ex := New(sess, 5, time.Millisecond)

	_, err := ex.Execute(context.Background(), protocol.OrderCommand{})

	if sess.calls != 5 {
		t.Errorf("Expected exactly 5 calls, got: %d", sess.calls)
	}

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected *RetryExhaustedError, got: %T %v", err, err)
	}
	if exhausted.LastResponse.Status() != "ERR_MARGIN" {
		t.Errorf("Expected last response to be carried, got: %+v", exhausted.LastResponse)
	}
}

func TestAttemptsSeparatedByRetryDelay(t *testing.T) {
	sess := &scriptedSession{outcomes: []callOutcome{faulted()}}
	delay := 30 * time.Millisecond
	ex := New(sess, 3, delay)

	_, _ = ex.Execute(context.Background(), protocol.OrderCommand{})

	if len(sess.callTimes) != 3 {
		t.Fatalf("Expected 3 recorded attempts, got: %d", len(sess.callTimes))
	}
	for i := 1; i < len(sess.callTimes); i++ {
		gap := sess.callTimes[i].Sub(sess.callTimes[i-1])
		if gap < delay {
			t.Errorf("Attempts %d->%d separated by %v, expected >= %v", i, i+1, gap, delay)
		}
	}
}

// TestCancelDuringWait verifies the inter-attempt wait is a
// cancellation point.
func TestCancelDuringWait(t *testing.T) {
	sess := &scriptedSession{outcomes: []callOutcome{faulted()}}
	ex := New(sess, 5, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := ex.Execute(ctx, protocol.OrderCommand{})
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("Cancellation took too long: %v", elapsed)
	}
	if sess.calls != 1 {
		t.Errorf("Expected 1 call before cancellation, got: %d", sess.calls)
	}
}

func TestNonTransportErrorNotRetried(t *testing.T) {
	encodeErr := fmt.Errorf("encode request: unsupported type")
	sess := &scriptedSession{outcomes: []callOutcome{{err: encodeErr}}}
	ex := New(sess, 5, time.Millisecond)

	_, err := ex.Execute(context.Background(), protocol.OrderCommand{})

	if sess.calls != 1 {
		t.Errorf("Expected no retries for a non-transport error, got %d calls", sess.calls)
	}
	if !errors.Is(err, encodeErr) {
		t.Errorf("Expected the original error, got: %v", err)
	}
}

func TestDefaultsApplied(t *testing.T) {
	ex := New(&scriptedSession{outcomes: []callOutcome{ok()}}, 0, 0)

	if ex.maxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected default maxAttempts %d, got: %d", DefaultMaxAttempts, ex.maxAttempts)
	}
	if ex.retryDelay != DefaultRetryDelay {
		t.Errorf("Expected default retryDelay %v, got: %v", DefaultRetryDelay, ex.retryDelay)
	}
}
