package offline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/model"
	"github.com/famgate/famgate/internal/netwatch"
	"github.com/famgate/famgate/internal/retry"
)

func testQueue(off *atomic.Bool) *Queue {
	cls := apperr.NewClassifier(nil, zerolog.Nop())
	p := retry.NewPolicy()
	p.Jitter = nil
	q := New(cls, p, off.Load, DefaultMaxAge, zerolog.Nop())
	q.WithSleeper(func(context.Context, time.Duration) error { return nil })
	return q
}

func transientErr() error {
	return &apperr.ProviderError{ProviderCode: "unavailable", Err: errors.New("down")}
}

func TestExecuteOnlineRunsDirectly(t *testing.T) {
	var off atomic.Bool
	q := testQueue(&off)

	calls := 0
	err := q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
		calls++
		return nil
	}, DefaultOptions())
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
	if q.Len() != 0 {
		t.Fatalf("queue depth = %d, want 0", q.Len())
	}
}

func TestExecuteOnlineNonRetryablePropagates(t *testing.T) {
	var off atomic.Bool
	q := testQueue(&off)

	err := q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
		return model.ErrValidation
	}, DefaultOptions())
	if apperr.CodeOf(err) != apperr.ValidationError {
		t.Fatalf("err = %v, want validation", err)
	}
	if q.Len() != 0 {
		t.Fatalf("non-retryable failure was queued")
	}
}

func TestExecuteOfflineWithoutQueueing(t *testing.T) {
	var off atomic.Bool
	off.Store(true)
	q := testQueue(&off)

	err := q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
		t.Fatal("op must not run while offline")
		return nil
	}, Options{QueueOnOffline: false})
	if apperr.CodeOf(err) != apperr.OfflineError {
		t.Fatalf("err = %v, want offline", err)
	}
	if q.Len() != 0 {
		t.Fatalf("queue depth = %d, want untouched", q.Len())
	}
}

func TestQueuedWriteReplayedOnReconnect(t *testing.T) {
	var off atomic.Bool
	off.Store(true)
	q := testQueue(&off)

	w := netwatch.New(zerolog.Nop())
	q.Bind(w)
	w.Set(netwatch.State{})

	var ran atomic.Int32
	result := make(chan error, 1)
	go func() {
		result <- q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
			ran.Add(1)
			return nil
		}, DefaultOptions())
	}()

	// Wait for the entry to land in the queue.
	waitFor(t, func() bool { return q.Len() == 1 })
	if ran.Load() != 0 {
		t.Fatal("op ran while offline")
	}

	off.Store(false)
	w.Set(netwatch.State{Connected: true, InternetReachable: true})

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("replayed op returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("queued caller never unblocked")
	}
	if ran.Load() != 1 {
		t.Fatalf("op ran %d times, want 1", ran.Load())
	}
	if q.Len() != 0 {
		t.Fatalf("queue depth = %d after drain", q.Len())
	}
}

func TestReplayDeliversRealFailure(t *testing.T) {
	var off atomic.Bool
	off.Store(true)
	q := testQueue(&off)

	result := make(chan error, 1)
	go func() {
		result <- q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
			return model.ErrConflict
		}, DefaultOptions())
	}()
	waitFor(t, func() bool { return q.Len() == 1 })

	off.Store(false)
	q.Drain(context.Background())

	select {
	case err := <-result:
		if apperr.CodeOf(err) != apperr.BusinessError {
			t.Fatalf("err = %v, want business error from replay", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("queued caller never unblocked")
	}
}

func TestReplayDropsAfterMaxRetries(t *testing.T) {
	var off atomic.Bool
	off.Store(true)
	q := testQueue(&off)

	var attempts atomic.Int32
	result := make(chan error, 1)
	go func() {
		result <- q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
			attempts.Add(1)
			return transientErr()
		}, Options{QueueOnOffline: true, MaxRetries: 2})
	}()
	waitFor(t, func() bool { return q.Len() == 1 })

	off.Store(false)
	q.Drain(context.Background())

	select {
	case err := <-result:
		if apperr.CodeOf(err) != apperr.RetryableError {
			t.Fatalf("err = %v, want final retryable error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("queued caller never unblocked")
	}
	// MaxRetries bounds retries, so attempts is retries+1.
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if q.Len() != 0 {
		t.Fatalf("dropped entry still queued")
	}
}

func TestQueueDefaultRetriesInherited(t *testing.T) {
	var off atomic.Bool
	off.Store(true)
	q := testQueue(&off).WithMaxRetries(1)

	var attempts atomic.Int32
	result := make(chan error, 1)
	go func() {
		// Zero MaxRetries in the options picks up the queue-wide bound.
		result <- q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
			attempts.Add(1)
			return transientErr()
		}, DefaultOptions())
	}()
	waitFor(t, func() bool { return q.Len() == 1 })

	off.Store(false)
	q.Drain(context.Background())

	select {
	case <-result:
	case <-time.After(5 * time.Second):
		t.Fatal("queued caller never unblocked")
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
}

func TestQueuedTimeCeiling(t *testing.T) {
	var off atomic.Bool
	off.Store(true)
	q := testQueue(&off)

	base := time.Now()
	now := base
	q.WithClock(func() time.Time { return now })

	result := make(chan error, 1)
	go func() {
		result <- q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
			t.Error("op must not run after expiry")
			return nil
		}, DefaultOptions())
	}()
	waitFor(t, func() bool { return q.Len() == 1 })

	// Jump past the ceiling, then reconnect: the entry is expired, not replayed.
	now = base.Add(DefaultMaxAge + time.Second)
	off.Store(false)
	q.Drain(context.Background())

	select {
	case err := <-result:
		if apperr.CodeOf(err) != apperr.TimeoutError {
			t.Fatalf("err = %v, want timeout", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("queued caller never unblocked")
	}
}

func TestDrainSingleFlight(t *testing.T) {
	var off atomic.Bool
	off.Store(true)
	q := testQueue(&off)

	var runs atomic.Int32
	release := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
			runs.Add(1)
			<-release
			return nil
		}, DefaultOptions())
	}()
	waitFor(t, func() bool { return q.Len() == 1 })

	off.Store(false)
	go q.Drain(context.Background())
	waitFor(t, func() bool { return runs.Load() == 1 })

	// A second drain while the first replay is still in flight must be dropped
	// immediately, not run the entry again.
	overlap := make(chan struct{})
	go func() {
		q.Drain(context.Background())
		close(overlap)
	}()
	select {
	case <-overlap:
	case <-time.After(time.Second):
		t.Fatal("overlapping drain did not return immediately")
	}
	if runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", runs.Load())
	}

	close(release)
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("replayed op returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("queued caller never unblocked")
	}
	if runs.Load() != 1 {
		t.Fatalf("runs = %d after completion, want 1", runs.Load())
	}
}

func TestSweeperReplaysWithoutReconnectEdge(t *testing.T) {
	var off atomic.Bool
	cls := apperr.NewClassifier(nil, zerolog.Nop())
	p := retry.NewPolicy()
	p.Jitter = nil
	q := New(cls, p, off.Load, 2*time.Second, zerolog.Nop())
	q.WithSleeper(func(context.Context, time.Duration) error { return nil })

	// Transient failure while nominally online: no offline flip ever happens,
	// so only the sweeper can replay the queued entry.
	var calls atomic.Int32
	result := make(chan error, 1)
	go func() {
		result <- q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
			if calls.Add(1) == 1 {
				return transientErr()
			}
			return nil
		}, DefaultOptions())
	}()
	waitFor(t, func() bool { return q.Len() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("sweeper replay returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stranded entry never replayed")
	}
	if q.Len() != 0 {
		t.Fatalf("queue depth = %d after replay", q.Len())
	}
}

func TestNetworkFlapQueuesAndRecovers(t *testing.T) {
	var off atomic.Bool
	q := testQueue(&off)
	w := netwatch.New(zerolog.Nop())
	q.Bind(w)

	online := netwatch.State{Connected: true, InternetReachable: true}
	w.Set(online)

	// Op fails with a network error while the link is down, succeeds after.
	var linkUp atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- q.Execute(context.Background(), apperr.Op{Name: "op"}, func(context.Context) error {
			if !linkUp.Load() {
				return transientErr()
			}
			return nil
		}, DefaultOptions())
	}()

	// Flap: down, then up; the reconnect edge drains the queued entry.
	waitFor(t, func() bool { return q.Len() == 1 })
	off.Store(true)
	w.Set(netwatch.State{})
	linkUp.Store(true)
	off.Store(false)
	w.Set(online)

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("err = %v after recovery", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("caller never unblocked after flap")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
