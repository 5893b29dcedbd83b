// Package offline buffers write operations while the device is disconnected
// and replays them after reconnection. A queued caller blocks on the entry's
// completion channel and receives the replayed operation's real outcome; no
// polling is involved.
package offline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/netwatch"
	"github.com/famgate/famgate/internal/retry"
)

// DefaultMaxAge is the queued-time ceiling: an entry not completed within it
// is rejected with a timeout regardless of remaining retries.
const DefaultMaxAge = 5 * time.Minute

// Operation is a deferred write.
type Operation func(ctx context.Context) error

// Options controls Execute for a single call. Zero MaxRetries inherits the
// queue-wide default.
type Options struct {
	QueueOnOffline bool
	MaxRetries     int
}

// DefaultOptions mirror the documented defaults.
func DefaultOptions() Options { return Options{QueueOnOffline: true} }

// DefaultMaxRetries bounds replay attempts when neither the options nor the
// queue configure one.
const DefaultMaxRetries = 3

type entry struct {
	id         string
	op         Operation
	opctx      apperr.Op
	enqueuedAt time.Time
	attempts   int
	maxRetries int

	once sync.Once
	done chan error
}

// Queue is the offline operation queue. Construct with New, bind it to a
// netwatch.Watcher, and Start its expiry sweeper.
type Queue struct {
	log        zerolog.Logger
	cls        *apperr.Classifier
	policy     retry.Policy
	offline    func() bool
	maxAge     time.Duration
	maxRetries int

	mu      sync.Mutex
	entries map[string]*entry

	draining uint32

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a queue. offline reports the current derived offline mode.
func New(cls *apperr.Classifier, policy retry.Policy, offline func() bool, maxAge time.Duration, log zerolog.Logger) *Queue {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Queue{
		log:        log,
		cls:        cls,
		policy:     policy,
		offline:    offline,
		maxAge:     maxAge,
		maxRetries: DefaultMaxRetries,
		entries:    make(map[string]*entry),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// WithMaxRetries overrides the queue-wide replay retry bound.
func (q *Queue) WithMaxRetries(n int) *Queue {
	if n > 0 {
		q.maxRetries = n
	}
	return q
}

// WithClock overrides the time source. Test hook.
func (q *Queue) WithClock(now func() time.Time) *Queue { q.now = now; return q }

// WithSleeper overrides the backoff delay function. Test hook.
func (q *Queue) WithSleeper(fn func(ctx context.Context, d time.Duration) error) *Queue {
	q.sleep = fn
	return q
}

// Bind wires the queue to connectivity flips: reconnection triggers a drain.
func (q *Queue) Bind(w *netwatch.Watcher) {
	w.OnReconnect(func() { go q.Drain(context.Background()) })
	w.OnDisconnect(func() {
		q.log.Info().Int("queued", q.Len()).Msg("went offline, queuing writes")
	})
}

// Start runs the background sweeper until ctx is cancelled. Each tick expires
// stale entries and, while online, drains leftovers — entries queued after an
// online transient failure never see a reconnect edge, so the sweeper is their
// only replay path.
func (q *Queue) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(q.maxAge / 10)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				q.expireStale()
				if !q.offline() && q.Len() > 0 {
					q.Drain(ctx)
				}
			}
		}
	}()
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Execute runs op with offline support.
//
//   - Online: run directly; a network-class failure falls through to queuing
//     when opts.QueueOnOffline is set, any other failure propagates classified.
//   - Offline with QueueOnOffline: enqueue and block until the entry is
//     replayed, expired, or ctx is cancelled.
//   - Offline without QueueOnOffline: immediate OFFLINE_ERROR; the queue is
//     untouched.
func (q *Queue) Execute(ctx context.Context, opctx apperr.Op, op Operation, opts Options) error {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = q.maxRetries
	}

	if !q.offline() {
		err := op(ctx)
		if err == nil {
			return nil
		}
		ce := q.cls.Classify(err, opctx)
		if opts.QueueOnOffline && q.policy.ShouldRetry(ce) {
			return q.enqueueAndWait(ctx, opctx, op, opts)
		}
		return ce
	}

	if !opts.QueueOnOffline {
		return apperr.New(apperr.OfflineError, opctx, fmt.Errorf("offline and queuing disabled"))
	}
	return q.enqueueAndWait(ctx, opctx, op, opts)
}

func (q *Queue) enqueueAndWait(ctx context.Context, opctx apperr.Op, op Operation, opts Options) error {
	e := &entry{
		id:         uuid.NewString(),
		op:         op,
		opctx:      opctx,
		enqueuedAt: q.now(),
		maxRetries: opts.MaxRetries,
		done:       make(chan error, 1),
	}
	q.mu.Lock()
	q.entries[e.id] = e
	depth := len(q.entries)
	q.mu.Unlock()
	queuedTotal.Inc()
	queueDepth.Set(float64(depth))
	q.log.Info().Str("op", opctx.Name).Str("entry", e.id).Int("depth", depth).Msg("queued offline operation")

	select {
	case <-ctx.Done():
		// The entry stays queued; its buffered channel absorbs the eventual
		// outcome without blocking the drainer.
		return q.cls.Classify(ctx.Err(), opctx)
	case err := <-e.done:
		return err
	}
}

// Drain replays all currently queued entries concurrently. It is
// single-flight: overlapping drain requests (for example from a network flap)
// are dropped while one is active.
func (q *Queue) Drain(ctx context.Context) {
	if !atomic.CompareAndSwapUint32(&q.draining, 0, 1) {
		q.log.Debug().Msg("drain already in progress, skipping")
		return
	}
	defer atomic.StoreUint32(&q.draining, 0)

	q.mu.Lock()
	snapshot := make([]*entry, 0, len(q.entries))
	for _, e := range q.entries {
		snapshot = append(snapshot, e)
	}
	q.mu.Unlock()
	if len(snapshot) == 0 {
		return
	}
	q.log.Info().Int("entries", len(snapshot)).Msg("draining offline queue")

	var wg sync.WaitGroup
	for _, e := range snapshot {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			q.replay(ctx, e)
		}(e)
	}
	wg.Wait()
	queueDepth.Set(float64(q.Len()))
}

func (q *Queue) replay(ctx context.Context, e *entry) {
	for {
		if q.now().Sub(e.enqueuedAt) >= q.maxAge {
			expiredTotal.Inc()
			q.finish(e, apperr.New(apperr.TimeoutError, e.opctx,
				fmt.Errorf("queued operation exceeded %s ceiling", q.maxAge)))
			return
		}
		err := e.op(ctx)
		if err == nil {
			replayedTotal.Inc()
			q.finish(e, nil)
			return
		}
		ce := q.cls.Classify(err, e.opctx)
		e.attempts++
		if e.attempts > e.maxRetries || !q.policy.ShouldRetry(ce) {
			droppedTotal.Inc()
			q.log.Warn().Str("op", e.opctx.Name).Str("entry", e.id).
				Int("attempts", e.attempts).Err(ce).Msg("dropping queued operation")
			q.finish(e, ce)
			return
		}
		if err := q.sleep(ctx, q.policy.Delay(e.attempts-1)); err != nil {
			q.finish(e, q.cls.Classify(err, e.opctx))
			return
		}
	}
}

// expireStale enforces the queued-time ceiling between drains.
func (q *Queue) expireStale() {
	q.mu.Lock()
	var stale []*entry
	for _, e := range q.entries {
		if q.now().Sub(e.enqueuedAt) >= q.maxAge {
			stale = append(stale, e)
		}
	}
	q.mu.Unlock()
	for _, e := range stale {
		expiredTotal.Inc()
		q.finish(e, apperr.New(apperr.TimeoutError, e.opctx,
			fmt.Errorf("queued operation exceeded %s ceiling", q.maxAge)))
	}
}

func (q *Queue) finish(e *entry, err error) {
	e.once.Do(func() {
		q.mu.Lock()
		delete(q.entries, e.id)
		depth := len(q.entries)
		q.mu.Unlock()
		queueDepth.Set(float64(depth))
		e.done <- err
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
