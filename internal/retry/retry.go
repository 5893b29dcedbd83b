package retry

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/famgate/famgate/internal/apperr"
)

// Classifier is the slice of apperr.Classifier the wrapper needs.
type Classifier interface {
	Classify(err error, op apperr.Op) *apperr.Error
}

// Runner executes operations with classification and exponential backoff.
type Runner struct {
	policy Policy
	cls    Classifier
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRunner wires a policy and classifier together. The sleeper is injectable
// for deterministic tests.
func NewRunner(policy Policy, cls Classifier) *Runner {
	return &Runner{policy: policy, cls: cls, sleep: sleepCtx}
}

// WithSleeper replaces the delay function. Test hook.
func (r *Runner) WithSleeper(fn func(ctx context.Context, d time.Duration) error) *Runner {
	r.sleep = fn
	return r
}

// Do executes op, retrying retryable failures up to the policy's attempt
// ceiling. The final attempt's classified error is surfaced; earlier failures
// are observable only through the classifier's recorder.
func (r *Runner) Do(ctx context.Context, op apperr.Op, fn func(ctx context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.Base
	exp.Multiplier = 2
	exp.MaxInterval = r.policy.Max
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	attempts := r.policy.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var classified *apperr.Error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		classified = r.cls.Classify(err, op)
		if attempt == attempts-1 || !r.policy.ShouldRetry(classified) {
			return classified
		}
		wait := exp.NextBackOff()
		if r.policy.Jitter != nil {
			wait += r.policy.Jitter()
		}
		if err := r.sleep(ctx, wait); err != nil {
			return r.cls.Classify(err, op)
		}
	}
	return classified
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
