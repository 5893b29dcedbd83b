// Package retry implements the backoff policy shared by the generic retry
// wrapper and the offline queue's replay logic.
package retry

import (
	"math/rand"
	"time"

	"github.com/famgate/famgate/internal/apperr"
)

const (
	DefaultBase        = 1000 * time.Millisecond
	DefaultMax         = 30 * time.Second
	DefaultJitterSpan  = 1000 * time.Millisecond
	DefaultMaxAttempts = 3
)

// Policy computes retry decisions and delays. Jitter is injectable so tests
// can pin it to zero.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
	Jitter      func() time.Duration
}

// NewPolicy returns the production policy: 1s base, doubled per attempt,
// capped at 30s, plus uniform jitter in [0, 1s).
func NewPolicy() Policy {
	return Policy{
		Base:        DefaultBase,
		Max:         DefaultMax,
		MaxAttempts: DefaultMaxAttempts,
		Jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(DefaultJitterSpan)))
		},
	}
}

// ShouldRetry reports whether e is worth another attempt. Unknown failures are
// not assumed transient.
func (p Policy) ShouldRetry(e *apperr.Error) bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case apperr.RetryableError, apperr.NetworkError, apperr.TimeoutError:
		return true
	}
	return false
}

// Delay returns the backoff before attempt n (0-based): min(Base·2^n, Max)
// plus jitter. Monotonically non-decreasing in n for zero jitter.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			d = p.Max
			break
		}
	}
	if d > p.Max {
		d = p.Max
	}
	if p.Jitter != nil {
		d += p.Jitter()
	}
	return d
}
