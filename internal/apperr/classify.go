package apperr

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/model"
)

// Provider code tables. First matching rule wins; partial matches never
// combine.
var (
	storageCodes = map[string]Code{
		"firestore/unavailable":         StorageError,
		"firestore/aborted":             StorageError,
		"firestore/data-loss":           StorageError,
		"firestore/internal":            StorageError,
		"firestore/not-found":           StorageError,
		"firestore/already-exists":      StorageError,
		"firestore/failed-precondition": StorageError,
		"firestore/resource-exhausted":  StorageError,
		"firestore/permission-denied":   PermissionError,
		"firestore/unauthenticated":     AuthError,
		"firestore/deadline-exceeded":   TimeoutError,
	}

	// retryableCodes are provider codes known to be transient.
	retryableCodes = map[string]bool{
		"firestore/unavailable":        true,
		"firestore/aborted":            true,
		"firestore/resource-exhausted": true,
		"unavailable":                  true,
		"aborted":                      true,
	}
)

// Classifier turns arbitrary failures into *Error. It is an explicitly
// constructed service (not a package singleton) so tests can inspect the
// recorder in isolation.
type Classifier struct {
	rec *Recorder
	log zerolog.Logger
	now func() time.Time
}

// NewClassifier builds a classifier that records every classified failure in
// rec. rec may be nil when diagnostics are not wanted.
func NewClassifier(rec *Recorder, log zerolog.Logger) *Classifier {
	return &Classifier{rec: rec, log: log, now: time.Now}
}

// Classify maps err to a classified *Error. It always returns non-nil (given a
// non-nil err) and never panics. Every call records the failure and logs it;
// retried attempts log separately on purpose — per-attempt observability beats
// deduplication here.
func (c *Classifier) Classify(err error, op Op) *Error {
	if err == nil {
		return nil
	}
	out := c.classify(err, op)
	if c.rec != nil {
		c.rec.Record(out)
	}
	c.log.Warn().
		Str("op", op.Name).
		Str("code", string(out.Code)).
		Err(err).
		Msg("operation failed")
	return out
}

func (c *Classifier) classify(err error, op Op) *Error {
	// Already classified: keep the code, merge in missing context.
	var classified *Error
	if errors.As(err, &classified) {
		out := *classified
		if out.Op.Name == "" {
			out.Op = op
		}
		return &out
	}

	// Tagged provider variants from the adapter boundary.
	var pe *ProviderError
	if errors.As(err, &pe) {
		return c.fromProviderCode(pe, op)
	}

	// Model sentinels.
	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.wrap(StorageError, "", op, err)
	case errors.Is(err, model.ErrValidation):
		return c.wrap(ValidationError, "", op, err)
	case errors.Is(err, model.ErrConflict):
		return c.wrap(BusinessError, "", op, err)
	}

	// Context and transport failures.
	if errors.Is(err, context.DeadlineExceeded) {
		return c.wrap(TimeoutError, "", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return c.wrap(TimeoutError, "", op, err)
		}
		return c.wrap(NetworkError, "", op, err)
	}

	// Last resort: message sniffing, kept for failures that cross a boundary
	// we don't control.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection refused"):
		return c.wrap(NetworkError, "", op, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return c.wrap(TimeoutError, "", op, err)
	}

	return c.wrap(UnknownError, "", op, err)
}

func (c *Classifier) fromProviderCode(pe *ProviderError, op Op) *Error {
	code := pe.ProviderCode
	if strings.HasPrefix(code, "auth/") {
		return c.wrap(AuthError, code, op, pe)
	}
	if mapped, ok := storageCodes[code]; ok {
		return c.wrap(mapped, code, op, pe)
	}
	if retryableCodes[code] {
		return c.wrap(RetryableError, code, op, pe)
	}
	return c.wrap(UnknownError, code, op, pe)
}

func (c *Classifier) wrap(code Code, providerCode string, op Op, cause error) *Error {
	return &Error{
		Code:    code,
		Message: friendlyMessage(code, providerCode),
		Op:      op,
		Cause:   cause,
		At:      c.now(),
	}
}
