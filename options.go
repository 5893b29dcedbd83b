package famgate

// This file defines functional options that configure the Client during
// construction. Keeping them in a standalone file avoids cluttering
// client.go and makes it easy to discover all available knobs at a glance.

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/docstore"
)

// Option configures a Client during construction.
//
// Options run before the store, watcher and queue are built, so they may only
// set construction inputs. Options must be deterministic and side-effect free.
type Option func(*Client) error

// WithLogger replaces the default service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

// WithStore bypasses the configured driver and uses st directly. Primarily a
// test hook; also useful for embedding the SDK in the same process as an
// in-memory store.
func WithStore(st docstore.Store) Option {
	return func(c *Client) error {
		if st == nil {
			return fmt.Errorf("store cannot be nil")
		}
		c.store = st
		return nil
	}
}

// WithHTTPTimeout bounds each backend HTTP request, including connection and
// response read. Prefer per-request context deadlines where possible; this is
// the coarse safety net. The value must be greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.httpTimeout = d
		return nil
	}
}

// WithRecorderSize bounds the in-process diagnostic error buffer.
func WithRecorderSize(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return fmt.Errorf("recorder size must be > 0")
		}
		c.recorderSize = n
		return nil
	}
}

// WithDebugLogging wraps the rest driver's transport so each request and
// response is dumped to the log when enabled is true.
//
// Do not enable this option in production environments: dumps include headers
// and bodies.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		c.debugHTTP = enabled
		return nil
	}
}
