// Package reststore is the docstore adapter for the hosted document API (or
// the local emulator, which speaks the same protocol). Subscriptions are
// implemented by polling, since the hosted push channel is consumed by the
// mobile SDK and not exposed to this client.
package reststore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/model"
)

// DefaultPollInterval is how often watchers re-query the backend.
const DefaultPollInterval = 2 * time.Second

// Store talks to the document API over REST.
type Store struct {
	client *resty.Client
	poll   time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPollInterval overrides the watcher poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithAPIKey installs a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(s *Store) { s.client.SetAuthToken(key) }
}

// WithTransport replaces the underlying HTTP transport, e.g. to wrap it with
// request/response logging.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Store) { s.client.SetTransport(rt) }
}

// New builds a Store against baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Store {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Store{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		poll:   DefaultPollInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Collection(name string) docstore.Collection {
	return &collection{s: s, name: name}
}

func (s *Store) Healthy(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/v0/health")
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &apperr.ProviderError{
			ProviderCode: "firestore/unavailable",
			Err:          fmt.Errorf("health: status %d", resp.StatusCode()),
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

type collection struct {
	s    *Store
	name string
}

type createBody struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type updateBody struct {
	Data json.RawMessage `json:"data"`
}

type queryResult struct {
	Docs []*docstore.Doc `json:"docs"`
}

// statusErr maps an HTTP failure onto the shared error vocabulary. Not-found
// and conflict keep their sentinel identity so the optimistic-concurrency
// loop works identically across adapters; everything else becomes a tagged
// provider variant for the classifier.
func statusErr(op string, code int) error {
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, model.ErrConflict)
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", op, model.ErrValidation)
	case http.StatusUnauthorized:
		return &apperr.ProviderError{ProviderCode: "firestore/unauthenticated", Err: fmt.Errorf("%s: status %d", op, code)}
	case http.StatusForbidden:
		return &apperr.ProviderError{ProviderCode: "firestore/permission-denied", Err: fmt.Errorf("%s: status %d", op, code)}
	case http.StatusTooManyRequests:
		return &apperr.ProviderError{ProviderCode: "firestore/resource-exhausted", Err: fmt.Errorf("%s: status %d", op, code)}
	case http.StatusGatewayTimeout:
		return &apperr.ProviderError{ProviderCode: "firestore/deadline-exceeded", Err: fmt.Errorf("%s: status %d", op, code)}
	default:
		return &apperr.ProviderError{ProviderCode: "firestore/unavailable", Err: fmt.Errorf("%s: status %d", op, code)}
	}
}

func (c *collection) Create(ctx context.Context, id string, data json.RawMessage) (*docstore.Doc, error) {
	var out docstore.Doc
	resp, err := c.s.client.R().
		SetContext(ctx).
		SetBody(createBody{ID: id, Data: data}).
		SetResult(&out).
		Post("/v0/collections/" + c.name + "/docs")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, statusErr("create "+c.name, resp.StatusCode())
	}
	return &out, nil
}

func (c *collection) Get(ctx context.Context, id string) (*docstore.Doc, error) {
	var out docstore.Doc
	resp, err := c.s.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v0/collections/" + c.name + "/docs/" + id)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusErr("get "+c.name, resp.StatusCode())
	}
	return &out, nil
}

func (c *collection) Update(ctx context.Context, id string, data json.RawMessage, pre docstore.Precondition) (*docstore.Doc, error) {
	var out docstore.Doc
	req := c.s.client.R().
		SetContext(ctx).
		SetBody(updateBody{Data: data}).
		SetResult(&out)
	if pre.Version != 0 {
		req.SetHeader("If-Match", strconv.FormatInt(pre.Version, 10))
	}
	resp, err := req.Put("/v0/collections/" + c.name + "/docs/" + id)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusErr("update "+c.name, resp.StatusCode())
	}
	return &out, nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	resp, err := c.s.client.R().
		SetContext(ctx).
		Delete("/v0/collections/" + c.name + "/docs/" + id)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusNoContent {
		return statusErr("delete "+c.name, resp.StatusCode())
	}
	return nil
}

func (c *collection) Query(ctx context.Context, q docstore.Query) ([]*docstore.Doc, error) {
	var out queryResult
	resp, err := c.s.client.R().
		SetContext(ctx).
		SetBody(q).
		SetResult(&out).
		Post("/v0/collections/" + c.name + "/query")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, statusErr("query "+c.name, resp.StatusCode())
	}
	return out.Docs, nil
}

func (c *collection) Watch(ctx context.Context, id string, fn docstore.DocHandler) (func(), error) {
	stop := make(chan struct{})
	go func() {
		var lastVersion int64 = -1
		fire := func() {
			d, err := c.Get(ctx, id)
			switch {
			case err == nil:
				if d.Version != lastVersion {
					lastVersion = d.Version
					fn(d, nil)
				}
			case isNotFound(err):
				if lastVersion != 0 {
					lastVersion = 0
					fn(nil, nil)
				}
			default:
				fn(nil, err)
			}
		}
		fire()
		t := time.NewTicker(c.s.poll)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				fire()
			}
		}
	}()
	var closed bool
	return func() {
		if !closed {
			closed = true
			close(stop)
		}
	}, nil
}

func (c *collection) WatchQuery(ctx context.Context, q docstore.Query, fn docstore.QueryHandler) (func(), error) {
	stop := make(chan struct{})
	go func() {
		lastSig := ""
		fire := func() {
			docs, err := c.Query(ctx, q)
			if err != nil {
				fn(nil, err)
				return
			}
			sig := signature(docs)
			if sig != lastSig {
				lastSig = sig
				fn(docs, nil)
			}
		}
		fire()
		t := time.NewTicker(c.s.poll)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				fire()
			}
		}
	}()
	var closed bool
	return func() {
		if !closed {
			closed = true
			close(stop)
		}
	}, nil
}

func isNotFound(err error) bool { return errors.Is(err, model.ErrNotFound) }

// signature summarizes a result set so the poller only fires on change.
func signature(docs []*docstore.Doc) string {
	sig := strconv.Itoa(len(docs))
	for _, d := range docs {
		sig += "|" + d.ID + ":" + strconv.FormatInt(d.Version, 10)
	}
	return sig
}
