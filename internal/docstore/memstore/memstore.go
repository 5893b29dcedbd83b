// Package memstore is the in-memory docstore adapter. It backs unit tests and
// the emulator's default persistence.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/model"
)

// Store keeps every collection in process memory with watch support.
type Store struct {
	mu   sync.Mutex
	cols map[string]*collection
	now  func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{cols: make(map[string]*collection), now: time.Now}
}

// WithClock overrides the timestamp source. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Collection(name string) docstore.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cols[name]
	if !ok {
		c = &collection{docs: make(map[string]*docstore.Doc), hub: docstore.NewHub(), now: s.now}
		s.cols[name] = c
	}
	return c
}

func (s *Store) Healthy(ctx context.Context) error { return nil }
func (s *Store) Close() error                      { return nil }

type collection struct {
	mu   sync.Mutex
	docs map[string]*docstore.Doc
	hub  *docstore.Hub
	now  func() time.Time
}

func (c *collection) Create(ctx context.Context, id string, data json.RawMessage) (*docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if _, exists := c.docs[id]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("doc %s: %w", id, model.ErrConflict)
	}
	now := c.now().UTC()
	d := &docstore.Doc{ID: id, Version: 1, Data: append(json.RawMessage(nil), data...), CreatedAt: now, UpdatedAt: now}
	c.docs[id] = d
	out := *d
	c.mu.Unlock()
	c.hub.Notify(id)
	return &out, nil
}

func (c *collection) Get(ctx context.Context, id string) (*docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("doc %s: %w", id, model.ErrNotFound)
	}
	out := *d
	return &out, nil
}

func (c *collection) Update(ctx context.Context, id string, data json.RawMessage, pre docstore.Precondition) (*docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	d, ok := c.docs[id]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("doc %s: %w", id, model.ErrNotFound)
	}
	if pre.Version != 0 && pre.Version != d.Version {
		c.mu.Unlock()
		return nil, fmt.Errorf("doc %s version %d != %d: %w", id, d.Version, pre.Version, model.ErrConflict)
	}
	d.Version++
	d.Data = append(json.RawMessage(nil), data...)
	d.UpdatedAt = c.now().UTC()
	out := *d
	c.mu.Unlock()
	c.hub.Notify(id)
	return &out, nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if _, ok := c.docs[id]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("doc %s: %w", id, model.ErrNotFound)
	}
	delete(c.docs, id)
	c.mu.Unlock()
	c.hub.Notify(id)
	return nil
}

func (c *collection) Query(ctx context.Context, q docstore.Query) ([]*docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	var out []*docstore.Doc
	for _, d := range c.docs {
		if !matches(d, q) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	c.mu.Unlock()

	orderBy := q.OrderBy
	sort.Slice(out, func(i, j int) bool {
		var less bool
		if orderBy == "" {
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				less = out[i].ID < out[j].ID
			}
		} else {
			vi, _ := docstore.FieldValue(out[i].Data, orderBy)
			vj, _ := docstore.FieldValue(out[j].Data, orderBy)
			if vi == vj {
				less = out[i].ID < out[j].ID
			} else {
				less = vi < vj
			}
		}
		if q.Desc {
			return !less
		}
		return less
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(d *docstore.Doc, q docstore.Query) bool {
	if !q.UpdatedAfter.IsZero() && !d.UpdatedAt.After(q.UpdatedAfter) {
		return false
	}
	for _, f := range q.Filters {
		v, ok := docstore.FieldValue(d.Data, f.Field)
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}

func (c *collection) Watch(ctx context.Context, id string, fn docstore.DocHandler) (func(), error) {
	fire := func() {
		d, err := c.Get(context.Background(), id)
		if err != nil {
			// Deletion surfaces as a nil snapshot, not an error.
			if e := ctx.Err(); e != nil {
				return
			}
			fn(nil, nil)
			return
		}
		fn(d, nil)
	}
	cancel := c.hub.WatchDoc(id, fire)
	// Initial snapshot, mirroring the hosted database's subscribe semantics.
	go fire()
	return cancel, nil
}

func (c *collection) WatchQuery(ctx context.Context, q docstore.Query, fn docstore.QueryHandler) (func(), error) {
	fire := func() {
		docs, err := c.Query(context.Background(), q)
		if err != nil {
			fn(nil, err)
			return
		}
		fn(docs, nil)
	}
	cancel := c.hub.WatchCollection(fire)
	go fire()
	return cancel, nil
}
