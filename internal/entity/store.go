// Package entity layers typed CRUD+subscribe on top of a docstore collection.
// Every failure is funneled through the classifier, create/update stamp the
// shared timestamps, and Update is a version-checked read-modify-write so
// concurrent writers cannot silently overwrite each other.
package entity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/model"
)

// Record is implemented by pointer types embedding model.Meta.
type Record interface {
	ID() string
	SetID(string)
	StampCreate(time.Time)
	StampUpdate(time.Time)
}

// casAttempts bounds the optimistic-concurrency retry loop in Update.
const casAttempts = 5

// Store is a typed view over one collection.
type Store[T any, PT interface {
	*T
	Record
}] struct {
	name string
	col  docstore.Collection
	cls  *apperr.Classifier
	log  zerolog.Logger
	now  func() time.Time
}

// New builds a typed store for the named collection.
func New[T any, PT interface {
	*T
	Record
}](s docstore.Store, name string, cls *apperr.Classifier, log zerolog.Logger) *Store[T, PT] {
	return &Store[T, PT]{
		name: name,
		col:  s.Collection(name),
		cls:  cls,
		log:  log.With().Str("collection", name).Logger(),
		now:  time.Now,
	}
}

// WithClock overrides the timestamp source. Test hook.
func (s *Store[T, PT]) WithClock(now func() time.Time) *Store[T, PT] {
	s.now = now
	return s
}

func (s *Store[T, PT]) op(name string) apperr.Op {
	return apperr.Op{Name: s.name + "." + name}
}

// Create stores v, generating an id when absent. CreatedAt is stamped here
// and never overwritten afterwards.
func (s *Store[T, PT]) Create(ctx context.Context, v PT) (PT, error) {
	if v.ID() == "" {
		v.SetID(uuid.NewString())
	}
	v.StampCreate(s.now().UTC())
	data, err := json.Marshal(v)
	if err != nil {
		return nil, s.cls.Classify(err, s.op("create"))
	}
	if _, err := s.col.Create(ctx, v.ID(), data); err != nil {
		return nil, s.cls.Classify(err, s.op("create"))
	}
	return v, nil
}

// GetByID loads one entity.
func (s *Store[T, PT]) GetByID(ctx context.Context, id string) (PT, error) {
	if err := model.ValidateIDPresent(id, "id"); err != nil {
		return nil, s.cls.Classify(err, s.op("get"))
	}
	doc, err := s.col.Get(ctx, id)
	if err != nil {
		return nil, s.cls.Classify(err, s.op("get"))
	}
	return s.decode(doc, "get")
}

// Update applies mutate to the latest stored value and writes it back guarded
// by the document version, retrying on conflict. The mutate func must be pure
// over its argument: it may run several times.
func (s *Store[T, PT]) Update(ctx context.Context, id string, mutate func(PT) error) (PT, error) {
	if err := model.ValidateIDPresent(id, "id"); err != nil {
		return nil, s.cls.Classify(err, s.op("update"))
	}
	var lastErr error
	for i := 0; i < casAttempts; i++ {
		doc, err := s.col.Get(ctx, id)
		if err != nil {
			return nil, s.cls.Classify(err, s.op("update"))
		}
		v, err := s.decode(doc, "update")
		if err != nil {
			return nil, err
		}
		if err := mutate(v); err != nil {
			return nil, s.cls.Classify(err, s.op("update"))
		}
		v.StampUpdate(s.now().UTC())
		data, err := json.Marshal(v)
		if err != nil {
			return nil, s.cls.Classify(err, s.op("update"))
		}
		_, err = s.col.Update(ctx, id, data, docstore.Precondition{Version: doc.Version})
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return nil, s.cls.Classify(err, s.op("update"))
		}
		lastErr = err
		s.log.Debug().Str("id", id).Int("attempt", i+1).Msg("version conflict, retrying")
	}
	return nil, s.cls.Classify(lastErr, s.op("update"))
}

// Delete removes the entity.
func (s *Store[T, PT]) Delete(ctx context.Context, id string) error {
	if err := model.ValidateIDPresent(id, "id"); err != nil {
		return s.cls.Classify(err, s.op("delete"))
	}
	if err := s.col.Delete(ctx, id); err != nil {
		return s.cls.Classify(err, s.op("delete"))
	}
	return nil
}

// Query returns entities matching q.
func (s *Store[T, PT]) Query(ctx context.Context, q docstore.Query) ([]PT, error) {
	docs, err := s.col.Query(ctx, q)
	if err != nil {
		return nil, s.cls.Classify(err, s.op("query"))
	}
	out := make([]PT, 0, len(docs))
	for _, d := range docs {
		v, err := s.decode(d, "query")
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Subscribe watches one entity. The callback receives the latest value, nil
// after deletion, or a classified error; it never sees a panic. The returned
// cancel func must be called exactly once.
func (s *Store[T, PT]) Subscribe(ctx context.Context, id string, fn func(PT, error)) (func(), error) {
	if err := model.ValidateIDPresent(id, "id"); err != nil {
		return nil, s.cls.Classify(err, s.op("subscribe"))
	}
	cancel, err := s.col.Watch(ctx, id, func(doc *docstore.Doc, werr error) {
		defer s.recoverCallback("subscribe")
		if werr != nil {
			fn(nil, s.cls.Classify(werr, s.op("subscribe")))
			return
		}
		if doc == nil {
			fn(nil, nil)
			return
		}
		v, derr := s.decode(doc, "subscribe")
		fn(v, derr)
	})
	if err != nil {
		return nil, s.cls.Classify(err, s.op("subscribe"))
	}
	return cancel, nil
}

// SubscribeQuery watches a filtered collection; the callback receives the
// re-evaluated result after each relevant change.
func (s *Store[T, PT]) SubscribeQuery(ctx context.Context, q docstore.Query, fn func([]PT, error)) (func(), error) {
	cancel, err := s.col.WatchQuery(ctx, q, func(docs []*docstore.Doc, werr error) {
		defer s.recoverCallback("subscribeQuery")
		if werr != nil {
			fn(nil, s.cls.Classify(werr, s.op("subscribeQuery")))
			return
		}
		out := make([]PT, 0, len(docs))
		for _, d := range docs {
			v, derr := s.decode(d, "subscribeQuery")
			if derr != nil {
				fn(nil, derr)
				return
			}
			out = append(out, v)
		}
		fn(out, nil)
	})
	if err != nil {
		return nil, s.cls.Classify(err, s.op("subscribeQuery"))
	}
	return cancel, nil
}

func (s *Store[T, PT]) decode(doc *docstore.Doc, opName string) (PT, error) {
	v := PT(new(T))
	if err := json.Unmarshal(doc.Data, v); err != nil {
		return nil, s.cls.Classify(err, s.op(opName))
	}
	v.SetID(doc.ID)
	return v, nil
}

func (s *Store[T, PT]) recoverCallback(opName string) {
	if r := recover(); r != nil {
		s.log.Error().Interface("panic", r).Str("op", opName).Msg("subscription callback panic")
	}
}
