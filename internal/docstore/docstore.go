// Package docstore abstracts the hosted document database as named
// collections of versioned JSON documents. Adapters live in subpackages
// (memstore, sqlitestore, pgstore, reststore); services never touch an
// adapter directly.
package docstore

import (
	"context"
	"encoding/json"
	"time"
)

// Doc is a stored document. Version increments on every write and backs the
// optimistic-concurrency precondition used for approval appends.
type Doc struct {
	ID        string          `json:"id"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Filter is an equality match on a top-level field of the document data.
type Filter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Query selects documents from a collection. UpdatedAfter is the incremental
// cursor used by polling watchers.
type Query struct {
	Filters      []Filter  `json:"filters,omitempty"`
	OrderBy      string    `json:"orderBy,omitempty"`
	Desc         bool      `json:"desc,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	UpdatedAfter time.Time `json:"updatedAfter,omitempty"`
}

// Precondition guards an update. Zero Version means unconditional.
type Precondition struct {
	Version int64
}

// DocHandler receives the latest document (nil after deletion) or an error.
// Handlers must not panic; they are invoked from store goroutines.
type DocHandler func(*Doc, error)

// QueryHandler receives the re-evaluated query result after each relevant
// change, or an error.
type QueryHandler func([]*Doc, error)

// Collection is a named set of documents.
//
// Watch and WatchQuery return a cancel func that the caller must invoke
// exactly once; an abandoned watch leaks its listener for the process
// lifetime.
type Collection interface {
	Create(ctx context.Context, id string, data json.RawMessage) (*Doc, error)
	Get(ctx context.Context, id string) (*Doc, error)
	Update(ctx context.Context, id string, data json.RawMessage, pre Precondition) (*Doc, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, q Query) ([]*Doc, error)
	Watch(ctx context.Context, id string, fn DocHandler) (cancel func(), err error)
	WatchQuery(ctx context.Context, q Query, fn QueryHandler) (cancel func(), err error)
}

// Store produces collections and reports backend health.
type Store interface {
	Collection(name string) Collection
	Healthy(ctx context.Context) error
	Close() error
}

// Collection names used by the application.
const (
	ColFamilies      = "families"
	ColUsers         = "users"
	ColDevices       = "devices"
	ColRules         = "rules"
	ColRequests      = "requests"
	ColNotifications = "notifications"
)

// FieldValue extracts a top-level field of data as its string form, for
// adapters that filter in process.
func FieldValue(data json.RawMessage, field string) (string, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return "", false
	}
	raw, ok := m[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}
