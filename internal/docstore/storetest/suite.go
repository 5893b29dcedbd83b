// Package storetest is a compliance suite run against every docstore adapter.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/model"
)

// Run exercises the docstore contract against a store implementation.
// makeStore must provide a clean, isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) docstore.Store) {
	t.Helper()

	s := makeStore(t)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	col := s.Collection("suite")

	if err := s.Healthy(ctx); err != nil {
		t.Fatalf("Healthy: %v", err)
	}

	// Create
	d1, err := col.Create(ctx, "a", raw(`{"familyId":"f1","rank":"1"}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d1.Version != 1 {
		t.Fatalf("Create version = %d, want 1", d1.Version)
	}
	if d1.CreatedAt.IsZero() || d1.UpdatedAt.IsZero() {
		t.Fatalf("Create timestamps missing: %+v", d1)
	}

	// Duplicate id conflicts
	if _, err := col.Create(ctx, "a", raw(`{}`)); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate Create err = %v, want conflict", err)
	}

	// Get
	got, err := col.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v, _ := docstore.FieldValue(got.Data, "familyId"); v != "f1" {
		t.Fatalf("Get data familyId = %q", v)
	}
	if _, err := col.Get(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing err = %v, want not found", err)
	}

	// Update bumps version
	d2, err := col.Update(ctx, "a", raw(`{"familyId":"f1","rank":"2"}`), docstore.Precondition{Version: 1})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if d2.Version != 2 {
		t.Fatalf("Update version = %d, want 2", d2.Version)
	}

	// Stale precondition conflicts, document untouched
	if _, err := col.Update(ctx, "a", raw(`{"rank":"9"}`), docstore.Precondition{Version: 1}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("stale Update err = %v, want conflict", err)
	}
	got, err = col.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get after stale update: %v", err)
	}
	if v, _ := docstore.FieldValue(got.Data, "rank"); v != "2" {
		t.Fatalf("stale update mutated doc: rank = %q", v)
	}

	// Unconditional update
	if _, err := col.Update(ctx, "a", raw(`{"familyId":"f1","rank":"3"}`), docstore.Precondition{}); err != nil {
		t.Fatalf("unconditional Update: %v", err)
	}
	if _, err := col.Update(ctx, "missing", raw(`{}`), docstore.Precondition{}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Update missing err = %v, want not found", err)
	}

	// Query: filters, order, limit
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("b%d", i)
		data := raw(fmt.Sprintf(`{"familyId":"f2","rank":"%d"}`, i))
		if _, err := col.Create(ctx, id, data); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	docs, err := col.Query(ctx, docstore.Query{Filters: []docstore.Filter{{Field: "familyId", Value: "f2"}}})
	if err != nil || len(docs) != 3 {
		t.Fatalf("Query filter: n=%d err=%v", len(docs), err)
	}
	docs, err = col.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "familyId", Value: "f2"}},
		OrderBy: "rank", Desc: true, Limit: 2,
	})
	if err != nil || len(docs) != 2 {
		t.Fatalf("Query order/limit: n=%d err=%v", len(docs), err)
	}
	if r0, _ := docstore.FieldValue(docs[0].Data, "rank"); r0 != "2" {
		t.Fatalf("Query desc first rank = %q, want 2", r0)
	}

	// Compound filter narrows to one
	docs, err = col.Query(ctx, docstore.Query{Filters: []docstore.Filter{
		{Field: "familyId", Value: "f2"},
		{Field: "rank", Value: "1"},
	}})
	if err != nil || len(docs) != 1 || docs[0].ID != "b1" {
		t.Fatalf("Query compound: %v err=%v", ids(docs), err)
	}

	// UpdatedAfter incremental cursor
	cursor := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)
	if _, err := col.Update(ctx, "b1", raw(`{"familyId":"f2","rank":"1"}`), docstore.Precondition{}); err != nil {
		t.Fatalf("Update b1: %v", err)
	}
	docs, err = col.Query(ctx, docstore.Query{
		Filters:      []docstore.Filter{{Field: "familyId", Value: "f2"}},
		UpdatedAfter: cursor,
	})
	if err != nil || len(docs) != 1 || docs[0].ID != "b1" {
		t.Fatalf("Query UpdatedAfter: %v err=%v", ids(docs), err)
	}

	// Delete
	if err := col.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := col.Get(ctx, "a"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get deleted err = %v, want not found", err)
	}
	if err := col.Delete(ctx, "a"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Delete missing err = %v, want not found", err)
	}

	t.Run("WatchDoc", func(t *testing.T) { watchDoc(t, s) })
	t.Run("WatchQuery", func(t *testing.T) { watchQuery(t, s) })
}

func watchDoc(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	col := s.Collection("watchdoc")
	if _, err := col.Create(ctx, "w", raw(`{"n":"0"}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var mu sync.Mutex
	var events []*docstore.Doc
	cancel, err := col.Watch(ctx, "w", func(d *docstore.Doc, err error) {
		if err != nil {
			t.Errorf("watch error: %v", err)
			return
		}
		mu.Lock()
		events = append(events, d)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer cancel()

	// Initial snapshot arrives without any write.
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(events) >= 1 })

	if _, err := col.Update(ctx, "w", raw(`{"n":"1"}`), docstore.Precondition{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		last := events[len(events)-1]
		if last == nil {
			return false
		}
		v, _ := docstore.FieldValue(last.Data, "n")
		return v == "1"
	})

	if err := col.Delete(ctx, "w"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Deletion surfaces as a nil snapshot.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0 && events[len(events)-1] == nil
	})
}

func watchQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	col := s.Collection("watchquery")

	var mu sync.Mutex
	var last []*docstore.Doc
	fired := 0
	cancel, err := col.WatchQuery(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "familyId", Value: "f1"}},
	}, func(docs []*docstore.Doc, err error) {
		if err != nil {
			t.Errorf("watch query error: %v", err)
			return
		}
		mu.Lock()
		last = docs
		fired++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("WatchQuery: %v", err)
	}
	defer cancel()

	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return fired >= 1 })

	if _, err := col.Create(ctx, "q1", raw(`{"familyId":"f1"}`)); err != nil {
		t.Fatalf("Create q1: %v", err)
	}
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(last) == 1 })

	// A doc outside the filter never shows up.
	if _, err := col.Create(ctx, "q2", raw(`{"familyId":"other"}`)); err != nil {
		t.Fatalf("Create q2: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	n := len(last)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("filtered watch saw %d docs, want 1", n)
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

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func ids(docs []*docstore.Doc) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
