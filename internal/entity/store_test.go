package entity

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/docstore/memstore"
	"github.com/famgate/famgate/internal/model"
)

func newTestStore(t *testing.T) (*Store[model.Rule, *model.Rule], docstore.Store) {
	t.Helper()
	ds := memstore.New()
	cls := apperr.NewClassifier(nil, zerolog.Nop())
	return New[model.Rule](ds, docstore.ColRules, cls, zerolog.Nop()), ds
}

func TestCreateGeneratesIDAndStamps(t *testing.T) {
	st, _ := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.WithClock(func() time.Time { return base })

	r, err := st.Create(context.Background(), &model.Rule{FamilyID: "f1", Name: "bedtime"})
	require.NoError(t, err)
	assert.NotEmpty(t, r.DocID)
	assert.Equal(t, base, r.CreatedAt)
	assert.Equal(t, base, r.UpdatedAt)

	got, err := st.GetByID(context.Background(), r.DocID)
	require.NoError(t, err)
	assert.Equal(t, "bedtime", got.Name)
	assert.Equal(t, r.DocID, got.DocID)
}

func TestCreatePreservesCallerID(t *testing.T) {
	st, _ := newTestStore(t)
	r, err := st.Create(context.Background(), &model.Rule{Meta: model.Meta{DocID: "fixed"}, FamilyID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", r.DocID)
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	st, _ := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	st.WithClock(func() time.Time { return now })

	r, err := st.Create(context.Background(), &model.Rule{FamilyID: "f1", Name: "old"})
	require.NoError(t, err)

	now = base.Add(time.Hour)
	updated, err := st.Update(context.Background(), r.DocID, func(r *model.Rule) error {
		r.Name = "new"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, base, updated.CreatedAt)
	assert.Equal(t, base.Add(time.Hour), updated.UpdatedAt)
}

func TestUpdateRetriesVersionConflict(t *testing.T) {
	st, ds := newTestStore(t)
	ctx := context.Background()

	r, err := st.Create(ctx, &model.Rule{FamilyID: "f1", Name: "n"})
	require.NoError(t, err)

	// First mutate attempt loses the race to an out-of-band writer; the CAS
	// loop must re-read and apply cleanly on the second pass.
	raced := false
	mutations := 0
	updated, err := st.Update(ctx, r.DocID, func(rule *model.Rule) error {
		mutations++
		if !raced {
			raced = true
			data, merr := json.Marshal(rule)
			require.NoError(t, merr)
			_, uerr := ds.Collection(docstore.ColRules).Update(ctx, r.DocID, data, docstore.Precondition{})
			require.NoError(t, uerr)
		}
		rule.Name = "won"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "won", updated.Name)
	assert.Equal(t, 2, mutations)
}

func TestUpdateMissingClassified(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.Update(context.Background(), "nope", func(*model.Rule) error { return nil })
	require.Error(t, err)
	assert.Equal(t, apperr.StorageError, apperr.CodeOf(err))
}

func TestDeleteAndQuery(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	r1, err := st.Create(ctx, &model.Rule{FamilyID: "f1", Name: "a"})
	require.NoError(t, err)
	_, err = st.Create(ctx, &model.Rule{FamilyID: "f2", Name: "b"})
	require.NoError(t, err)

	rs, err := st.Query(ctx, docstore.Query{Filters: []docstore.Filter{{Field: "familyId", Value: "f1"}}})
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, r1.DocID, rs[0].DocID)

	require.NoError(t, st.Delete(ctx, r1.DocID))
	_, err = st.GetByID(ctx, r1.DocID)
	assert.Equal(t, apperr.StorageError, apperr.CodeOf(err))
}

func TestSubscribeDeliversUpdatesAndDeletion(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	r, err := st.Create(ctx, &model.Rule{FamilyID: "f1", Name: "v1"})
	require.NoError(t, err)

	var mu sync.Mutex
	var names []string
	var deleted bool
	cancel, err := st.Subscribe(ctx, r.DocID, func(rule *model.Rule, err error) {
		assert.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		if rule == nil {
			deleted = true
			return
		}
		names = append(names, rule.Name)
	})
	require.NoError(t, err)
	defer cancel()

	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(names) >= 1 })

	_, err = st.Update(ctx, r.DocID, func(rule *model.Rule) error {
		rule.Name = "v2"
		return nil
	})
	require.NoError(t, err)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) > 0 && names[len(names)-1] == "v2"
	})

	require.NoError(t, st.Delete(ctx, r.DocID))
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return deleted })
}

func TestSubscribeQueryReEvaluates(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var latest []*model.Rule
	cancel, err := st.SubscribeQuery(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "familyId", Value: "f1"}},
	}, func(rs []*model.Rule, err error) {
		assert.NoError(t, err)
		mu.Lock()
		latest = rs
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	_, err = st.Create(ctx, &model.Rule{FamilyID: "f1", Name: "a"})
	require.NoError(t, err)
	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(latest) == 1 })
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
