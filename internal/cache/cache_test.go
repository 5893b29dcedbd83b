package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/docstore/memstore"
	"github.com/famgate/famgate/internal/entity"
	"github.com/famgate/famgate/internal/model"
)

func newTestCache(t *testing.T) (*Cache, docstore.Store, *apperr.Classifier) {
	t.Helper()
	ds := memstore.New()
	cls := apperr.NewClassifier(nil, zerolog.Nop())
	return New(ds, cls, zerolog.Nop()), ds, cls
}

func TestStartRequiresFamilyID(t *testing.T) {
	c, _, _ := newTestCache(t)
	err := c.Start(context.Background(), "")
	assert.Equal(t, apperr.ValidationError, apperr.CodeOf(err))
}

func TestSnapshotFollowsWrites(t *testing.T) {
	c, ds, cls := newTestCache(t)
	ctx := context.Background()
	log := zerolog.Nop()

	families := entity.New[model.Family](ds, docstore.ColFamilies, cls, log)
	users := entity.New[model.User](ds, docstore.ColUsers, cls, log)
	requests := entity.New[model.Request](ds, docstore.ColRequests, cls, log)

	fam, err := families.Create(ctx, &model.Family{Name: "smiths", OwnerID: "p1"})
	require.NoError(t, err)
	_, err = users.Create(ctx, &model.User{FamilyID: fam.DocID, DisplayName: "Dana", Role: model.RoleParent})
	require.NoError(t, err)

	require.NoError(t, c.Start(ctx, fam.DocID))
	defer c.Stop()

	assert.Equal(t, fam.DocID, c.FamilyID())
	waitFor(t, func() bool { return c.Family() != nil && len(c.Users()) == 1 })
	assert.Equal(t, "smiths", c.Family().Name)
	assert.Equal(t, "Dana", c.Users()[0].DisplayName)

	// Writes after Start flow into the snapshot without a re-read.
	pending, err := requests.Create(ctx, &model.Request{
		FamilyID: fam.DocID, RequesterID: "c1", Kind: model.KindExtraTime,
		Status: model.StatusPending, ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	waitFor(t, func() bool { return len(c.PendingRequests()) == 1 })
	assert.Equal(t, pending.DocID, c.PendingRequests()[0].DocID)

	// Other families never leak in.
	_, err = users.Create(ctx, &model.User{FamilyID: "other", DisplayName: "Stranger", Role: model.RoleParent})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, c.Users(), 1)
	assert.NoError(t, c.Err())
}

func TestStopClearsSnapshot(t *testing.T) {
	c, ds, cls := newTestCache(t)
	ctx := context.Background()

	families := entity.New[model.Family](ds, docstore.ColFamilies, cls, zerolog.Nop())
	fam, err := families.Create(ctx, &model.Family{Name: "smiths", OwnerID: "p1"})
	require.NoError(t, err)

	require.NoError(t, c.Start(ctx, fam.DocID))
	waitFor(t, func() bool { return c.Family() != nil })

	c.Stop()
	assert.Empty(t, c.FamilyID())
	assert.Nil(t, c.Family())
	assert.Empty(t, c.Users())

	// Idempotent.
	c.Stop()
}

func TestRestartRebinds(t *testing.T) {
	c, ds, cls := newTestCache(t)
	ctx := context.Background()

	families := entity.New[model.Family](ds, docstore.ColFamilies, cls, zerolog.Nop())
	f1, err := families.Create(ctx, &model.Family{Name: "one", OwnerID: "p1"})
	require.NoError(t, err)
	f2, err := families.Create(ctx, &model.Family{Name: "two", OwnerID: "p2"})
	require.NoError(t, err)

	require.NoError(t, c.Start(ctx, f1.DocID))
	waitFor(t, func() bool { return c.Family() != nil && c.Family().Name == "one" })

	require.NoError(t, c.Start(ctx, f2.DocID))
	defer c.Stop()
	waitFor(t, func() bool { return c.Family() != nil && c.Family().Name == "two" })
	assert.Equal(t, f2.DocID, c.FamilyID())
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
