package famgate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famgate/famgate/internal/config"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/docstore/memstore"
)

func testConfig() *config.Config {
	return &config.Config{
		StoreDriver:         "memory",
		RequestExpiryHours:  24,
		RequestRetention:    720 * time.Hour,
		OfflineQueueTimeout: 5 * time.Minute,
		ProbeInterval:       10 * time.Second,
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewWithConfig(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLocalDriverIsOnline(t *testing.T) {
	c := newTestClient(t)
	assert.False(t, c.Offline())
	assert.Equal(t, "local", c.NetworkState().TransportType)
	assert.Zero(t, c.QueuedWrites())
}

func TestFamilyLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	fam, err := c.CreateFamily(ctx, "smiths", "parent1", "Europe/Berlin")
	require.NoError(t, err)
	require.NotEmpty(t, fam.DocID)

	parent, err := c.CreateUser(ctx, User{FamilyID: fam.DocID, DisplayName: "Dana", Role: RoleParent})
	require.NoError(t, err)
	child, err := c.CreateUser(ctx, User{FamilyID: fam.DocID, DisplayName: "Sam", Role: RoleChild})
	require.NoError(t, err)

	members, err := c.ListFamilyMembers(ctx, fam.DocID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	dev, err := c.PairDevice(ctx, fam.DocID, child.DocID, "Sam's tablet", "android")
	require.NoError(t, err)
	assert.Equal(t, DeviceActive, dev.Status)

	rule, err := c.CreateRule(ctx, Rule{FamilyID: fam.DocID, DeviceID: dev.DocID, Name: "school nights", DailyLimitMinutes: 90})
	require.NoError(t, err)
	assert.True(t, rule.Enabled)

	req, err := c.CreateRequest(ctx, CreateRequestInput{
		FamilyID:        fam.DocID,
		RequesterID:     child.DocID,
		Kind:            KindExtraTime,
		DurationMinutes: 30,
		Reason:          "homework done",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)

	approved, err := c.ApproveRequest(ctx, req.DocID, parent.DocID, "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	// The requester was notified of the decision.
	ns, err := c.ListNotificationsForRecipient(ctx, child.DocID, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, ns)
}

func TestWithStoreOverride(t *testing.T) {
	st := memstore.New()
	c, err := NewWithConfig(testConfig(), WithStore(st))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.CreateFamily(context.Background(), "jones", "p1", "UTC")
	require.NoError(t, err)

	docs, err := st.Collection(docstore.ColFamilies).Query(context.Background(), docstore.Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestNotFoundHelpers(t *testing.T) {
	c := newTestClient(t)
	_, err := c.GetFamily(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsOffline(err))

	errs := c.RecentErrors()
	require.NotEmpty(t, errs)
	assert.NotEmpty(t, errs[len(errs)-1].Message)
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	fam, err := c.CreateFamily(ctx, "smiths", "p1", "UTC")
	require.NoError(t, err)
	require.NoError(t, c.StartCache(ctx, fam.DocID))
	defer c.StopCache()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.Cache().Family() != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, c.Cache().Family())
	assert.Equal(t, "smiths", c.Cache().Family().Name)
}

func TestCloseIdempotent(t *testing.T) {
	c, err := NewWithConfig(testConfig())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
