// Package cache keeps a live, read-optimized snapshot of one family's state.
// It subscribes to the family document and every family-scoped collection and
// folds updates into an in-memory view guarded by a RWMutex, so UI reads never
// touch the store.
package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/entity"
	"github.com/famgate/famgate/internal/model"
)

// Cache mirrors a single family. Start may be called again with a different
// family id; the previous subscriptions are torn down first.
type Cache struct {
	store docstore.Store
	cls   *apperr.Classifier
	log   zerolog.Logger

	mu       sync.RWMutex
	familyID string
	family   *model.Family
	users    []*model.User
	devices  []*model.Device
	rules    []*model.Rule
	requests []*model.Request
	notifs   []*model.Notification
	lastErr  error
	cancels  []func()
}

func New(store docstore.Store, cls *apperr.Classifier, log zerolog.Logger) *Cache {
	return &Cache{store: store, cls: cls, log: log.With().Str("component", "cache").Logger()}
}

// Start subscribes to familyID's documents. Each subscription delivers an
// initial snapshot, so getters are populated shortly after Start returns.
func (c *Cache) Start(ctx context.Context, familyID string) error {
	if err := model.ValidateIDPresent(familyID, "familyId"); err != nil {
		return c.cls.Classify(err, apperr.Op{Name: "cache.start", FamilyID: familyID})
	}
	c.Stop()

	c.mu.Lock()
	c.familyID = familyID
	c.mu.Unlock()

	families := entity.New[model.Family](c.store, docstore.ColFamilies, c.cls, c.log)
	cancel, err := families.Subscribe(ctx, familyID, func(f *model.Family, err error) {
		c.apply(err, func() { c.family = f })
	})
	if err != nil {
		return err
	}
	c.addCancel(cancel)

	scoped := docstore.Query{Filters: []docstore.Filter{{Field: "familyId", Value: familyID}}}

	if err := subscribeList(ctx, c, docstore.ColUsers, scoped, func(v []*model.User) { c.users = v }); err != nil {
		c.Stop()
		return err
	}
	if err := subscribeList(ctx, c, docstore.ColDevices, scoped, func(v []*model.Device) { c.devices = v }); err != nil {
		c.Stop()
		return err
	}
	if err := subscribeList(ctx, c, docstore.ColRules, scoped, func(v []*model.Rule) { c.rules = v }); err != nil {
		c.Stop()
		return err
	}
	if err := subscribeList(ctx, c, docstore.ColRequests, scoped, func(v []*model.Request) { c.requests = v }); err != nil {
		c.Stop()
		return err
	}
	if err := subscribeList(ctx, c, docstore.ColNotifications, scoped, func(v []*model.Notification) { c.notifs = v }); err != nil {
		c.Stop()
		return err
	}
	c.log.Info().Str("family", familyID).Msg("cache started")
	return nil
}

func subscribeList[T any, PT interface {
	*T
	entity.Record
}](ctx context.Context, c *Cache, col string, q docstore.Query, set func([]PT)) error {
	st := entity.New[T, PT](c.store, col, c.cls, c.log)
	cancel, err := st.SubscribeQuery(ctx, q, func(vs []PT, err error) {
		c.apply(err, func() { set(vs) })
	})
	if err != nil {
		return err
	}
	c.addCancel(cancel)
	return nil
}

func (c *Cache) apply(err error, set func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		c.log.Warn().Err(err).Msg("cache subscription error")
		return
	}
	c.lastErr = nil
	set()
}

func (c *Cache) addCancel(fn func()) {
	c.mu.Lock()
	c.cancels = append(c.cancels, fn)
	c.mu.Unlock()
}

// Stop cancels all subscriptions and clears the snapshot. Safe to call when
// not started.
func (c *Cache) Stop() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.familyID = ""
	c.family = nil
	c.users = nil
	c.devices = nil
	c.rules = nil
	c.requests = nil
	c.notifs = nil
	c.lastErr = nil
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// FamilyID returns the family this cache is bound to, empty when stopped.
func (c *Cache) FamilyID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.familyID
}

// Family returns the cached family document, nil before the first snapshot.
func (c *Cache) Family() *model.Family {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.family
}

func (c *Cache) Users() []*model.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*model.User(nil), c.users...)
}

func (c *Cache) Devices() []*model.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*model.Device(nil), c.devices...)
}

func (c *Cache) Rules() []*model.Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*model.Rule(nil), c.rules...)
}

func (c *Cache) Requests() []*model.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*model.Request(nil), c.requests...)
}

func (c *Cache) Notifications() []*model.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*model.Notification(nil), c.notifs...)
}

// PendingRequests filters the cached requests to pending only.
func (c *Cache) PendingRequests() []*model.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Request, 0, len(c.requests))
	for _, r := range c.requests {
		if r.Status == model.StatusPending {
			out = append(out, r)
		}
	}
	return out
}

// Err reports the most recent subscription error, nil once a subsequent
// snapshot succeeds.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}
