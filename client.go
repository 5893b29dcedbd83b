// Package famgate is the client SDK for the family screen-time backend. A
// Client owns the docstore connection, connectivity watching, the offline
// write queue and the per-entity services; construct one with New and reuse it
// for the process lifetime.
package famgate

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/cache"
	"github.com/famgate/famgate/internal/config"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/docstore/reststore"
	"github.com/famgate/famgate/internal/factory"
	"github.com/famgate/famgate/internal/logger"
	"github.com/famgate/famgate/internal/netwatch"
	"github.com/famgate/famgate/internal/offline"
	"github.com/famgate/famgate/internal/retry"
	"github.com/famgate/famgate/internal/service"
)

// StateCache is the live per-family snapshot returned by Client.Cache.
type StateCache = cache.Cache

type Client struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    docstore.Store
	recorder *apperr.Recorder
	cls      *apperr.Classifier
	policy   retry.Policy
	runner   *retry.Runner
	watcher  *netwatch.Watcher
	queue    *offline.Queue
	cache    *cache.Cache

	families *service.FamilyService
	users    *service.UserService
	devices  *service.DeviceService
	rules    *service.RuleService
	requests *service.RequestService
	notifs   *service.NotificationService

	httpTimeout  time.Duration
	recorderSize int
	debugHTTP    bool

	cancel     context.CancelFunc
	closedOnce uint32
}

// New constructs a Client from FAMGATE_* environment configuration plus
// functional options.
func New(opts ...Option) (*Client, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, opts...)
}

// NewWithConfig constructs a Client from an explicit configuration.
func NewWithConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:          cfg,
		log:          logger.New("famgate"),
		httpTimeout:  30 * time.Second,
		recorderSize: apperr.DefaultRecorderSize,
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		c.debugHTTP = true
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.recorder = apperr.NewRecorder(c.recorderSize)
	c.cls = apperr.NewClassifier(c.recorder, c.log)
	c.policy = retry.NewPolicy()
	c.runner = retry.NewRunner(c.policy, c.cls)
	c.watcher = netwatch.New(c.log)

	if c.store == nil {
		st, err := factory.NewStore(cfg, c.restOptions()...)
		if err != nil {
			return nil, err
		}
		c.store = st
	}

	c.queue = offline.New(c.cls, c.policy, c.watcher.Offline, cfg.OfflineQueueTimeout, c.log).
		WithMaxRetries(cfg.OfflineMaxRetries)
	c.queue.Bind(c.watcher)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.queue.Start(ctx)

	if cfg.StoreDriver == "rest" {
		prober := netwatch.NewHTTPProber(cfg.BackendURL, c.httpTimeout)
		go c.watcher.Run(ctx, prober, cfg.ProbeInterval)
	} else {
		// Local drivers have no transport to lose.
		c.watcher.Set(netwatch.State{Connected: true, InternetReachable: true, TransportType: "local"})
	}

	c.notifs = service.NewNotificationService(c.store, c.cls, c.queue, c.log)
	c.families = service.NewFamilyService(c.store, c.cls, c.queue, c.log)
	c.users = service.NewUserService(c.store, c.cls, c.queue, c.log)
	c.devices = service.NewDeviceService(c.store, c.cls, c.queue, c.notifs, c.log)
	c.rules = service.NewRuleService(c.store, c.cls, c.queue, c.log)
	c.requests = service.NewRequestService(c.store, c.cls, c.queue, c.notifs, cfg.RequestExpiry(), c.log)
	c.cache = cache.New(c.store, c.cls, c.log)

	return c, nil
}

// Close stops background work and releases the store. Safe to call multiple
// times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	c.cancel()
	c.cache.Stop()
	return c.store.Close()
}

// --------------------------------------------------------------------
// Connectivity and diagnostics
// --------------------------------------------------------------------

// NetworkState returns the last observed connectivity snapshot.
func (c *Client) NetworkState() NetworkState { return c.watcher.State() }

// Offline reports the derived offline mode.
func (c *Client) Offline() bool { return c.watcher.Offline() }

// OnNetworkChange subscribes to connectivity changes. The cancel func must be
// called exactly once.
func (c *Client) OnNetworkChange(fn func(NetworkState)) (cancel func()) {
	return c.watcher.Subscribe(fn)
}

// QueuedWrites reports the offline queue depth.
func (c *Client) QueuedWrites() int { return c.queue.Len() }

// Drain replays queued writes immediately instead of waiting for the next
// reconnect edge.
func (c *Client) Drain(ctx context.Context) { c.queue.Drain(ctx) }

// RecentErrors returns the most recent classified errors, oldest first.
func (c *Client) RecentErrors() []*Error { return c.recorder.Recent() }

// Do runs fn with classification and exponential backoff on transient
// failures.
func (c *Client) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.runner.Do(ctx, apperr.Op{Name: name}, fn)
}

// --------------------------------------------------------------------
// Family operations
// --------------------------------------------------------------------

func (c *Client) CreateFamily(ctx context.Context, name, ownerID, timeZone string) (*Family, error) {
	return c.families.Create(ctx, name, ownerID, timeZone)
}

func (c *Client) GetFamily(ctx context.Context, id string) (*Family, error) {
	return c.families.Get(ctx, id)
}

func (c *Client) AddFamilyMember(ctx context.Context, familyID, userID string) (*Family, error) {
	return c.families.AddMember(ctx, familyID, userID)
}

func (c *Client) RenameFamily(ctx context.Context, familyID, name string) (*Family, error) {
	return c.families.Rename(ctx, familyID, name)
}

// --------------------------------------------------------------------
// User operations
// --------------------------------------------------------------------

func (c *Client) CreateUser(ctx context.Context, u User) (*User, error) {
	return c.users.Create(ctx, u)
}

func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	return c.users.Get(ctx, id)
}

func (c *Client) ListFamilyMembers(ctx context.Context, familyID string) ([]*User, error) {
	return c.users.ListMembers(ctx, familyID)
}

// --------------------------------------------------------------------
// Device operations
// --------------------------------------------------------------------

func (c *Client) PairDevice(ctx context.Context, familyID, ownerID, name, platform string) (*Device, error) {
	return c.devices.Pair(ctx, familyID, ownerID, name, platform)
}

func (c *Client) GetDevice(ctx context.Context, id string) (*Device, error) {
	return c.devices.Get(ctx, id)
}

func (c *Client) ListDevices(ctx context.Context, familyID string) ([]*Device, error) {
	return c.devices.List(ctx, familyID)
}

func (c *Client) SetDeviceStatus(ctx context.Context, id string, status DeviceStatus) (*Device, error) {
	return c.devices.SetStatus(ctx, id, status)
}

func (c *Client) UnpairDevice(ctx context.Context, id string) error {
	return c.devices.Unpair(ctx, id)
}

// --------------------------------------------------------------------
// Rule operations
// --------------------------------------------------------------------

func (c *Client) CreateRule(ctx context.Context, r Rule) (*Rule, error) {
	return c.rules.Create(ctx, r)
}

func (c *Client) GetRule(ctx context.Context, id string) (*Rule, error) {
	return c.rules.Get(ctx, id)
}

func (c *Client) ListRules(ctx context.Context, familyID string) ([]*Rule, error) {
	return c.rules.List(ctx, familyID)
}

func (c *Client) SetRuleEnabled(ctx context.Context, id string, enabled bool) (*Rule, error) {
	return c.rules.SetEnabled(ctx, id, enabled)
}

func (c *Client) DeleteRule(ctx context.Context, id string) error {
	return c.rules.Delete(ctx, id)
}

// --------------------------------------------------------------------
// Request operations
// --------------------------------------------------------------------

func (c *Client) CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	out, err := c.requests.Create(ctx, in)
	if err == nil {
		requestsCreatedTotal.WithLabelValues(string(in.Kind)).Inc()
	}
	return out, err
}

func (c *Client) GetRequest(ctx context.Context, id string) (*Request, error) {
	return c.requests.Get(ctx, id)
}

func (c *Client) ListRequests(ctx context.Context, familyID string) ([]*Request, error) {
	return c.requests.List(ctx, familyID)
}

func (c *Client) ListPendingRequests(ctx context.Context, familyID string) ([]*Request, error) {
	return c.requests.ListPending(ctx, familyID)
}

func (c *Client) ApproveRequest(ctx context.Context, id, parentID, reason string) (*Request, error) {
	out, err := c.requests.Approve(ctx, id, parentID, reason)
	if err == nil {
		requestDecisionsTotal.WithLabelValues(string(DecisionApprove)).Inc()
	}
	return out, err
}

func (c *Client) DenyRequest(ctx context.Context, id, parentID, reason string) (*Request, error) {
	out, err := c.requests.Deny(ctx, id, parentID, reason)
	if err == nil {
		requestDecisionsTotal.WithLabelValues(string(DecisionDeny)).Inc()
	}
	return out, err
}

func (c *Client) ExtendRequest(ctx context.Context, id string, by time.Duration) (*Request, error) {
	return c.requests.Extend(ctx, id, by)
}

// SweepExpiredRequests moves pending requests past their horizon to expired
// and returns how many flipped.
func (c *Client) SweepExpiredRequests(ctx context.Context) (int, error) {
	n, err := c.requests.SweepExpired(ctx)
	if n > 0 {
		requestsExpiredTotal.Add(float64(n))
	}
	return n, err
}

// CleanupExpiredRequests deletes expired requests older than the configured
// retention window.
func (c *Client) CleanupExpiredRequests(ctx context.Context) (int, error) {
	return c.requests.CleanupExpired(ctx, c.cfg.RequestRetention)
}

// --------------------------------------------------------------------
// Notification operations
// --------------------------------------------------------------------

func (c *Client) ListNotifications(ctx context.Context, familyID string, limit int) ([]*Notification, error) {
	return c.notifs.ListForFamily(ctx, familyID, limit)
}

func (c *Client) ListNotificationsForRecipient(ctx context.Context, recipientID string, limit int) ([]*Notification, error) {
	return c.notifs.ListForRecipient(ctx, recipientID, limit)
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.notifs.MarkRead(ctx, id)
}

// --------------------------------------------------------------------
// State cache
// --------------------------------------------------------------------

// StartCache begins mirroring familyID's state; reads come from Cache().
func (c *Client) StartCache(ctx context.Context, familyID string) error {
	return c.cache.Start(ctx, familyID)
}

// StopCache tears down the mirror.
func (c *Client) StopCache() { c.cache.Stop() }

// Cache returns the live snapshot view.
func (c *Client) Cache() *StateCache { return c.cache }

// restOptions derives the rest-driver options from client settings.
func (c *Client) restOptions() []reststore.Option {
	var opts []reststore.Option
	if c.debugHTTP {
		opts = append(opts, reststore.WithTransport(&debugTransport{base: http.DefaultTransport}))
	}
	return opts
}
