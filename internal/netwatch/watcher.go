// Package netwatch observes connectivity and raises edge-triggered
// online/offline transitions that drive the offline queue.
package netwatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the last observed connectivity snapshot.
type State struct {
	Connected         bool
	InternetReachable bool
	TransportType     string
}

// Offline reports the derived offline mode: missing transport or unconfirmed
// reachability both count as offline.
func (s State) Offline() bool { return !s.Connected || !s.InternetReachable }

// Listener receives the full new state on every observed change.
type Listener func(State)

// Watcher fans out connectivity changes to subscribers and fires reconnect /
// disconnect hooks exactly on the offline-mode flip, never on every change.
type Watcher struct {
	log zerolog.Logger

	mu      sync.Mutex
	state   State
	started bool
	nextID  int
	subs    map[int]Listener

	onReconnect  []func()
	onDisconnect []func()
}

// New creates a watcher whose initial state is offline until the first probe
// or Set call reports otherwise.
func New(log zerolog.Logger) *Watcher {
	return &Watcher{log: log, subs: make(map[int]Listener)}
}

// State returns the current connectivity snapshot.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Offline reports the current derived offline mode.
func (w *Watcher) Offline() bool { return w.State().Offline() }

// Subscribe registers a listener and returns its cancel func. The cancel func
// must be called exactly once to release the listener.
func (w *Watcher) Subscribe(fn Listener) (cancel func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// OnReconnect registers a hook invoked exactly on the offline→online flip.
func (w *Watcher) OnReconnect(fn func()) {
	w.mu.Lock()
	w.onReconnect = append(w.onReconnect, fn)
	w.mu.Unlock()
}

// OnDisconnect registers a hook invoked exactly on the online→offline flip.
func (w *Watcher) OnDisconnect(fn func()) {
	w.mu.Lock()
	w.onDisconnect = append(w.onDisconnect, fn)
	w.mu.Unlock()
}

// Set records a newly observed state. All subscribers are notified on any
// change; the edge hooks run only when the derived offline mode flips. The
// very first observation establishes the baseline and never fires a hook, so
// startup cannot masquerade as a reconnect.
func (w *Watcher) Set(s State) {
	w.mu.Lock()
	prev := w.state
	first := !w.started
	w.started = true
	if !first && prev == s {
		w.mu.Unlock()
		return
	}
	w.state = s

	listeners := make([]Listener, 0, len(w.subs))
	for _, fn := range w.subs {
		listeners = append(listeners, fn)
	}

	var hooks []func()
	if !first {
		if prev.Offline() && !s.Offline() {
			hooks = append(hooks, w.onReconnect...)
		} else if !prev.Offline() && s.Offline() {
			hooks = append(hooks, w.onDisconnect...)
		}
	}
	w.mu.Unlock()

	if len(hooks) > 0 {
		w.log.Info().Bool("offline", s.Offline()).Msg("connectivity flip")
	}
	for _, fn := range listeners {
		fn(s)
	}
	for _, fn := range hooks {
		fn()
	}
}

// Prober checks reachability of the backend. Implementations must be safe for
// repeated calls.
type Prober interface {
	Probe(ctx context.Context) State
}

// Run polls the prober until ctx is cancelled, feeding each result into Set.
// An immediate probe runs before the first tick.
func (w *Watcher) Run(ctx context.Context, p Prober, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	w.Set(p.Probe(ctx))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Set(p.Probe(ctx))
		}
	}
}
