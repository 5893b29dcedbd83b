package docstore

import "sync"

// Hub is the in-process change notifier shared by adapters that have no
// native change feed (memstore, sqlitestore, pgstore). A mutation triggers
// every document watcher for that id plus every collection watcher; each
// registered fire func re-fetches and invokes the user callback.
type Hub struct {
	mu      sync.Mutex
	nextID  int
	docSubs map[string]map[int]func()
	colSubs map[int]func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{docSubs: make(map[string]map[int]func()), colSubs: make(map[int]func())}
}

// WatchDoc registers fire for changes to id and returns the cancel func.
func (h *Hub) WatchDoc(id string, fire func()) (cancel func()) {
	h.mu.Lock()
	sid := h.nextID
	h.nextID++
	if h.docSubs[id] == nil {
		h.docSubs[id] = make(map[int]func())
	}
	h.docSubs[id][sid] = fire
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		if subs := h.docSubs[id]; subs != nil {
			delete(subs, sid)
			if len(subs) == 0 {
				delete(h.docSubs, id)
			}
		}
		h.mu.Unlock()
	}
}

// WatchCollection registers fire for any mutation in the collection.
func (h *Hub) WatchCollection(fire func()) (cancel func()) {
	h.mu.Lock()
	sid := h.nextID
	h.nextID++
	h.colSubs[sid] = fire
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.colSubs, sid)
		h.mu.Unlock()
	}
}

// Notify fans out a mutation of id. Callbacks run on a fresh goroutine so a
// slow subscriber cannot block the writer.
func (h *Hub) Notify(id string) {
	h.mu.Lock()
	var fires []func()
	for _, fn := range h.docSubs[id] {
		fires = append(fires, fn)
	}
	for _, fn := range h.colSubs {
		fires = append(fires, fn)
	}
	h.mu.Unlock()
	for _, fn := range fires {
		go fn()
	}
}
