package apperr

import "sync"

// DefaultRecorderSize bounds the in-process diagnostic queue.
const DefaultRecorderSize = 50

// Recorder keeps the most recent classified errors in memory for diagnostics.
// Nothing is persisted externally. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	buf  []*Error
	next int
	full bool
}

// NewRecorder creates a recorder holding at most size entries; size <= 0 uses
// DefaultRecorderSize.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultRecorderSize
	}
	return &Recorder{buf: make([]*Error, size)}
}

// Record appends e, evicting the oldest entry once the buffer is full.
func (r *Recorder) Record(e *Error) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns the recorded errors, oldest first.
func (r *Recorder) Recent() []*Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Error
	if r.full {
		out = append(out, r.buf[r.next:]...)
	}
	out = append(out, r.buf[:r.next]...)
	res := make([]*Error, 0, len(out))
	for _, e := range out {
		if e != nil {
			res = append(res, e)
		}
	}
	return res
}

// Len reports how many errors are currently held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}
