package store

import (
	"sync"
	"sync/atomic"
)

type subscription struct {
	path string
	fn   Handler
}

// fanout keeps the subscriber table shared by all backends.
type fanout struct {
	mu   sync.RWMutex
	next atomic.Uint64
	subs map[uint64]subscription
}

func newFanout() *fanout {
	return &fanout{subs: make(map[uint64]subscription)}
}

func (f *fanout) add(path string, fn Handler) func() {
	id := f.next.Add(1)
	f.mu.Lock()
	f.subs[id] = subscription{path: path, fn: fn}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

func (f *fanout) len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// matching returns the handlers interested in a write at path.
func (f *fanout) matching(path string) []subscription {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []subscription
	for _, s := range f.subs {
		if Affects(s.path, path) {
			out = append(out, s)
		}
	}
	return out
}

// publish must be called without any store lock held: handlers may call back in.
func (f *fanout) publish(ev Event) {
	for _, s := range f.matching(ev.Path) {
		s.fn(ev)
	}
}
