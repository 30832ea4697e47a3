package navigation

import (
	"log/slog"
	"sync"
)

// Router owns the navigation history. The top entry is the active route.
type Router struct {
	mu      sync.Mutex
	history []Segments
	subs    map[int]func(Segments)
	nextSub int
	logger  *slog.Logger
}

// NewRouter creates a router positioned at initial.
func NewRouter(initial string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		history: []Segments{ParsePath(initial)},
		subs:    make(map[int]func(Segments)),
		logger:  logger,
	}
}

// Segments returns the active route segments.
func (r *Router) Segments() Segments {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[len(r.history)-1].Clone()
}

// Path returns the active route as a path.
func (r *Router) Path() string {
	return r.Segments().Path()
}

// Depth returns the number of history entries.
func (r *Router) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// Push navigates to path, keeping the current route in history.
func (r *Router) Push(path string) {
	segs := ParsePath(path)
	r.mu.Lock()
	top := r.history[len(r.history)-1]
	if top.Equal(segs) {
		r.mu.Unlock()
		return
	}
	r.history = append(r.history, segs)
	subs := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Debug("Navigation push", "path", segs.Path())
	notify(subs, segs)
}

// Replace swaps the active route for path without growing history.
func (r *Router) Replace(path string) {
	segs := ParsePath(path)
	r.mu.Lock()
	top := r.history[len(r.history)-1]
	if top.Equal(segs) {
		r.mu.Unlock()
		return
	}
	r.history[len(r.history)-1] = segs
	subs := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Debug("Navigation replace", "path", segs.Path())
	notify(subs, segs)
}

// Back pops the active route. Returns false at the root of history.
func (r *Router) Back() bool {
	r.mu.Lock()
	if len(r.history) < 2 {
		r.mu.Unlock()
		return false
	}
	r.history = r.history[:len(r.history)-1]
	segs := r.history[len(r.history)-1]
	subs := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Debug("Navigation back", "path", segs.Path())
	notify(subs, segs)
	return true
}

// Subscribe registers fn to be called with the new segments after every
// route change. The returned function removes the subscription.
func (r *Router) Subscribe(fn func(Segments)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

func (r *Router) snapshotLocked() []func(Segments) {
	subs := make([]func(Segments), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Segments), segs Segments) {
	for _, fn := range subs {
		fn(segs.Clone())
	}
}
