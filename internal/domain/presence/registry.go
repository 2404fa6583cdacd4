package presence

import (
	"sort"
	"sync"
	"time"
)

// Handle is one live client connection as seen by the registry.
type Handle interface {
	ID() string
	UserID() string
	LastSeen() time.Time
	Close() error
}

// EventKind distinguishes presence transitions.
type EventKind string

const (
	EventOnline  EventKind = "online"
	EventOffline EventKind = "offline"
)

// Event reports a user's first connection or last disconnection.
type Event struct {
	Kind   EventKind
	UserID string
}

// Listener receives presence events outside the registry lock, in the order
// the transitions happened. Listeners may call back into the registry.
type Listener func(Event)

// Registry maps user IDs to their live handles. It never persists anything.
//
// Transitions are queued under mu and delivered by one flushing goroutine at
// a time, so a fast connect/disconnect pair is never reported as offline
// before online.
type Registry struct {
	mu        sync.RWMutex
	byUser    map[string]map[string]Handle
	listeners []Listener
	pending   []Event
	flushing  bool
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]Handle),
	}
}

// Subscribe registers fn for presence events. Intended for wiring at startup.
func (r *Registry) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Connect adds h and reports whether it is the user's first live handle.
func (r *Registry) Connect(h Handle) bool {
	userID := h.UserID()

	r.mu.Lock()
	handles, ok := r.byUser[userID]
	if !ok {
		handles = make(map[string]Handle)
		r.byUser[userID] = handles
	}
	_, duplicate := handles[h.ID()]
	handles[h.ID()] = h
	first := len(handles) == 1 && !duplicate
	if first {
		r.pending = append(r.pending, Event{Kind: EventOnline, UserID: userID})
	}
	r.mu.Unlock()

	if first {
		r.flush()
	}
	return first
}

// Disconnect removes h and reports whether it was the user's last live handle.
// Unknown handles are ignored.
func (r *Registry) Disconnect(h Handle) bool {
	userID := h.UserID()

	r.mu.Lock()
	handles, ok := r.byUser[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if _, known := handles[h.ID()]; !known {
		r.mu.Unlock()
		return false
	}
	delete(handles, h.ID())
	last := len(handles) == 0
	if last {
		delete(r.byUser, userID)
		r.pending = append(r.pending, Event{Kind: EventOffline, UserID: userID})
	}
	r.mu.Unlock()

	if last {
		r.flush()
	}
	return last
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// ConnectionsFor returns a snapshot of the user's handles.
func (r *Registry) ConnectionsFor(userID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.byUser[userID]
	out := make([]Handle, 0, len(handles))
	for _, h := range handles {
		out = append(out, h)
	}
	return out
}

// OnlineUsers returns the sorted IDs of users with at least one handle.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Handles returns a snapshot of every live handle.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.byUser))
	for _, handles := range r.byUser {
		for _, h := range handles {
			out = append(out, h)
		}
	}
	return out
}

// Stale returns handles whose last activity is before the cutoff.
func (r *Registry) Stale(before time.Time) []Handle {
	var out []Handle
	for _, h := range r.Handles() {
		if h.LastSeen().Before(before) {
			out = append(out, h)
		}
	}
	return out
}

// Count returns the number of live handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, handles := range r.byUser {
		n += len(handles)
	}
	return n
}

// flush delivers queued events in order. If another goroutine is already
// flushing, it picks up whatever was queued here.
func (r *Registry) flush() {
	r.mu.Lock()
	if r.flushing {
		r.mu.Unlock()
		return
	}
	r.flushing = true
	for len(r.pending) > 0 {
		evt := r.pending[0]
		r.pending = r.pending[1:]
		listeners := r.listeners
		r.mu.Unlock()

		for _, fn := range listeners {
			fn(evt)
		}

		r.mu.Lock()
	}
	r.flushing = false
	r.mu.Unlock()
}
