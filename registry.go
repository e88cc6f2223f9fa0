// File: registry.go
package main

import (
	"context"
	"sync"
	"time"
)

type registryEntry struct {
	widget   *Widget
	lastSeen time.Time
}

// Registry holds the live widgets so reload requests can find them.
// Idle widgets are dropped after ttl; nothing is persisted.
type Registry struct {
	mu      sync.Mutex
	widgets map[string]*registryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Registry{
		widgets: make(map[string]*registryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *Registry) Add(w *Widget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[w.ID()] = &registryEntry{widget: w, lastSeen: r.now()}
	liveWidgets.Set(float64(len(r.widgets)))
}

// Get returns the widget and refreshes its idle timer.
func (r *Registry) Get(id string) (*Widget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.widgets[id]
	if !ok {
		return nil, false
	}
	if r.now().Sub(e.lastSeen) > r.ttl {
		delete(r.widgets, id)
		liveWidgets.Set(float64(len(r.widgets)))
		return nil, false
	}
	e.lastSeen = r.now()
	return e.widget, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.widgets)
}

// Sweep removes idle widgets and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, e := range r.widgets {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.widgets, id)
			n++
		}
	}
	liveWidgets.Set(float64(len(r.widgets)))
	return n
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				Sugar.Debugf("swept %d idle widgets", n)
			}
		}
	}
}
