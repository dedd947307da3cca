package service

import (
	"context"
	"sync"
	"time"

	"github.com/splitpot/api/internal/model"
)

// UpdateRegistry backs the long-poll endpoint for recently accessed events.
// A waiter parks until any of its invitation codes sees activity or the
// timeout elapses, and removes itself from the registry on completion so
// the waiter maps never grow without bound.
type UpdateRegistry struct {
	mu      sync.Mutex
	waiters map[string]map[int]chan *model.Event // code -> waiterID -> channel
	nextID  int
}

// NewUpdateRegistry creates an empty registry.
func NewUpdateRegistry() *UpdateRegistry {
	return &UpdateRegistry{waiters: make(map[string]map[int]chan *model.Event)}
}

// Await blocks until one of the codes is updated, the timeout elapses, or
// the context is cancelled. Returns the updated event and true on a hit.
func (r *UpdateRegistry) Await(ctx context.Context, codes []string, timeout time.Duration) (*model.Event, bool) {
	ch := make(chan *model.Event, 1)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	for _, code := range codes {
		if r.waiters[code] == nil {
			r.waiters[code] = make(map[int]chan *model.Event)
		}
		r.waiters[code][id] = ch
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		for _, code := range codes {
			if m, ok := r.waiters[code]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(r.waiters, code)
				}
			}
		}
		r.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-ch:
		return ev, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Notify wakes every waiter registered for the code.
func (r *UpdateRegistry) Notify(code string, ev *model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.waiters[code] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// WaiterCount returns the number of waiters registered for a code.
func (r *UpdateRegistry) WaiterCount(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters[code])
}
