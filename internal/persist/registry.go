package persist

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a table of path identities that are currently owned. The zero
// value is not usable; create one with NewRegistry. A Registry is safe for
// concurrent use.
type Registry struct {
	mu    sync.Mutex
	held  map[string]uint64
	token uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{held: map[string]uint64{}}
}

// Acquire takes ownership of id. If it is already owned, ErrAlreadyOpen is
// returned. The returned release function gives ownership back; calling it
// more than once has no further effect, and it never frees an ownership taken
// by a later Acquire of the same id.
func (reg *Registry) Acquire(id string) (release func(), err error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.held[id]; ok {
		return nil, fmt.Errorf("%s: %w", id, ErrAlreadyOpen)
	}
	reg.token++
	tok := reg.token
	reg.held[id] = tok

	var once sync.Once
	return func() {
		once.Do(func() {
			reg.mu.Lock()
			defer reg.mu.Unlock()
			if reg.held[id] == tok {
				delete(reg.held, id)
			}
		})
	}, nil
}

// Held returns whether id is currently owned.
func (reg *Registry) Held(id string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.held[id]
	return ok
}

// Len returns the number of owned identities.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.held)
}

// IDs returns all owned identities in sorted order.
func (reg *Registry) IDs() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ids := make([]string, 0, len(reg.held))
	for id := range reg.held {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
