// Package zone implements the zone registry: named, typed traffic
// endpoints, each referencing an inbound/outbound ACL by number.
package zone

import (
	"sync"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

// Registry holds the live set of configured zones. Reads vastly outnumber
// writes (every request looks up its zone; zones are reconfigured rarely),
// so a copy-on-write map under a mutex is enough — this does not need the
// RCU buffer's reader-epoch bookkeeping, which earns its cost only for the
// hot-path pattern/signature sets in internal/rcu.
type Registry struct {
	mu    sync.RWMutex
	zones map[string]domain.Zone
}

func NewRegistry() *Registry {
	return &Registry{zones: make(map[string]domain.Zone)}
}

// Put inserts or replaces a zone by name.
func (r *Registry) Put(z domain.Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]domain.Zone, len(r.zones)+1)
	for k, v := range r.zones {
		next[k] = v
	}
	next[z.Name] = z
	r.zones = next
}

// Get looks up a zone by name.
func (r *Registry) Get(name string) (domain.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	z, ok := r.zones[name]
	if !ok {
		return domain.Zone{}, shielderr.New(shielderr.KindNotFound, "zone.Get")
	}
	return z, nil
}

// Delete removes a zone by name. Deleting an unknown zone is a no-op.
func (r *Registry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.zones[name]; !ok {
		return
	}
	next := make(map[string]domain.Zone, len(r.zones))
	for k, v := range r.zones {
		if k != name {
			next[k] = v
		}
	}
	r.zones = next
}

// List returns a snapshot of all configured zones.
func (r *Registry) List() []domain.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Zone, 0, len(r.zones))
	for _, z := range r.zones {
		out = append(out, z)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.zones)
}
