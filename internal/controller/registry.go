package controller

import (
	"sort"
	"sync"
)

// Registry stores controllers by name for status reporting.
type Registry struct {
	repo map[string]*Controller
	mu   sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{repo: make(map[string]*Controller)}
}

// Register adds c, replacing any controller with the same name.
func (r *Registry) Register(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repo[c.Name()] = c
}

func (r *Registry) Get(name string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.repo[name]
	return c, ok
}

// All returns the controllers sorted by name.
func (r *Registry) All() []*Controller {
	r.mu.RLock()
	out := make([]*Controller, 0, len(r.repo))
	for _, c := range r.repo {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Snapshot returns Stats for every registered controller, sorted by name.
func (r *Registry) Snapshot() []Stats {
	all := r.All()
	out := make([]Stats, 0, len(all))
	for _, c := range all {
		out = append(out, c.Stats())
	}
	return out
}
