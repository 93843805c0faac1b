package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// Entry is anything registrable: a named provider with a supported-network
// set. The type parameter pins each registry to one provider family, so a
// provider of the wrong family cannot be registered at all.
type Entry interface {
	Name() string
	Networks() []core.NetworkID
}

// Registry is a pure in-memory index; it performs no I/O and is safe for
// concurrent use.
type Registry[P Entry] struct {
	mu     sync.RWMutex
	byName map[string]P
}

func New[P Entry]() *Registry[P] {
	return &Registry[P]{byName: make(map[string]P)}
}

// Register adds the provider under its lowercased name; re-registering a
// name replaces the previous provider.
func (r *Registry[P]) Register(p P) {
	r.mu.Lock()
	r.byName[strings.ToLower(p.Name())] = p
	r.mu.Unlock()
}

// Get resolves a provider by name, case-insensitively. The error lists the
// registered names so callers can surface alternatives.
func (r *Registry[P]) Get(name string) (P, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	var zero P
	if len(r.byName) == 0 {
		return zero, binkerr.Newf(binkerr.CodeProviderUnsupported, "provider %q not registered (none registered)", name)
	}
	return zero, binkerr.Newf(binkerr.CodeProviderUnsupported,
		"provider %q not registered (registered: %s)", name, strings.Join(r.names(), ", "))
}

// ByNetwork returns the providers serving the network, sorted by name for
// deterministic fan-out order. The wildcard returns everything.
func (r *Registry[P]) ByNetwork(network core.NetworkID) []P {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []P
	for _, name := range r.names() {
		p := r.byName[name]
		if network == core.NetworkAll || supports(p, network) {
			out = append(out, p)
		}
	}
	return out
}

func supports[P Entry](p P, network core.NetworkID) bool {
	for _, n := range p.Networks() {
		if n == network || n == core.NetworkAll {
			return true
		}
	}
	return false
}

// Names lists registered names in sorted order.
func (r *Registry[P]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry[P]) names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Networks is the union of every registered provider's networks, sorted.
func (r *Registry[P]) Networks() []core.NetworkID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[core.NetworkID]bool)
	for _, p := range r.byName {
		for _, n := range p.Networks() {
			seen[n] = true
		}
	}
	out := make([]core.NetworkID, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry[P]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
