// Package profile manages the catalog of role definitions available to the
// orchestration strategies.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/foreman/pkg/models"
)

var (
	// ErrDuplicateRole is returned when registering a name that exists.
	ErrDuplicateRole = errors.New("duplicate role")
	// ErrRoleNotFound is returned when looking up an unknown role.
	ErrRoleNotFound = errors.New("role not found")
)

// Registry provides thread-safe storage and retrieval of role profiles.
// Profiles arrive pre-parsed from an external loader; the registry never
// inspects their source representation.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]models.Profile),
	}
}

// Register adds a profile to the registry.
// Returns ErrDuplicateRole if the name is already registered.
func (r *Registry) Register(p models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[p.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRole, p.Name)
	}
	r.profiles[p.Name] = p
	return nil
}

// Lookup retrieves a profile by role name.
func (r *Registry) Lookup(name string) (models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	if !ok {
		return models.Profile{}, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	return p, nil
}

// List returns all registered profiles sorted by name.
func (r *Registry) List() []models.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all registered role names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// ReplaceAll atomically swaps the registry contents for a fresh catalog.
// Used by the directory watcher when profile files change on disk.
func (r *Registry) ReplaceAll(profiles []models.Profile) {
	next := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		if _, ok := next[p.Name]; ok {
			continue
		}
		next[p.Name] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = next
}
