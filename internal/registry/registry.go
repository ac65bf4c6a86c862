// Package registry tracks the calendars known to the service and which
// of them participate in sync passes.
package registry

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a calendar id is unknown to the registry.
var ErrNotFound = errors.New("calendar not found")

// Entry describes one registered calendar.
type Entry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Provider    string `json:"provider"`
	SyncEnabled bool   `json:"sync_enabled"`
}

// Registry is an in-memory calendar registry. Safe for concurrent use;
// the orchestrator reads it while HTTP handlers mutate it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Upsert adds or updates an entry. An existing entry keeps its enabled
// flag unless the caller explicitly changed it; discovery must not reset
// user choices.
func (r *Registry) Upsert(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[entry.ID]; ok {
		entry.SyncEnabled = existing.SyncEnabled
	}
	r.entries[entry.ID] = entry
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// List returns all entries ordered by id.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetEnabled toggles sync participation for a calendar. The change is
// visible to the next pass immediately.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	entry.SyncEnabled = enabled
	r.entries[id] = entry
	return nil
}

// EnabledIDs returns a snapshot of the enabled calendar ids, sorted.
// A pass captures this once at start and never re-reads mid-pass.
func (r *Registry) EnabledIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, entry := range r.entries {
		if entry.SyncEnabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// EnabledFlags returns the enabled flag per calendar id, for persistence.
func (r *Registry) EnabledFlags() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flags := make(map[string]bool, len(r.entries))
	for id, entry := range r.entries {
		flags[id] = entry.SyncEnabled
	}
	return flags
}

// ApplyFlags re-applies persisted enabled flags after discovery.
// Unknown ids are ignored; the calendar may have been removed upstream.
func (r *Registry) ApplyFlags(flags map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, enabled := range flags {
		if entry, ok := r.entries[id]; ok {
			entry.SyncEnabled = enabled
			r.entries[id] = entry
		}
	}
}
