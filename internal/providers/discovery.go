package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jmorrell/busysync/internal/registry"
	"github.com/jmorrell/busysync/internal/util"
)

// DiscoverFunc enumerates the calendars one provider can see.
type DiscoverFunc func(ctx context.Context) ([]registry.Entry, error)

// Discovery refreshes the calendar registry from all registered
// providers. Calendars discovered for the first time start with sync
// disabled; the user opts each one in.
type Discovery struct {
	registry *registry.Registry

	mu    sync.RWMutex
	funcs map[string]DiscoverFunc
}

// NewDiscovery creates a discovery runner over the registry.
func NewDiscovery(reg *registry.Registry) *Discovery {
	return &Discovery{
		registry: reg,
		funcs:    make(map[string]DiscoverFunc),
	}
}

// Register adds a provider's discovery function under its provider name.
func (d *Discovery) Register(name string, fn DiscoverFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.funcs[name] = fn
}

// Refresh queries every provider and upserts what it finds. A provider
// failure is logged and skipped so one unreachable backend does not hide
// the others.
func (d *Discovery) Refresh(ctx context.Context) error {
	d.mu.RLock()
	names := make([]string, 0, len(d.funcs))
	for name := range d.funcs {
		names = append(names, name)
	}
	d.mu.RUnlock()
	sort.Strings(names)

	var failed int
	for _, name := range names {
		d.mu.RLock()
		fn := d.funcs[name]
		d.mu.RUnlock()

		entries, err := fn(ctx)
		if err != nil {
			util.Warn("Calendar discovery failed", "provider", name, "error", err)
			failed++
			continue
		}
		for _, entry := range entries {
			entry.Provider = name
			d.registry.Upsert(entry)
		}
		util.Info("Discovered calendars", "provider", name, "count", len(entries))
	}

	if failed == len(names) && len(names) > 0 {
		return fmt.Errorf("all %d providers failed discovery", failed)
	}
	return nil
}
