// Package providers routes calendar operations to the provider backing
// each calendar.
package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmorrell/busysync/internal/interval"
	"github.com/jmorrell/busysync/internal/registry"
)

// Provider is a calendar backend: it can read busy intervals and write
// busy blocks.
type Provider interface {
	ListEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]interval.BusyInterval, error)
	CreateBusyBlock(ctx context.Context, calendarID string, block interval.BusyInterval) (string, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Mux dispatches calendar operations by provider name, using the
// registry to resolve which provider backs a calendar.
type Mux struct {
	registry *registry.Registry

	mu        sync.RWMutex
	providers map[string]Provider
}

// NewMux creates a mux over the given registry.
func NewMux(reg *registry.Registry) *Mux {
	return &Mux{
		registry:  reg,
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under a name. Registry entries reference
// providers by this name.
func (m *Mux) Register(name string, p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

// Names returns the registered provider names.
func (m *Mux) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names
}

func (m *Mux) resolve(calendarID string) (Provider, error) {
	entry, err := m.registry.Get(calendarID)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[entry.Provider]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", entry.Provider)
	}
	return p, nil
}

// ListEvents lists busy intervals via the calendar's provider.
func (m *Mux) ListEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]interval.BusyInterval, error) {
	p, err := m.resolve(calendarID)
	if err != nil {
		return nil, err
	}
	return p.ListEvents(ctx, calendarID, windowStart, windowEnd)
}

// CreateBusyBlock creates a busy block via the calendar's provider.
func (m *Mux) CreateBusyBlock(ctx context.Context, calendarID string, block interval.BusyInterval) (string, error) {
	p, err := m.resolve(calendarID)
	if err != nil {
		return "", err
	}
	return p.CreateBusyBlock(ctx, calendarID, block)
}

// DeleteEvent deletes an event via the calendar's provider.
func (m *Mux) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	p, err := m.resolve(calendarID)
	if err != nil {
		return err
	}
	return p.DeleteEvent(ctx, calendarID, eventID)
}
