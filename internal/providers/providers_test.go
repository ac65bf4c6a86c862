package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmorrell/busysync/internal/interval"
	"github.com/jmorrell/busysync/internal/registry"
)

type fakeProvider struct {
	listed  []string
	created []string
	deleted []string
	listErr error
}

func (f *fakeProvider) ListEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]interval.BusyInterval, error) {
	f.listed = append(f.listed, calendarID)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []interval.BusyInterval{}, nil
}

func (f *fakeProvider) CreateBusyBlock(ctx context.Context, calendarID string, block interval.BusyInterval) (string, error) {
	f.created = append(f.created, calendarID)
	return "evt-1", nil
}

func (f *fakeProvider) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	f.deleted = append(f.deleted, calendarID+"/"+eventID)
	return nil
}

func TestMuxDispatch(t *testing.T) {
	reg := registry.New()
	reg.Upsert(registry.Entry{ID: "g-cal", DisplayName: "Work", Provider: "google"})
	reg.Upsert(registry.Entry{ID: "d-cal", DisplayName: "Personal", Provider: "caldav:home"})

	google := &fakeProvider{}
	caldav := &fakeProvider{}
	mux := NewMux(reg)
	mux.Register("google", google)
	mux.Register("caldav:home", caldav)

	ctx := context.Background()
	now := time.Now()

	if _, err := mux.ListEvents(ctx, "g-cal", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(google.listed) != 1 || google.listed[0] != "g-cal" {
		t.Errorf("google listed = %v", google.listed)
	}
	if len(caldav.listed) != 0 {
		t.Errorf("caldav should not have been called, listed = %v", caldav.listed)
	}

	id, err := mux.CreateBusyBlock(ctx, "d-cal", interval.BusyInterval{})
	if err != nil {
		t.Fatalf("CreateBusyBlock failed: %v", err)
	}
	if id != "evt-1" {
		t.Errorf("event id = %q", id)
	}
	if len(caldav.created) != 1 || caldav.created[0] != "d-cal" {
		t.Errorf("caldav created = %v", caldav.created)
	}

	if err := mux.DeleteEvent(ctx, "d-cal", "evt-9"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if len(caldav.deleted) != 1 || caldav.deleted[0] != "d-cal/evt-9" {
		t.Errorf("caldav deleted = %v", caldav.deleted)
	}
}

func TestMuxUnknownCalendar(t *testing.T) {
	mux := NewMux(registry.New())
	mux.Register("google", &fakeProvider{})

	_, err := mux.ListEvents(context.Background(), "missing", time.Now(), time.Now())
	if !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMuxUnregisteredProvider(t *testing.T) {
	reg := registry.New()
	reg.Upsert(registry.Entry{ID: "cal", Provider: "exchange"})

	mux := NewMux(reg)
	if _, err := mux.ListEvents(context.Background(), "cal", time.Now(), time.Now()); err == nil {
		t.Error("dispatch to unregistered provider should fail")
	}
}

func TestDiscoveryRefresh(t *testing.T) {
	reg := registry.New()
	disc := NewDiscovery(reg)

	disc.Register("google", func(ctx context.Context) ([]registry.Entry, error) {
		return []registry.Entry{
			{ID: "g-1", DisplayName: "Work"},
			{ID: "g-2", DisplayName: "Team"},
		}, nil
	})
	disc.Register("caldav:home", func(ctx context.Context) ([]registry.Entry, error) {
		return nil, errors.New("connection refused")
	})

	if err := disc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	entries := reg.List()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Provider != "google" {
			t.Errorf("entry %s provider = %q, want google", e.ID, e.Provider)
		}
		if e.SyncEnabled {
			t.Errorf("entry %s should start disabled", e.ID)
		}
	}
}

func TestDiscoveryPreservesEnabledFlag(t *testing.T) {
	reg := registry.New()
	reg.Upsert(registry.Entry{ID: "g-1", DisplayName: "Work", Provider: "google"})
	if err := reg.SetEnabled("g-1", true); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}

	disc := NewDiscovery(reg)
	disc.Register("google", func(ctx context.Context) ([]registry.Entry, error) {
		return []registry.Entry{{ID: "g-1", DisplayName: "Work (renamed)"}}, nil
	})

	if err := disc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	entry, err := reg.Get("g-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !entry.SyncEnabled {
		t.Error("refresh dropped the enabled flag")
	}
	if entry.DisplayName != "Work (renamed)" {
		t.Errorf("DisplayName = %q", entry.DisplayName)
	}
}

func TestDiscoveryAllProvidersFailed(t *testing.T) {
	disc := NewDiscovery(registry.New())
	disc.Register("google", func(ctx context.Context) ([]registry.Entry, error) {
		return nil, errors.New("boom")
	})

	if err := disc.Refresh(context.Background()); err == nil {
		t.Error("Refresh should fail when every provider fails")
	}
}
