package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmorrell/busysync/internal/config"
	"github.com/jmorrell/busysync/internal/database"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func TestLoadEmpty(t *testing.T) {
	store := setupTestStore(t)

	settings, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings == nil || settings.Sync != nil {
		t.Errorf("fresh database should yield empty settings, got %+v", settings)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	auto := true
	in := &RuntimeSettings{
		Sync: &SyncSettings{
			IntervalMinutes: 30,
			BlockSubject:    "Busy elsewhere",
			LookAheadDays:   2,
			LookBehindDays:  1,
			AutoSync:        &auto,
		},
		Logging: &LoggingSettings{Level: "debug"},
	}

	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if out.Sync == nil {
		t.Fatal("Sync settings missing after reload")
	}
	if out.Sync.IntervalMinutes != 30 {
		t.Errorf("IntervalMinutes = %d, want 30", out.Sync.IntervalMinutes)
	}
	if out.Sync.BlockSubject != "Busy elsewhere" {
		t.Errorf("BlockSubject = %q", out.Sync.BlockSubject)
	}
	if out.Sync.AutoSync == nil || !*out.Sync.AutoSync {
		t.Error("AutoSync flag lost")
	}
	if out.Logging == nil || out.Logging.Level != "debug" {
		t.Errorf("Logging = %+v", out.Logging)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &RuntimeSettings{Sync: &SyncSettings{IntervalMinutes: 15}}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := store.Save(ctx, &RuntimeSettings{Sync: &SyncSettings{IntervalMinutes: 45}}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.Sync.IntervalMinutes != 45 {
		t.Errorf("IntervalMinutes = %d, want 45", out.Sync.IntervalMinutes)
	}
}

func TestCalendarFlagsRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	flags, err := store.LoadCalendarFlags(ctx)
	if err != nil {
		t.Fatalf("LoadCalendarFlags failed: %v", err)
	}
	if len(flags) != 0 {
		t.Errorf("fresh database flags = %v, want empty", flags)
	}

	in := map[string]bool{"work": true, "personal": false}
	if err := store.SaveCalendarFlags(ctx, in); err != nil {
		t.Fatalf("SaveCalendarFlags failed: %v", err)
	}

	out, err := store.LoadCalendarFlags(ctx)
	if err != nil {
		t.Fatalf("LoadCalendarFlags failed: %v", err)
	}
	if !out["work"] || out["personal"] {
		t.Errorf("flags = %v", out)
	}
}

func TestApplyTo(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sync.IntervalMinutes = 15
	cfg.Sync.BlockSubject = "[BusySync] Busy"
	cfg.Logging.Level = "info"

	auto := true
	s := &RuntimeSettings{
		Sync: &SyncSettings{
			IntervalMinutes: 60,
			AutoSync:        &auto,
		},
	}

	if err := s.ApplyTo(cfg); err != nil {
		t.Fatalf("ApplyTo failed: %v", err)
	}

	if cfg.Sync.IntervalMinutes != 60 {
		t.Errorf("IntervalMinutes = %d, want 60", cfg.Sync.IntervalMinutes)
	}
	// Unset fields keep their configured values
	if cfg.Sync.BlockSubject != "[BusySync] Busy" {
		t.Errorf("BlockSubject = %q, want unchanged", cfg.Sync.BlockSubject)
	}
	if !cfg.Sync.AutoSync {
		t.Error("AutoSync not applied")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want unchanged", cfg.Logging.Level)
	}
}

func TestApplyToNil(t *testing.T) {
	var s *RuntimeSettings
	if err := s.ApplyTo(&config.Config{}); err != nil {
		t.Errorf("nil settings ApplyTo failed: %v", err)
	}
}
