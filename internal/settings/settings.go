// Package settings manages runtime configuration persisted in the
// database: sync tuning, the auto-sync flag, and per-calendar enabled
// state. Values here override the static config at startup and survive
// restarts.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmorrell/busysync/internal/config"
	"github.com/jmorrell/busysync/internal/database"
)

const (
	settingsKey      = "runtime_settings"
	calendarFlagsKey = "calendar_flags"
)

// Store manages runtime settings stored in the database.
type Store struct {
	db *database.DB
}

// NewStore creates a new runtime settings store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// RuntimeSettings represents settings that can be changed at runtime.
type RuntimeSettings struct {
	Sync    *SyncSettings    `json:"sync,omitempty"`
	Logging *LoggingSettings `json:"logging,omitempty"`
}

// SyncSettings mirrors config.SyncConfig for runtime overrides.
type SyncSettings struct {
	IntervalMinutes int    `json:"interval_minutes"`
	BlockSubject    string `json:"block_subject"`
	BlockCategory   string `json:"block_category"`
	LookAheadDays   int    `json:"look_ahead_days"`
	LookBehindDays  int    `json:"look_behind_days"`
	AutoSync        *bool  `json:"auto_sync,omitempty"`
}

type LoggingSettings struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// ApplyTo overlays the stored settings onto cfg.
func (s *RuntimeSettings) ApplyTo(cfg *config.Config) error {
	if s == nil {
		return nil
	}

	if s.Sync != nil {
		if s.Sync.IntervalMinutes > 0 {
			cfg.Sync.IntervalMinutes = s.Sync.IntervalMinutes
		}
		if s.Sync.BlockSubject != "" {
			cfg.Sync.BlockSubject = s.Sync.BlockSubject
		}
		if s.Sync.BlockCategory != "" {
			cfg.Sync.BlockCategory = s.Sync.BlockCategory
		}
		if s.Sync.LookAheadDays >= 0 {
			cfg.Sync.LookAheadDays = s.Sync.LookAheadDays
		}
		if s.Sync.LookBehindDays >= 0 {
			cfg.Sync.LookBehindDays = s.Sync.LookBehindDays
		}
		if s.Sync.AutoSync != nil {
			cfg.Sync.AutoSync = *s.Sync.AutoSync
		}
	}

	if s.Logging != nil {
		if s.Logging.Level != "" {
			cfg.Logging.Level = s.Logging.Level
		}
		if s.Logging.Format != "" {
			cfg.Logging.Format = s.Logging.Format
		}
	}

	return nil
}

// Load retrieves runtime settings from the database.
func (s *Store) Load(ctx context.Context) (*RuntimeSettings, error) {
	raw, err := s.loadValue(ctx, settingsKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return &RuntimeSettings{}, nil
	}

	var settings RuntimeSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("invalid runtime settings: %w", err)
	}

	return &settings, nil
}

// Save stores runtime settings in the database.
func (s *Store) Save(ctx context.Context, settings *RuntimeSettings) error {
	if settings == nil {
		return nil
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	return s.saveValue(ctx, settingsKey, string(data))
}

// LoadCalendarFlags retrieves the persisted per-calendar enabled flags.
func (s *Store) LoadCalendarFlags(ctx context.Context) (map[string]bool, error) {
	raw, err := s.loadValue(ctx, calendarFlagsKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return map[string]bool{}, nil
	}

	var flags map[string]bool
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return nil, fmt.Errorf("invalid calendar flags: %w", err)
	}

	return flags, nil
}

// SaveCalendarFlags stores the per-calendar enabled flags.
func (s *Store) SaveCalendarFlags(ctx context.Context, flags map[string]bool) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("failed to serialize calendar flags: %w", err)
	}
	return s.saveValue(ctx, calendarFlagsKey, string(data))
}

func (s *Store) loadValue(ctx context.Context, key string) (string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return raw, nil
}

func (s *Store) saveValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	return err
}
