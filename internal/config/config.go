// Package config handles configuration loading from environment variables and optional YAML files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Sync      SyncConfig
	Google    GoogleConfig
	CalDAV    CalDAVConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Display   DisplayConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path          string
	WALMode       bool
	BusyTimeoutMs int
}

// SyncConfig holds busy-block synchronization settings.
type SyncConfig struct {
	// IntervalMinutes is the auto-sync period.
	IntervalMinutes int
	// BlockSubject labels synthetic busy-blocks. Blocks are recognized
	// on later passes by a provider-level marker, not by subject.
	BlockSubject string
	// BlockCategory tags synthetic blocks on providers that support
	// event categories (CalDAV CATEGORIES).
	BlockCategory string
	// LookAheadDays/LookBehindDays widen the pass window around the
	// target day. Both default to 0: only the target day is synced.
	LookAheadDays  int
	LookBehindDays int
	// AutoSync starts the periodic trigger at boot.
	AutoSync bool
}

// GoogleConfig holds Google OAuth settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// CalDAVAccount describes one CalDAV server to mirror calendars from.
type CalDAVAccount struct {
	Name     string
	URL      string
	Username string
	Password string
}

// CalDAVConfig holds CalDAV provider settings.
type CalDAVConfig struct {
	Accounts []CalDAVAccount
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	// APIToken protects the HTTP API. Only a bcrypt hash is kept in
	// memory after startup.
	APIToken      string
	EncryptionKey string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// DisplayConfig holds timezone settings for day-window computation.
type DisplayConfig struct {
	Timezone string
}

// RetentionConfig holds pass-history retention settings.
type RetentionConfig struct {
	Enabled     bool
	HistoryDays int
}

// Load reads configuration from environment variables with defaults,
// then applies the optional YAML file named by BUSYSYNC_CONFIG_FILE.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Server = ServerConfig{
		Host:         getEnv("HOST", DefaultHost),
		Port:         getEnvInt("PORT", DefaultPort),
		BaseURL:      getEnv("BASE_URL", DefaultBaseURL),
		ReadTimeout:  getEnvDuration("READ_TIMEOUT", DefaultReadTimeout),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", DefaultWriteTimeout),
	}

	cfg.Database = DatabaseConfig{
		Path:          getEnv("DATA_DIR", DefaultDataDir) + "/busysync.db",
		WALMode:       true,
		BusyTimeoutMs: DefaultBusyTimeoutMs,
	}

	cfg.Sync = SyncConfig{
		IntervalMinutes: getEnvInt("SYNC_INTERVAL_MINUTES", DefaultSyncIntervalMinutes),
		BlockSubject:    getEnv("SYNC_BLOCK_SUBJECT", DefaultBlockSubject),
		BlockCategory:   getEnv("SYNC_BLOCK_CATEGORY", DefaultBlockCategory),
		LookAheadDays:   getEnvInt("SYNC_LOOK_AHEAD_DAYS", 0),
		LookBehindDays:  getEnvInt("SYNC_LOOK_BEHIND_DAYS", 0),
		AutoSync:        getEnvBool("SYNC_AUTO", false),
	}

	cfg.Google = GoogleConfig{
		ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		RedirectURI:  cfg.Server.BaseURL + "/oauth/callback",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
	}

	// A single CalDAV account can come from the environment; additional
	// accounts require the config file.
	if url := getEnv("CALDAV_URL", ""); url != "" {
		cfg.CalDAV.Accounts = append(cfg.CalDAV.Accounts, CalDAVAccount{
			Name:     getEnv("CALDAV_NAME", "caldav"),
			URL:      url,
			Username: getEnv("CALDAV_USERNAME", ""),
			Password: getEnv("CALDAV_PASSWORD", ""),
		})
	}

	cfg.Auth = AuthConfig{
		APIToken:      getEnv("API_TOKEN", ""),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
	}

	cfg.Logging = LoggingConfig{
		Level:  getEnv("LOG_LEVEL", DefaultLogLevel),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	cfg.Display = DisplayConfig{
		Timezone: getEnv("DISPLAY_TIMEZONE", DefaultTimezone),
	}

	cfg.Retention = RetentionConfig{
		Enabled:     true,
		HistoryDays: getEnvInt("RETENTION_HISTORY_DAYS", DefaultHistoryDays),
	}

	if err := loadConfigFile(cfg, os.Getenv("BUSYSYNC_CONFIG_FILE")); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Sync.IntervalMinutes < 1 {
		return fmt.Errorf("sync interval must be at least 1 minute, got %d", c.Sync.IntervalMinutes)
	}
	if c.Sync.BlockSubject == "" {
		return fmt.Errorf("sync block subject must not be empty")
	}
	if c.Sync.LookAheadDays < 0 || c.Sync.LookBehindDays < 0 {
		return fmt.Errorf("look-ahead and look-behind days must not be negative")
	}
	if c.GoogleEnabled() && c.Auth.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required when Google OAuth is configured")
	}

	if c.Auth.APIToken == "" {
		// Warning, not an error: useful for local setups behind a
		// reverse proxy that handles auth.
		fmt.Println("Warning: API_TOKEN not set. The HTTP API is unauthenticated.")
	}

	return nil
}

// GoogleEnabled reports whether the Google provider is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
