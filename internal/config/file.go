package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type fileDuration time.Duration

func (d *fileDuration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!int" {
			var seconds int64
			if err := value.Decode(&seconds); err != nil {
				return err
			}
			*d = fileDuration(time.Duration(seconds) * time.Second)
			return nil
		}
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = fileDuration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration type")
	}
}

type ConfigFile struct {
	Server    *ServerConfigFile    `yaml:"server"`
	Database  *DatabaseConfigFile  `yaml:"database"`
	Sync      *SyncConfigFile      `yaml:"sync"`
	Google    *GoogleConfigFile    `yaml:"google"`
	CalDAV    *CalDAVConfigFile    `yaml:"caldav"`
	Auth      *AuthConfigFile      `yaml:"auth"`
	Logging   *LoggingConfigFile   `yaml:"logging"`
	Display   *DisplayConfigFile   `yaml:"display"`
	Retention *RetentionConfigFile `yaml:"retention"`
}

type ServerConfigFile struct {
	Host         *string       `yaml:"host"`
	Port         *int          `yaml:"port"`
	BaseURL      *string       `yaml:"base_url"`
	ReadTimeout  *fileDuration `yaml:"read_timeout"`
	WriteTimeout *fileDuration `yaml:"write_timeout"`
}

type DatabaseConfigFile struct {
	Path          *string `yaml:"path"`
	WALMode       *bool   `yaml:"wal_mode"`
	BusyTimeoutMs *int    `yaml:"busy_timeout_ms"`
}

type SyncConfigFile struct {
	IntervalMinutes *int    `yaml:"interval_minutes"`
	BlockSubject    *string `yaml:"block_subject"`
	BlockCategory   *string `yaml:"block_category"`
	LookAheadDays   *int    `yaml:"look_ahead_days"`
	LookBehindDays  *int    `yaml:"look_behind_days"`
	AutoSync        *bool   `yaml:"auto_sync"`
}

type GoogleConfigFile struct {
	ClientID     *string   `yaml:"client_id"`
	ClientSecret *string   `yaml:"client_secret"`
	RedirectURI  *string   `yaml:"redirect_uri"`
	Scopes       *[]string `yaml:"scopes"`
}

type CalDAVAccountFile struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type CalDAVConfigFile struct {
	Accounts []CalDAVAccountFile `yaml:"accounts"`
}

type AuthConfigFile struct {
	APIToken      *string `yaml:"api_token"`
	EncryptionKey *string `yaml:"encryption_key"`
}

type LoggingConfigFile struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

type DisplayConfigFile struct {
	Timezone *string `yaml:"timezone"`
}

type RetentionConfigFile struct {
	Enabled     *bool `yaml:"enabled"`
	HistoryDays *int  `yaml:"history_days"`
}

func loadConfigFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	applyConfigFile(cfg, &file)
	return nil
}

func applyConfigFile(cfg *Config, file *ConfigFile) {
	if cfg == nil || file == nil {
		return
	}

	if file.Server != nil {
		if file.Server.Host != nil {
			cfg.Server.Host = *file.Server.Host
		}
		if file.Server.Port != nil {
			cfg.Server.Port = *file.Server.Port
		}
		if file.Server.BaseURL != nil {
			cfg.Server.BaseURL = *file.Server.BaseURL
			cfg.Google.RedirectURI = cfg.Server.BaseURL + "/oauth/callback"
		}
		if file.Server.ReadTimeout != nil {
			cfg.Server.ReadTimeout = time.Duration(*file.Server.ReadTimeout)
		}
		if file.Server.WriteTimeout != nil {
			cfg.Server.WriteTimeout = time.Duration(*file.Server.WriteTimeout)
		}
	}

	if file.Database != nil {
		if file.Database.Path != nil {
			cfg.Database.Path = filepath.Clean(*file.Database.Path)
		}
		if file.Database.WALMode != nil {
			cfg.Database.WALMode = *file.Database.WALMode
		}
		if file.Database.BusyTimeoutMs != nil {
			cfg.Database.BusyTimeoutMs = *file.Database.BusyTimeoutMs
		}
	}

	if file.Sync != nil {
		if file.Sync.IntervalMinutes != nil {
			cfg.Sync.IntervalMinutes = *file.Sync.IntervalMinutes
		}
		if file.Sync.BlockSubject != nil {
			cfg.Sync.BlockSubject = *file.Sync.BlockSubject
		}
		if file.Sync.BlockCategory != nil {
			cfg.Sync.BlockCategory = *file.Sync.BlockCategory
		}
		if file.Sync.LookAheadDays != nil {
			cfg.Sync.LookAheadDays = *file.Sync.LookAheadDays
		}
		if file.Sync.LookBehindDays != nil {
			cfg.Sync.LookBehindDays = *file.Sync.LookBehindDays
		}
		if file.Sync.AutoSync != nil {
			cfg.Sync.AutoSync = *file.Sync.AutoSync
		}
	}

	if file.Google != nil {
		if file.Google.ClientID != nil {
			cfg.Google.ClientID = *file.Google.ClientID
		}
		if file.Google.ClientSecret != nil {
			cfg.Google.ClientSecret = *file.Google.ClientSecret
		}
		if file.Google.RedirectURI != nil {
			cfg.Google.RedirectURI = *file.Google.RedirectURI
		}
		if file.Google.Scopes != nil {
			cfg.Google.Scopes = *file.Google.Scopes
		}
	}

	if file.CalDAV != nil {
		for _, account := range file.CalDAV.Accounts {
			cfg.CalDAV.Accounts = append(cfg.CalDAV.Accounts, CalDAVAccount{
				Name:     account.Name,
				URL:      account.URL,
				Username: account.Username,
				Password: account.Password,
			})
		}
	}

	if file.Auth != nil {
		if file.Auth.APIToken != nil {
			cfg.Auth.APIToken = *file.Auth.APIToken
		}
		if file.Auth.EncryptionKey != nil {
			cfg.Auth.EncryptionKey = *file.Auth.EncryptionKey
		}
	}

	if file.Logging != nil {
		if file.Logging.Level != nil {
			cfg.Logging.Level = *file.Logging.Level
		}
		if file.Logging.Format != nil {
			cfg.Logging.Format = *file.Logging.Format
		}
	}

	if file.Display != nil {
		if file.Display.Timezone != nil {
			cfg.Display.Timezone = *file.Display.Timezone
		}
	}

	if file.Retention != nil {
		if file.Retention.Enabled != nil {
			cfg.Retention.Enabled = *file.Retention.Enabled
		}
		if file.Retention.HistoryDays != nil {
			cfg.Retention.HistoryDays = *file.Retention.HistoryDays
		}
	}
}
