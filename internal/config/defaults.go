package config

import "time"

// Default configuration values.
const (
	DefaultHost    = "0.0.0.0"
	DefaultPort    = 8080
	DefaultBaseURL = "http://localhost:8080"

	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 30 * time.Second

	DefaultDataDir       = "./data"
	DefaultBusyTimeoutMs = 5000

	DefaultSyncIntervalMinutes = 15
	DefaultBlockSubject        = "[BusySync] Busy"
	DefaultBlockCategory       = "BusySync"

	DefaultLogLevel = "info"
	DefaultTimezone = "Local"

	DefaultHistoryDays = 30
)
