package database

import (
	"encoding/json"
	"time"
)

// SyncPassRow is a persisted synchronization pass record.
type SyncPassRow struct {
	ID            string          `json:"id"`
	TargetDate    string          `json:"target_date"` // YYYY-MM-DD
	Status        string          `json:"status"`
	BlocksCreated int             `json:"blocks_created"`
	BlocksRemoved int             `json:"blocks_removed"`
	ConflictCount int             `json:"conflict_count"`
	FailureCount  int             `json:"failure_count"`
	Detail        json.RawMessage `json:"detail,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   time.Time       `json:"completed_at"`
}
