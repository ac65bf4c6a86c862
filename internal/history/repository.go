// Package history persists completed synchronization passes.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmorrell/busysync/internal/database"
	"github.com/jmorrell/busysync/internal/syncer"
	"github.com/jmorrell/busysync/internal/util"
)

// Repository stores and retrieves pass results.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new history repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// passDetail is the JSON blob stored alongside the counters.
type passDetail struct {
	Conflicts interface{} `json:"conflicts,omitempty"`
	Failures  interface{} `json:"failures,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// RecordPass persists a completed pass. Implements syncer.Recorder.
func (r *Repository) RecordPass(ctx context.Context, result *syncer.PassResult) error {
	detail, err := json.Marshal(passDetail{
		Conflicts: result.Conflicts,
		Failures:  result.Failures,
		Warnings:  result.Warnings,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize pass detail: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sync_history
			(id, target_date, status, blocks_created, blocks_removed,
			 conflict_count, failure_count, detail, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.TargetDate.Format("2006-01-02"),
		result.Status,
		result.BlocksCreated,
		result.BlocksRemoved,
		len(result.Conflicts),
		len(result.Failures),
		string(detail),
		util.SQLiteTimestamp(result.StartedAt),
		util.SQLiteTimestamp(result.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record pass: %w", err)
	}

	return nil
}

// List returns the most recent passes, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]database.SyncPassRow, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, target_date, status, blocks_created, blocks_removed,
		       conflict_count, failure_count, detail, started_at, completed_at
		FROM sync_history
		ORDER BY completed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var passes []database.SyncPassRow
	for rows.Next() {
		var row database.SyncPassRow
		var detail, startedAt, completedAt string
		if err := rows.Scan(
			&row.ID, &row.TargetDate, &row.Status,
			&row.BlocksCreated, &row.BlocksRemoved,
			&row.ConflictCount, &row.FailureCount,
			&detail, &startedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		row.Detail = json.RawMessage(detail)
		row.StartedAt, _ = time.Parse("2006-01-02 15:04:05", startedAt)
		row.CompletedAt, _ = time.Parse("2006-01-02 15:04:05", completedAt)
		passes = append(passes, row)
	}

	return passes, rows.Err()
}

// Prune removes history rows completed before cutoff. Returns the
// number of rows deleted.
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sync_history WHERE completed_at < ?
	`, util.SQLiteTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}
