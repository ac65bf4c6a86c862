package workers

import (
	"context"
	"time"

	"github.com/jmorrell/busysync/internal/database"
	"github.com/jmorrell/busysync/internal/history"
	"github.com/jmorrell/busysync/internal/util"
)

// CleanupWorker handles data retention and cleanup.
type CleanupWorker struct {
	db          *database.DB
	history     *history.Repository
	historyDays int
	interval    time.Duration
}

// NewCleanupWorker creates a new cleanup worker.
func NewCleanupWorker(db *database.DB, hist *history.Repository, historyDays int) *CleanupWorker {
	return &CleanupWorker{
		db:          db,
		history:     hist,
		historyDays: historyDays,
		interval:    1 * time.Hour,
	}
}

// Start starts the cleanup worker. Blocks until ctx is cancelled.
func (w *CleanupWorker) Start(ctx context.Context) {
	util.Info("Starting cleanup worker",
		"interval", w.interval,
		"history_days", w.historyDays,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			util.Info("Cleanup worker stopping")
			return
		case <-ticker.C:
			w.runCleanup(ctx)
		}
	}
}

func (w *CleanupWorker) runCleanup(ctx context.Context) {
	util.Debug("Running cleanup tasks")

	w.pruneHistory(ctx)
	w.maybeVacuum(ctx)
}

// pruneHistory removes pass records past the retention window.
func (w *CleanupWorker) pruneHistory(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -w.historyDays)
	removed, err := w.history.Prune(ctx, cutoff)
	if err != nil {
		util.Error("Failed to prune sync history", "error", err)
		return
	}
	if removed > 0 {
		util.Info("Pruned old sync history", "count", removed)
	}
}

// maybeVacuum runs VACUUM periodically (every 24 hours).
func (w *CleanupWorker) maybeVacuum(ctx context.Context) {
	var lastVacuum string
	err := w.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = 'last_vacuum'
	`).Scan(&lastVacuum)

	if err == nil {
		lastTime, _ := time.Parse(time.RFC3339, lastVacuum)
		if time.Since(lastTime) < 24*time.Hour {
			return
		}
	}

	util.Info("Running database VACUUM")
	if err := w.db.Vacuum(); err != nil {
		util.Error("Failed to VACUUM database", "error", err)
		return
	}

	_, err = w.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES ('last_vacuum', ?, datetime('now'))
	`, time.Now().Format(time.RFC3339))

	if err != nil {
		util.Error("Failed to update last vacuum time", "error", err)
	}
}
