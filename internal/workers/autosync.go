// Package workers hosts the background loops: the auto-sync timer and
// the retention cleanup worker.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmorrell/busysync/internal/syncer"
	"github.com/jmorrell/busysync/internal/util"
)

// AutoSyncWorker triggers a sync pass for the current day on a fixed
// interval. A tick that lands while a pass is already running is
// swallowed, not queued.
type AutoSyncWorker struct {
	orchestrator *syncer.Orchestrator

	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	interval time.Duration
	running  bool
}

// NewAutoSyncWorker creates an auto-sync worker. It does not start until
// Start is called.
func NewAutoSyncWorker(orchestrator *syncer.Orchestrator, interval time.Duration) *AutoSyncWorker {
	return &AutoSyncWorker{
		orchestrator: orchestrator,
		interval:     interval,
	}
}

// Start begins the timer. Starting an already-started worker is a no-op.
func (w *AutoSyncWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	c := cron.New()
	id, err := c.AddFunc(fmt.Sprintf("@every %s", w.interval), w.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule auto-sync: %w", err)
	}
	c.Start()

	w.cron = c
	w.entryID = id
	w.running = true
	util.Info("Auto-sync started", "interval", w.interval)
	return nil
}

// Stop halts the timer and waits for any in-flight trigger to finish.
// Stopping an already-stopped worker is a no-op.
func (w *AutoSyncWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	<-w.cron.Stop().Done()
	w.cron = nil
	w.running = false
	util.Info("Auto-sync stopped")
}

// Running reports whether the timer is active.
func (w *AutoSyncWorker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Interval returns the current trigger interval.
func (w *AutoSyncWorker) Interval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interval
}

// SetInterval changes the trigger interval. A running timer is
// rescheduled; the new interval measures from now.
func (w *AutoSyncWorker) SetInterval(interval time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.interval = interval
	if !w.running {
		return nil
	}

	w.cron.Remove(w.entryID)
	id, err := w.cron.AddFunc(fmt.Sprintf("@every %s", interval), w.tick)
	if err != nil {
		return fmt.Errorf("failed to reschedule auto-sync: %w", err)
	}
	w.entryID = id
	util.Info("Auto-sync interval changed", "interval", interval)
	return nil
}

func (w *AutoSyncWorker) tick() {
	if w.orchestrator.Running() {
		util.Debug("Auto-sync tick skipped, pass already running")
		return
	}

	_, err := w.orchestrator.RunPass(context.Background(), time.Now())
	switch err {
	case nil:
	case syncer.ErrSyncInProgress:
		util.Debug("Auto-sync tick skipped, pass already running")
	case syncer.ErrInsufficientCalendars:
		util.Debug("Auto-sync tick skipped, fewer than 2 calendars enabled")
	default:
		util.Error("Auto-sync pass failed", "error", err)
	}
}
