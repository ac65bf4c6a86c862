// Package syncer drives synchronization passes: it snapshots the
// enabled calendar set, fetches events, runs the merge engine, and
// applies the resulting deltas through the event sink.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jmorrell/busysync/internal/interval"
	"github.com/jmorrell/busysync/internal/merge"
	"github.com/jmorrell/busysync/internal/registry"
	"github.com/jmorrell/busysync/internal/util"
)

var (
	// ErrSyncInProgress is returned when a pass is requested while
	// another is running. Callers may retry later; nothing is queued.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrInsufficientCalendars is returned when fewer than two
	// calendars are enabled. Checked before any I/O.
	ErrInsufficientCalendars = errors.New("at least 2 calendars must be enabled for synchronization")
)

// EventSource reads events from a calendar over a time window.
type EventSource interface {
	ListEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]interval.BusyInterval, error)
}

// EventSink writes busy-blocks to a calendar.
type EventSink interface {
	CreateBusyBlock(ctx context.Context, calendarID string, block interval.BusyInterval) (string, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Recorder persists completed pass results.
type Recorder interface {
	RecordPass(ctx context.Context, result *PassResult) error
}

// Options holds pass behavior derived from configuration.
type Options struct {
	BlockSubject   string
	BlockCategory  string
	LookAheadDays  int
	LookBehindDays int
	// Location is the timezone the day window is computed in.
	Location *time.Location
}

// Failure records one recovered per-item error during a pass.
type Failure struct {
	CalendarID string `json:"calendar_id"`
	Op         string `json:"op"` // "fetch", "create", or "delete"
	EventID    string `json:"event_id,omitempty"`
	Error      string `json:"error"`
}

// Status of a pass.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// PassResult is the structured outcome of one pass. Per-item failures
// are aggregated here rather than returned as errors.
type PassResult struct {
	ID            string                 `json:"id"`
	TargetDate    time.Time              `json:"target_date"`
	Status        string                 `json:"status"`
	BlocksCreated int                    `json:"blocks_created"`
	BlocksRemoved int                    `json:"blocks_removed"`
	Conflicts     []merge.ConflictReport `json:"conflicts,omitempty"`
	Failures      []Failure              `json:"failures,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   time.Time              `json:"completed_at"`
}

// Orchestrator owns pass execution. One instance exists per process.
type Orchestrator struct {
	registry *registry.Registry
	source   EventSource
	sink     EventSink
	recorder Recorder

	optsMu sync.RWMutex
	opts   Options

	// running gates pass starts. CompareAndSwap makes the check-and-set
	// atomic against concurrent manual and timer triggers.
	running atomic.Bool

	lastMu   sync.RWMutex
	lastSync time.Time
}

// New creates an orchestrator. recorder may be nil.
func New(reg *registry.Registry, source EventSource, sink EventSink, recorder Recorder, opts Options) *Orchestrator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Orchestrator{
		registry: reg,
		source:   source,
		sink:     sink,
		recorder: recorder,
		opts:     opts,
	}
}

// SetOptions replaces the pass options. The next pass picks them up;
// a running pass keeps the snapshot it started with.
func (o *Orchestrator) SetOptions(opts Options) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	o.optsMu.Lock()
	o.opts = opts
	o.optsMu.Unlock()
}

// Running reports whether a pass is currently executing.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastSync returns the completion time of the last successful pass.
func (o *Orchestrator) LastSync() (time.Time, bool) {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.lastSync, !o.lastSync.IsZero()
}

// RunPass executes one synchronization pass for targetDate. Only one
// pass may run at a time; a second caller gets ErrSyncInProgress
// immediately. Precondition failures return an error; I/O failures are
// folded into the result.
func (o *Orchestrator) RunPass(ctx context.Context, targetDate time.Time) (*PassResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer o.running.Store(false)

	o.optsMu.RLock()
	opts := o.opts
	o.optsMu.RUnlock()

	// Snapshot the enabled set once. Registry changes mid-pass do not
	// affect this pass.
	enabled := o.registry.EnabledIDs()
	if len(enabled) < 2 {
		return nil, ErrInsufficientCalendars
	}

	result := &PassResult{
		ID:         uuid.NewString(),
		TargetDate: targetDate,
		StartedAt:  time.Now(),
	}

	windowStart, _ := util.DayWindow(targetDate.AddDate(0, 0, -opts.LookBehindDays), opts.Location)
	_, windowEnd := util.DayWindow(targetDate.AddDate(0, 0, opts.LookAheadDays), opts.Location)

	util.Info("Starting sync pass",
		"pass_id", result.ID,
		"target_date", targetDate.In(opts.Location).Format("2006-01-02"),
		"calendars", len(enabled),
	)

	perCalendar := o.fetchEvents(ctx, enabled, windowStart, windowEnd, result)

	plan := merge.Compute(perCalendar, enabled, merge.Options{
		BlockSubject:  opts.BlockSubject,
		BlockCategory: opts.BlockCategory,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
	})
	result.Conflicts = plan.Conflicts

	o.applyPlan(ctx, plan, result)

	result.Status = StatusSucceeded
	result.CompletedAt = time.Now()

	o.lastMu.Lock()
	o.lastSync = result.CompletedAt
	o.lastMu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.RecordPass(ctx, result); err != nil {
			util.Warn("Failed to record pass result", "error", err, "pass_id", result.ID)
		}
	}

	util.Info("Sync pass completed",
		"pass_id", result.ID,
		"blocks_created", result.BlocksCreated,
		"blocks_removed", result.BlocksRemoved,
		"conflicts", len(result.Conflicts),
		"failures", len(result.Failures),
	)

	return result, nil
}

// fetchEvents loads the event lists for every enabled calendar,
// concurrently. A calendar that fails to fetch contributes an empty
// list and a warning; one bad calendar must not block the rest.
func (o *Orchestrator) fetchEvents(ctx context.Context, enabled []string, windowStart, windowEnd time.Time, result *PassResult) map[string][]interval.BusyInterval {
	perCalendar := make(map[string][]interval.BusyInterval, len(enabled))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, calendarID := range enabled {
		wg.Add(1)
		go func(calendarID string) {
			defer wg.Done()

			events, err := o.source.ListEvents(ctx, calendarID, windowStart, windowEnd)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				util.Warn("Failed to fetch events, treating calendar as empty",
					"calendar_id", calendarID, "error", err)
				result.Failures = append(result.Failures, Failure{
					CalendarID: calendarID,
					Op:         "fetch",
					Error:      err.Error(),
				})
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("calendar %s: fetch failed, contributed no events this pass", calendarID))
				perCalendar[calendarID] = nil
				return
			}

			perCalendar[calendarID] = sanitize(calendarID, events, result)
		}(calendarID)
	}

	wg.Wait()
	return perCalendar
}

// sanitize drops malformed intervals before they reach the engine.
func sanitize(calendarID string, events []interval.BusyInterval, result *PassResult) []interval.BusyInterval {
	valid := events[:0]
	for _, iv := range events {
		if err := iv.Validate(); err != nil {
			util.Warn("Dropping malformed event", "calendar_id", calendarID, "event_id", iv.EventID, "error", err)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("calendar %s: dropped malformed event %s: %v", calendarID, iv.EventID, err))
			continue
		}
		valid = append(valid, iv)
	}
	return valid
}

// applyPlan issues the deletes and creates for every calendar. Calendars
// are processed concurrently; within one calendar all deletes complete
// before any create is issued, so the calendar never holds two blocks
// for the same source interval.
func (o *Orchestrator) applyPlan(ctx context.Context, plan merge.Plan, result *PassResult) {
	var mu sync.Mutex
	var wg sync.WaitGroup

	for calendarID, delta := range plan.Deltas {
		if len(delta.ToCreate) == 0 && len(delta.ToDelete) == 0 {
			continue
		}

		wg.Add(1)
		go func(calendarID string, delta merge.Delta) {
			defer wg.Done()

			var created, removed int
			var failures []Failure

			for _, block := range delta.ToDelete {
				if err := o.sink.DeleteEvent(ctx, calendarID, block.EventID); err != nil {
					util.Warn("Failed to delete stale block",
						"calendar_id", calendarID, "event_id", block.EventID, "error", err)
					failures = append(failures, Failure{
						CalendarID: calendarID,
						Op:         "delete",
						EventID:    block.EventID,
						Error:      err.Error(),
					})
					continue
				}
				removed++
			}

			for _, block := range delta.ToCreate {
				if _, err := o.sink.CreateBusyBlock(ctx, calendarID, block); err != nil {
					util.Warn("Failed to create busy block",
						"calendar_id", calendarID, "source", block.SourceCalendarID, "error", err)
					failures = append(failures, Failure{
						CalendarID: calendarID,
						Op:         "create",
						Error:      err.Error(),
					})
					continue
				}
				created++
			}

			mu.Lock()
			result.BlocksCreated += created
			result.BlocksRemoved += removed
			result.Failures = append(result.Failures, failures...)
			mu.Unlock()
		}(calendarID, delta)
	}

	wg.Wait()
}
