// Package api provides REST API handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jmorrell/busysync/internal/config"
	"github.com/jmorrell/busysync/internal/database"
	"github.com/jmorrell/busysync/internal/registry"
	"github.com/jmorrell/busysync/internal/response"
	"github.com/jmorrell/busysync/internal/settings"
	"github.com/jmorrell/busysync/internal/syncer"
	"github.com/jmorrell/busysync/internal/util"
)

// SyncRunner is the subset of orchestrator behavior used by the API.
type SyncRunner interface {
	RunPass(ctx context.Context, targetDate time.Time) (*syncer.PassResult, error)
	Running() bool
	LastSync() (time.Time, bool)
	SetOptions(opts syncer.Options)
}

// AutoSync is the subset of auto-sync worker behavior used by the API.
type AutoSync interface {
	Start() error
	Stop()
	Running() bool
	Interval() time.Duration
	SetInterval(interval time.Duration) error
}

// SettingsStore persists runtime settings.
type SettingsStore interface {
	Load(ctx context.Context) (*settings.RuntimeSettings, error)
	Save(ctx context.Context, s *settings.RuntimeSettings) error
	SaveCalendarFlags(ctx context.Context, flags map[string]bool) error
}

// HistoryStore reads recorded pass results.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]database.SyncPassRow, error)
}

// Handler provides REST API handlers.
type Handler struct {
	registry *registry.Registry
	runner   SyncRunner
	autoSync AutoSync
	settings SettingsStore
	history  HistoryStore
	location *time.Location

	// Current effective sync settings, mutated by PUT /api/settings.
	mu   sync.Mutex
	sync settings.SyncSettings
}

// NewHandler creates a new API handler seeded with the effective config.
func NewHandler(
	cfg *config.Config,
	reg *registry.Registry,
	runner SyncRunner,
	autoSync AutoSync,
	settingsStore SettingsStore,
	historyStore HistoryStore,
	location *time.Location,
) *Handler {
	if location == nil {
		location = time.Local
	}
	auto := cfg.Sync.AutoSync
	return &Handler{
		registry: reg,
		runner:   runner,
		autoSync: autoSync,
		settings: settingsStore,
		history:  historyStore,
		location: location,
		sync: settings.SyncSettings{
			IntervalMinutes: cfg.Sync.IntervalMinutes,
			BlockSubject:    cfg.Sync.BlockSubject,
			BlockCategory:   cfg.Sync.BlockCategory,
			LookAheadDays:   cfg.Sync.LookAheadDays,
			LookBehindDays:  cfg.Sync.LookBehindDays,
			AutoSync:        &auto,
		},
	}
}

// RegisterRoutes registers API routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("POST /api/sync", h.TriggerSync)
	mux.HandleFunc("GET /api/calendars", h.ListCalendars)
	mux.HandleFunc("POST /api/calendars/{calendarId}/sync", h.SetCalendarSync)
	mux.HandleFunc("GET /api/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/settings", h.UpdateSettings)
	mux.HandleFunc("POST /api/autosync", h.SetAutoSync)
	mux.HandleFunc("GET /api/history", h.History)
}

// Status returns the sync manager state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	state := "stopped"
	if h.autoSync.Running() {
		state = "active"
	}
	if h.runner.Running() {
		state = "syncing"
	}

	resp := map[string]interface{}{
		"state": state,
		"auto_sync": map[string]interface{}{
			"enabled":          h.autoSync.Running(),
			"interval_minutes": int(h.autoSync.Interval().Minutes()),
		},
		"enabled_calendars": len(h.registry.EnabledIDs()),
		"total_calendars":   len(h.registry.List()),
	}

	if last, ok := h.runner.LastSync(); ok {
		resp["last_sync"] = last.Format(time.RFC3339)
	}

	response.JSON(w, http.StatusOK, resp)
}

// TriggerSync runs a synchronization pass. The optional date query
// parameter selects the target day; it defaults to today.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	targetDate := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := util.ParseDate(dateStr, h.location)
		if err != nil {
			response.WriteValidationError(w, "date must be formatted YYYY-MM-DD",
				map[string]interface{}{"date": dateStr})
			return
		}
		targetDate = parsed
	}

	result, err := h.runner.RunPass(r.Context(), targetDate)
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrSyncInProgress):
			response.WriteSyncInProgress(w)
		case errors.Is(err, syncer.ErrInsufficientCalendars):
			response.WriteInsufficientCalendars(w, len(h.registry.EnabledIDs()))
		default:
			util.Error("Sync pass failed", "error", err)
			response.WriteInternalError(w, "sync pass failed")
		}
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// ListCalendars returns every registered calendar.
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"calendars": h.registry.List(),
	})
}

type setCalendarSyncRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetCalendarSync toggles sync participation for one calendar and
// persists the choice.
func (h *Handler) SetCalendarSync(w http.ResponseWriter, r *http.Request) {
	calendarID := r.PathValue("calendarId")

	var req setCalendarSyncRequest
	if err := parseJSON(r, &req); err != nil || req.Enabled == nil {
		response.WriteValidationError(w, "body must be {\"enabled\": bool}", nil)
		return
	}

	if err := h.registry.SetEnabled(calendarID, *req.Enabled); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			response.WriteCalendarNotFound(w, calendarID)
			return
		}
		response.WriteInternalError(w, "failed to update calendar")
		return
	}

	if err := h.settings.SaveCalendarFlags(r.Context(), h.registry.EnabledFlags()); err != nil {
		util.Warn("Failed to persist calendar flags", "error", err)
	}

	entry, err := h.registry.Get(calendarID)
	if err != nil {
		response.WriteInternalError(w, "failed to read calendar")
		return
	}
	response.JSON(w, http.StatusOK, entry)
}

// GetSettings returns the effective sync settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.sync
	h.mu.Unlock()

	response.JSON(w, http.StatusOK, current)
}

// UpdateSettings replaces the sync settings, applies them to the
// orchestrator and scheduler, and persists them.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.SyncSettings
	if err := parseJSON(r, &req); err != nil {
		response.WriteValidationError(w, "invalid JSON body", nil)
		return
	}

	if req.IntervalMinutes < 1 {
		response.WriteValidationError(w, "interval_minutes must be at least 1", nil)
		return
	}
	if req.BlockSubject == "" {
		response.WriteValidationError(w, "block_subject must not be empty", nil)
		return
	}
	if req.LookAheadDays < 0 || req.LookBehindDays < 0 {
		response.WriteValidationError(w, "look_ahead_days and look_behind_days must not be negative", nil)
		return
	}

	h.mu.Lock()
	if req.AutoSync == nil {
		req.AutoSync = h.sync.AutoSync
	}
	h.sync = req
	h.mu.Unlock()

	h.runner.SetOptions(syncer.Options{
		BlockSubject:   req.BlockSubject,
		BlockCategory:  req.BlockCategory,
		LookAheadDays:  req.LookAheadDays,
		LookBehindDays: req.LookBehindDays,
		Location:       h.location,
	})

	if err := h.autoSync.SetInterval(time.Duration(req.IntervalMinutes) * time.Minute); err != nil {
		util.Warn("Failed to reschedule auto-sync", "error", err)
	}

	if err := h.settings.Save(r.Context(), &settings.RuntimeSettings{Sync: &req}); err != nil {
		util.Warn("Failed to persist settings", "error", err)
	}

	response.JSON(w, http.StatusOK, req)
}

type setAutoSyncRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetAutoSync starts or stops the auto-sync timer and persists the flag.
func (h *Handler) SetAutoSync(w http.ResponseWriter, r *http.Request) {
	var req setAutoSyncRequest
	if err := parseJSON(r, &req); err != nil || req.Enabled == nil {
		response.WriteValidationError(w, "body must be {\"enabled\": bool}", nil)
		return
	}

	if *req.Enabled {
		if err := h.autoSync.Start(); err != nil {
			util.Error("Failed to start auto-sync", "error", err)
			response.WriteInternalError(w, "failed to start auto-sync")
			return
		}
	} else {
		h.autoSync.Stop()
	}

	h.mu.Lock()
	h.sync.AutoSync = req.Enabled
	current := h.sync
	h.mu.Unlock()

	if err := h.settings.Save(r.Context(), &settings.RuntimeSettings{Sync: &current}); err != nil {
		util.Warn("Failed to persist settings", "error", err)
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"enabled":          h.autoSync.Running(),
		"interval_minutes": int(h.autoSync.Interval().Minutes()),
	})
}

// History returns recent pass results, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			response.WriteValidationError(w, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := h.history.List(r.Context(), limit)
	if err != nil {
		util.Error("Failed to list sync history", "error", err)
		response.WriteInternalError(w, "failed to list history")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"history": rows,
	})
}

// parseJSON decodes a JSON request body.
func parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
