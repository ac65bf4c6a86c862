package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmorrell/busysync/internal/config"
	"github.com/jmorrell/busysync/internal/database"
	"github.com/jmorrell/busysync/internal/registry"
	"github.com/jmorrell/busysync/internal/settings"
	"github.com/jmorrell/busysync/internal/syncer"
)

type fakeRunner struct {
	result     *syncer.PassResult
	err        error
	running    bool
	lastSync   time.Time
	gotDate    time.Time
	gotOptions *syncer.Options
}

func (f *fakeRunner) RunPass(ctx context.Context, targetDate time.Time) (*syncer.PassResult, error) {
	f.gotDate = targetDate
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRunner) Running() bool { return f.running }

func (f *fakeRunner) LastSync() (time.Time, bool) {
	return f.lastSync, !f.lastSync.IsZero()
}

func (f *fakeRunner) SetOptions(opts syncer.Options) { f.gotOptions = &opts }

type fakeAutoSync struct {
	running  bool
	interval time.Duration
	startErr error
}

func (f *fakeAutoSync) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeAutoSync) Stop()                   { f.running = false }
func (f *fakeAutoSync) Running() bool           { return f.running }
func (f *fakeAutoSync) Interval() time.Duration { return f.interval }
func (f *fakeAutoSync) SetInterval(interval time.Duration) error {
	f.interval = interval
	return nil
}

type fakeSettings struct {
	saved     *settings.RuntimeSettings
	flags     map[string]bool
	saveCount int
}

func (f *fakeSettings) Load(ctx context.Context) (*settings.RuntimeSettings, error) {
	return f.saved, nil
}

func (f *fakeSettings) Save(ctx context.Context, s *settings.RuntimeSettings) error {
	f.saved = s
	f.saveCount++
	return nil
}

func (f *fakeSettings) SaveCalendarFlags(ctx context.Context, flags map[string]bool) error {
	f.flags = flags
	return nil
}

type fakeHistory struct {
	rows     []database.SyncPassRow
	gotLimit int
}

func (f *fakeHistory) List(ctx context.Context, limit int) ([]database.SyncPassRow, error) {
	f.gotLimit = limit
	return f.rows, nil
}

type testEnv struct {
	handler  http.Handler
	registry *registry.Registry
	runner   *fakeRunner
	autoSync *fakeAutoSync
	settings *fakeSettings
	history  *fakeHistory
}

func setupHandler(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Sync.IntervalMinutes = 15
	cfg.Sync.BlockSubject = "[BusySync] Busy"

	reg := registry.New()
	reg.Upsert(registry.Entry{ID: "work", DisplayName: "Work", Provider: "google"})
	reg.Upsert(registry.Entry{ID: "personal", DisplayName: "Personal", Provider: "google"})

	env := &testEnv{
		registry: reg,
		runner:   &fakeRunner{result: &syncer.PassResult{ID: "pass-1", Status: syncer.StatusSucceeded}},
		autoSync: &fakeAutoSync{interval: 15 * time.Minute},
		settings: &fakeSettings{},
		history:  &fakeHistory{},
	}

	h := NewHandler(cfg, reg, env.runner, env.autoSync, env.settings, env.history, time.UTC)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	env.handler = mux

	return env
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestStatus(t *testing.T) {
	env := setupHandler(t)
	env.autoSync.running = true
	env.runner.lastSync = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	rec := doRequest(t, env.handler, "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["state"] != "active" {
		t.Errorf("state = %v", body["state"])
	}
	if body["total_calendars"].(float64) != 2 {
		t.Errorf("total_calendars = %v", body["total_calendars"])
	}
	if body["last_sync"] != "2026-03-10T08:00:00Z" {
		t.Errorf("last_sync = %v", body["last_sync"])
	}
}

func TestStatusSyncing(t *testing.T) {
	env := setupHandler(t)
	env.runner.running = true

	body := decodeBody(t, doRequest(t, env.handler, "GET", "/api/status", ""))
	if body["state"] != "syncing" {
		t.Errorf("state = %v, want syncing", body["state"])
	}
}

func TestTriggerSync(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "POST", "/api/sync?date=2026-03-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !env.runner.gotDate.Equal(want) {
		t.Errorf("target date = %v, want %v", env.runner.gotDate, want)
	}

	body := decodeBody(t, rec)
	if body["id"] != "pass-1" {
		t.Errorf("body = %v", body)
	}
}

func TestTriggerSyncBadDate(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "POST", "/api/sync?date=tomorrow", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerSyncConflicts(t *testing.T) {
	env := setupHandler(t)

	env.runner.err = syncer.ErrSyncInProgress
	rec := doRequest(t, env.handler, "POST", "/api/sync", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("in-progress status = %d, want 409", rec.Code)
	}
	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]interface{})
	if errObj["code"] != "SYNC_IN_PROGRESS" {
		t.Errorf("code = %v", errObj["code"])
	}

	env.runner.err = syncer.ErrInsufficientCalendars
	rec = doRequest(t, env.handler, "POST", "/api/sync", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("insufficient status = %d, want 409", rec.Code)
	}
}

func TestListCalendars(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "GET", "/api/calendars", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := decodeBody(t, rec)
	calendars := body["calendars"].([]interface{})
	if len(calendars) != 2 {
		t.Errorf("calendars = %d, want 2", len(calendars))
	}
}

func TestSetCalendarSync(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "POST", "/api/calendars/work/sync", `{"enabled": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	entry, err := env.registry.Get("work")
	if err != nil || !entry.SyncEnabled {
		t.Errorf("entry = %+v, err = %v", entry, err)
	}
	if env.settings.flags == nil || !env.settings.flags["work"] {
		t.Errorf("flags not persisted: %v", env.settings.flags)
	}
}

func TestSetCalendarSyncUnknown(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "POST", "/api/calendars/nope/sync", `{"enabled": true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSetCalendarSyncBadBody(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "POST", "/api/calendars/work/sync", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetSettings(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "GET", "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["interval_minutes"].(float64) != 15 {
		t.Errorf("interval_minutes = %v", body["interval_minutes"])
	}
	if body["block_subject"] != "[BusySync] Busy" {
		t.Errorf("block_subject = %v", body["block_subject"])
	}
}

func TestUpdateSettings(t *testing.T) {
	env := setupHandler(t)

	payload := `{"interval_minutes": 30, "block_subject": "Busy elsewhere", "look_ahead_days": 2, "look_behind_days": 0}`
	rec := doRequest(t, env.handler, "PUT", "/api/settings", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if env.runner.gotOptions == nil {
		t.Fatal("orchestrator options not updated")
	}
	if env.runner.gotOptions.BlockSubject != "Busy elsewhere" {
		t.Errorf("BlockSubject = %q", env.runner.gotOptions.BlockSubject)
	}
	if env.runner.gotOptions.LookAheadDays != 2 {
		t.Errorf("LookAheadDays = %d", env.runner.gotOptions.LookAheadDays)
	}
	if env.autoSync.interval != 30*time.Minute {
		t.Errorf("interval = %v", env.autoSync.interval)
	}
	if env.settings.saveCount != 1 {
		t.Errorf("settings saved %d times, want 1", env.settings.saveCount)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	env := setupHandler(t)

	tests := []struct {
		name    string
		payload string
	}{
		{"zero interval", `{"interval_minutes": 0, "block_subject": "x"}`},
		{"empty subject", `{"interval_minutes": 15, "block_subject": ""}`},
		{"negative lookahead", `{"interval_minutes": 15, "block_subject": "x", "look_ahead_days": -1}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, env.handler, "PUT", "/api/settings", tt.payload)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSetAutoSync(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "POST", "/api/autosync", `{"enabled": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !env.autoSync.running {
		t.Error("auto-sync not started")
	}

	rec = doRequest(t, env.handler, "POST", "/api/autosync", `{"enabled": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.autoSync.running {
		t.Error("auto-sync not stopped")
	}
	if env.settings.saveCount != 2 {
		t.Errorf("settings saved %d times, want 2", env.settings.saveCount)
	}
}

func TestHistory(t *testing.T) {
	env := setupHandler(t)
	env.history.rows = []database.SyncPassRow{{ID: "pass-1", Status: "succeeded"}}

	rec := doRequest(t, env.handler, "GET", "/api/history?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.history.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", env.history.gotLimit)
	}

	body := decodeBody(t, rec)
	rows := body["history"].([]interface{})
	if len(rows) != 1 {
		t.Errorf("history rows = %d", len(rows))
	}
}

func TestHistoryLimitCapped(t *testing.T) {
	env := setupHandler(t)

	rec := doRequest(t, env.handler, "GET", "/api/history?limit=9999", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.history.gotLimit != 100 {
		t.Errorf("limit = %d, want capped at 100", env.history.gotLimit)
	}
}
