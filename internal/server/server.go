// Package server provides the HTTP server and routing for BusySync.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jmorrell/busysync/internal/api"
	"github.com/jmorrell/busysync/internal/caldav"
	"github.com/jmorrell/busysync/internal/config"
	"github.com/jmorrell/busysync/internal/crypto"
	"github.com/jmorrell/busysync/internal/database"
	"github.com/jmorrell/busysync/internal/google"
	"github.com/jmorrell/busysync/internal/history"
	"github.com/jmorrell/busysync/internal/providers"
	"github.com/jmorrell/busysync/internal/registry"
	"github.com/jmorrell/busysync/internal/server/middleware"
	"github.com/jmorrell/busysync/internal/settings"
	"github.com/jmorrell/busysync/internal/syncer"
	"github.com/jmorrell/busysync/internal/util"
	"github.com/jmorrell/busysync/internal/workers"
)

// Server is the main HTTP server for BusySync.
type Server struct {
	config        *config.Config
	db            *database.DB
	router        *http.ServeMux
	registry      *registry.Registry
	mux           *providers.Mux
	discovery     *providers.Discovery
	orchestrator  *syncer.Orchestrator
	historyRepo   *history.Repository
	settingsStore *settings.Store
	tokenVerifier *crypto.TokenVerifier
	oauthMgr      *google.OAuthManager
	autoSync      *workers.AutoSyncWorker
	cleanupWorker *workers.CleanupWorker
	apiHandler    *api.Handler
	location      *time.Location
}

// New creates a new Server instance. cfg is expected to already carry
// persisted runtime overrides.
func New(cfg *config.Config, db *database.DB) (*Server, error) {
	location, err := util.LoadLocation(cfg.Display.Timezone)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	mux := providers.NewMux(reg)
	discovery := providers.NewDiscovery(reg)

	var oauthMgr *google.OAuthManager
	if cfg.GoogleEnabled() {
		encryptor, err := crypto.NewEncryptor(cfg.Auth.EncryptionKey)
		if err != nil {
			return nil, err
		}

		oauthMgr = google.NewOAuthManager(cfg, db, encryptor)
		googleClient := google.NewClient(oauthMgr, location)

		mux.Register("google", googleClient)
		discovery.Register("google", func(ctx context.Context) ([]registry.Entry, error) {
			if !oauthMgr.HasToken(ctx) {
				util.Warn("Google OAuth not connected, skipping discovery")
				return nil, nil
			}
			infos, err := googleClient.ListCalendars(ctx)
			if err != nil {
				return nil, err
			}
			entries := make([]registry.Entry, 0, len(infos))
			for _, info := range infos {
				if info.ReadOnly {
					continue
				}
				entries = append(entries, registry.Entry{
					ID:          info.ID,
					DisplayName: info.DisplayName,
				})
			}
			return entries, nil
		})
	}

	for _, account := range cfg.CalDAV.Accounts {
		client, err := caldav.NewClient(account.URL, account.Username, account.Password)
		if err != nil {
			return nil, err
		}

		providerName := "caldav:" + account.Name
		mux.Register(providerName, client)
		discovery.Register(providerName, func(ctx context.Context) ([]registry.Entry, error) {
			infos, err := client.ListCalendars(ctx)
			if err != nil {
				return nil, err
			}
			entries := make([]registry.Entry, 0, len(infos))
			for _, info := range infos {
				entries = append(entries, registry.Entry{
					ID:          info.Path,
					DisplayName: info.DisplayName,
				})
			}
			return entries, nil
		})
	}

	historyRepo := history.NewRepository(db)
	settingsStore := settings.NewStore(db)

	orchestrator := syncer.New(reg, mux, mux, historyRepo, syncer.Options{
		BlockSubject:   cfg.Sync.BlockSubject,
		BlockCategory:  cfg.Sync.BlockCategory,
		LookAheadDays:  cfg.Sync.LookAheadDays,
		LookBehindDays: cfg.Sync.LookBehindDays,
		Location:       location,
	})

	autoSync := workers.NewAutoSyncWorker(orchestrator,
		time.Duration(cfg.Sync.IntervalMinutes)*time.Minute)
	cleanupWorker := workers.NewCleanupWorker(db, historyRepo, cfg.Retention.HistoryDays)

	apiHandler := api.NewHandler(cfg, reg, orchestrator, autoSync,
		settingsStore, historyRepo, location)

	tokenVerifier, err := crypto.NewTokenVerifier(cfg.Auth.APIToken)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:        cfg,
		db:            db,
		router:        http.NewServeMux(),
		registry:      reg,
		mux:           mux,
		discovery:     discovery,
		orchestrator:  orchestrator,
		historyRepo:   historyRepo,
		settingsStore: settingsStore,
		tokenVerifier: tokenVerifier,
		oauthMgr:      oauthMgr,
		autoSync:      autoSync,
		cleanupWorker: cleanupWorker,
		apiHandler:    apiHandler,
		location:      location,
	}

	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	// Build middleware chain (applied in reverse order)
	var handler http.Handler = s.router

	// Recovery middleware (outermost - catches panics)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.SecurityHeaders(handler)

	return handler
}

// Start discovers calendars, re-applies persisted flags, and starts the
// background workers.
func (s *Server) Start(ctx context.Context) error {
	if err := s.discovery.Refresh(ctx); err != nil {
		util.Warn("Calendar discovery incomplete", "error", err)
	}

	flags, err := s.settingsStore.LoadCalendarFlags(ctx)
	if err != nil {
		util.Warn("Failed to load calendar flags", "error", err)
	} else if flags != nil {
		s.registry.ApplyFlags(flags)
	}

	go s.cleanupWorker.Start(ctx)

	if s.config.Sync.AutoSync {
		if err := s.autoSync.Start(); err != nil {
			return err
		}
	}

	util.Info("Server started",
		"calendars", len(s.registry.List()),
		"enabled", len(s.registry.EnabledIDs()),
		"auto_sync", s.autoSync.Running(),
	)
	return nil
}

// Stop gracefully stops the background workers.
func (s *Server) Stop() {
	s.autoSync.Stop()
}

// Orchestrator returns the sync orchestrator.
func (s *Server) Orchestrator() *syncer.Orchestrator {
	return s.orchestrator
}

// Registry returns the calendar registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}
