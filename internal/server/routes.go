package server

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/jmorrell/busysync/internal/response"
	"github.com/jmorrell/busysync/internal/server/middleware"
	"github.com/jmorrell/busysync/internal/util"
)

// oauthState guards the OAuth callback against forged codes. One pending
// state at a time is enough for a single-user service.
var oauthStateMu sync.Mutex
var oauthState string

// setupRoutes registers all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check (no auth required)
	s.router.HandleFunc("GET /health", s.handleHealth)

	// API routes behind token auth
	apiMux := http.NewServeMux()
	s.apiHandler.RegisterRoutes(apiMux)
	s.router.Handle("/api/", middleware.Auth(s.tokenVerifier)(apiMux))

	// OAuth connect flow for the Google provider
	if s.oauthMgr != nil {
		s.router.Handle("GET /oauth/url", middleware.Auth(s.tokenVerifier)(http.HandlerFunc(s.handleOAuthURL)))
		s.router.HandleFunc("GET /oauth/callback", s.handleOAuthCallback)
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  "database unavailable",
		})
		return
	}

	oauthStatus := "not_configured"
	if s.oauthMgr != nil {
		if s.oauthMgr.HasToken(r.Context()) {
			oauthStatus = "connected"
		} else {
			oauthStatus = "disconnected"
		}
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"oauth":  oauthStatus,
	})
}

// handleOAuthURL returns the Google consent URL to visit.
func (s *Server) handleOAuthURL(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	oauthStateMu.Lock()
	oauthState = state
	oauthStateMu.Unlock()

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"url": s.oauthMgr.GetAuthURL(state),
	})
}

// handleOAuthCallback exchanges the authorization code for tokens.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	oauthStateMu.Lock()
	valid := state != "" && state == oauthState
	oauthState = ""
	oauthStateMu.Unlock()

	if !valid {
		response.WriteValidationError(w, "invalid or expired OAuth state", nil)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		response.WriteValidationError(w, "missing authorization code", nil)
		return
	}

	if err := s.oauthMgr.ExchangeCode(r.Context(), code); err != nil {
		util.Error("OAuth code exchange failed", "error", err)
		response.WriteProviderError(w, "failed to exchange authorization code")
		return
	}

	// Newly connected account: pick up its calendars right away
	if err := s.discovery.Refresh(r.Context()); err != nil {
		util.Warn("Calendar discovery after OAuth connect failed", "error", err)
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "connected",
	})
}
