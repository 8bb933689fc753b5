// Package api exposes the HTTP surface: the sync webhook, the file/image
// proxy, the configuration checks, and the sync history.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/quan0715/notion-github-sync/internal/notion"
	"github.com/quan0715/notion-github-sync/internal/store"
	"github.com/quan0715/notion-github-sync/internal/sync"
	"github.com/quan0715/notion-github-sync/internal/validate"
)

// Server provides the HTTP handlers.
type Server struct {
	orch    *sync.Orchestrator
	checker *validate.Checker
	notion  *notion.Client
	history store.Store
	fetch   *http.Client
	logger  *slog.Logger
}

// NewServer creates the HTTP server. history may be nil when no database is
// configured.
func NewServer(orch *sync.Orchestrator, checker *validate.Checker, nc *notion.Client, history store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orch:    orch,
		checker: checker,
		notion:  nc,
		history: history,
		fetch:   http.DefaultClient,
		logger:  logger,
	}
}

// Router returns an http.Handler for all routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/webhook", s.handleWebhook)

	mux.HandleFunc("GET /api/proxy/image", s.proxyImage)
	mux.HandleFunc("GET /api/proxy/file", s.proxyFile)

	mux.HandleFunc("GET /api/config/status", s.configStatus)
	mux.HandleFunc("GET /api/config/validate-notion-token", s.validateNotionToken)
	mux.HandleFunc("GET /api/config/validate-notion-database", s.validateNotionDatabase)
	mux.HandleFunc("GET /api/config/validate-github-token", s.validateGitHubToken)
	mux.HandleFunc("GET /api/config/validate-github-repos", s.validateGitHubRepos)

	mux.HandleFunc("GET /api/syncs", s.listSyncs)

	return s.logMiddleware(mux)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", rec)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Webhook ---

type webhookPayload struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// handleWebhook is the sync entry point. The caller gets "OK" or a generic
// error string; diagnostics go to the page's audit log, not the response.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Data.ID == "" {
		s.logger.Error("webhook payload rejected", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := s.orch.Sync(r.Context(), payload.Data.ID); err != nil {
		s.logger.Error("sync failed", "page", payload.Data.ID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// --- Config checks ---

func (s *Server) configStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.checker.Config
	writeJSON(w, http.StatusOK, map[string]bool{
		"notionToken":    cfg.NotionToken != "",
		"notionDatabase": cfg.DatabaseID != "",
		"githubToken":    cfg.GitHubToken != "",
		"baseUrl":        cfg.BaseURL != "",
	})
}

func (s *Server) validateNotionToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.CheckNotionToken(r.Context()))
}

func (s *Server) validateNotionDatabase(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.CheckDatabase(r.Context()))
}

func (s *Server) validateGitHubToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.CheckGitHubToken(r.Context()))
}

func (s *Server) validateGitHubRepos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.CheckRepos(r.Context()))
}

// --- Sync history ---

func (s *Server) listSyncs(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "sync history not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	var err error
	if pageID := r.URL.Query().Get("page_id"); pageID != "" {
		records, e := s.history.ListSyncRecordsForPage(r.Context(), pageID, limit)
		if e == nil {
			writeJSON(w, http.StatusOK, records)
			return
		}
		err = e
	} else {
		records, e := s.history.ListSyncRecords(r.Context(), limit)
		if e == nil {
			writeJSON(w, http.StatusOK, records)
			return
		}
		err = e
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
