// Package httpapi is the HTTP/Stream Front-End (spec §4.10, §6): JSON
// endpoints, server-sent events for logs and the event bus, and a
// bidirectional WebSocket for TTY + resize.
//
// Grounded on the teacher's agents/dashboard/main.go: the same
// chi.NewRouter + cors-middleware + writeJSON/env shape, generalized
// from a single /api/spawn handler pair to the spec's full run
// lifecycle surface. SSE and WebSocket upgrade have no precedent
// anywhere in the retrieval pack (searched exhaustively); they are
// written fresh against net/http's http.Flusher and the promoted
// gorilla/websocket dependency, following the plain-net/http register
// the teacher's own handlers use rather than any pack-specific idiom.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Mgeezy9/CLIBoard/internal/config"
	"github.com/Mgeezy9/CLIBoard/internal/creds"
	"github.com/Mgeezy9/CLIBoard/internal/dockerdriver"
	"github.com/Mgeezy9/CLIBoard/internal/eventbus"
	"github.com/Mgeezy9/CLIBoard/internal/orchestrator"
	"github.com/Mgeezy9/CLIBoard/internal/pathguard"
	"github.com/Mgeezy9/CLIBoard/internal/warmpool"
)

// Server wires the Orchestrator, Warm Pool Manager, Credential Store,
// and Event Bus behind the wire contract spec §6 enumerates.
type Server struct {
	cfg    config.Config
	client *dockerdriver.Client
	orch   *orchestrator.Orchestrator
	pool   *warmpool.Manager
	bus    *eventbus.Bus
	logger *log.Logger
	router chi.Router
}

// New builds the Server and registers every route.
func New(cfg config.Config, client *dockerdriver.Client, orch *orchestrator.Orchestrator, pool *warmpool.Manager, bus *eventbus.Bus, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{cfg: cfg, client: client, orch: orch, pool: pool, bus: bus, logger: logger}
	s.router = s.routes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/whoami", s.handleWhoami)

	r.Post("/runs", s.handleStartRun)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}/meta", s.handleRunMeta)
	r.Get("/runs/{id}/logs", s.handleRunLogs)
	r.Post("/runs/{id}/input", s.handleRunInput)
	r.Delete("/runs/{id}", s.handleStopRun)
	r.Post("/runs/{id}/kill", s.handleKillRun)
	r.Post("/runs/{id}/close", s.handleCloseRun)
	r.Post("/runs/stop-all", s.handleStopAll)
	r.Post("/runs/kill-all", s.handleKillAll)
	r.Get("/runs/{id}/artifacts", s.handleRunArtifacts)
	r.Get("/runs/{id}/file", s.handleRunFile)

	r.Get("/events", s.handleEvents)

	r.Get("/warm", s.handleListWarm)
	r.Post("/warm/ensure", s.handleWarmEnsure)
	r.Delete("/warm/{id}", s.handleWarmDestroy)

	r.Get("/creds/check", s.handleCredsCheck)
	r.Post("/creds/write-env", s.handleCredsWrite)

	r.Get("/ws/runs/{id}", s.handleWebsocket)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	err := s.client.Ping(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    err == nil,
		"image": s.cfg.Image,
		"allow": map[string]any{
			"workspaces": s.cfg.AllowWorkspaceRoots,
			"creds":      s.cfg.AllowCredsRoots,
		},
	})
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uid":      os.Getuid(),
		"gid":      os.Getgid(),
		"platform": runtime.GOOS,
	})
}

func (s *Server) handleCredsCheck(w http.ResponseWriter, r *http.Request) {
	engine := r.URL.Query().Get("engine")
	credsDir := r.URL.Query().Get("creds")
	abs, err := pathguard.Validate(credsDir, s.cfg.AllowCredsRoots)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds.CheckReadiness(engine, abs))
}

func (s *Server) handleCredsWrite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Creds   string            `json:"creds"`
		Updates map[string]string `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	abs, err := pathguard.Validate(body.Creds, s.cfg.AllowCredsRoots)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	env, err := creds.WriteEnv(abs, body.Updates)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}
