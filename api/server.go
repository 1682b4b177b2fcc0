// Package api is the narrow HTTP surface the rest of the application
// depends on: the interactive verify-now entry point, batch sweep
// trigger/status, and a websocket feed of job events.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"license-watch-go/api/websocket"
	"license-watch-go/batch"
	"license-watch-go/config"
	"license-watch-go/db"
	"license-watch-go/scrapers"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled at middleware level
	},
}

// Server is the REST API server with websocket support.
type Server struct {
	cfg      *config.Config
	db       *db.DB
	registry *scrapers.Registry
	runner   *batch.Runner
	hub      *websocket.Hub
	srv      *http.Server
	sweeping atomic.Bool

	// lifecycle outlives any single request; detached sweeps derive
	// from it so process shutdown cancels them and the abort path
	// finalizes the job instead of leaving it stuck in running.
	lifecycle context.Context
}

// NewServer wires the routes.
func NewServer(cfg *config.Config, database *db.DB, registry *scrapers.Registry, runner *batch.Runner, hub *websocket.Hub) *Server {
	s := &Server{cfg: cfg, db: database, registry: registry, runner: runner, hub: hub}

	mux := http.NewServeMux()

	// Health check (unauthenticated)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	// WebSocket endpoint (token via query param)
	mux.HandleFunc("GET /api/v1/ws", s.handleWebSocket)

	auth := s.authMiddleware

	// Interactive single-lookup entry point
	mux.HandleFunc("POST /api/v1/verify", auth(s.handleVerify))
	mux.HandleFunc("GET /api/v1/jurisdictions", auth(s.handleJurisdictions))

	// Batch sweep trigger + status
	mux.HandleFunc("POST /api/v1/jobs", auth(s.handleStartJob))
	mux.HandleFunc("GET /api/v1/jobs/{id}", auth(s.handleGetJob))

	s.srv = &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           s.corsMiddleware(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute, // interactive lookups ride the request
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start runs the API server until the context is cancelled. Call in a
// goroutine.
func (s *Server) Start(ctx context.Context) {
	s.lifecycle = ctx
	log.Info().Str("port", s.cfg.APIPort).Msg("api server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("api server error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebSocket upgrades the connection and attaches it to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIToken)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	client := websocket.NewClient(s.hub, conn)
	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response encode error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
