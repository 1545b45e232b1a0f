// Package api provides the HTTP API for observing a running evacuation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/evacuation-ca/internal/engine"
	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/persistence"
)

// Server serves the latest published simulation state over HTTP. The
// simulation itself is never touched from handler goroutines; the driving
// goroutine publishes copies through Publish.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // Optional run history
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	Scenario string

	mu             sync.RWMutex
	stats          engine.Stats
	outcomes       []individuals.Outcome
	secondsPerStep float64

	hub     *Hub
	limiter *RateLimiter
}

// NewServer creates a server for one engine.
func NewServer(eng *engine.Engine, db *persistence.DB, port int, adminKey string) *Server {
	return &Server{
		Eng:      eng,
		DB:       db,
		Port:     port,
		AdminKey: adminKey,
		hub:      NewHub(),
		limiter:  NewRateLimiter(20, time.Minute),
	}
}

// Hub returns the progress broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Publish snapshots the simulation and pushes its stats to progress
// subscribers. It must be called from the goroutine driving sim, e.g. as
// the engine's OnStep hook.
func (s *Server) Publish(sim *engine.Simulation) {
	stats := sim.Stats()
	outcomes := sim.Registry().Outcomes()

	s.mu.Lock()
	s.stats = stats
	s.outcomes = outcomes
	s.secondsPerStep = sim.Params.SecondsPerStep()
	s.mu.Unlock()

	s.hub.Broadcast(stats)
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/individuals", s.handleIndividuals)
	mux.HandleFunc("GET /api/v1/deaths", s.handleDeaths)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRunDetail)

	// Live progress over websocket, rate limited per client address.
	mux.HandleFunc("GET /api/v1/progress", RateLimitMiddleware(s.limiter, s.hub.ServeHTTP))

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "history", s.DB != nil)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := s.stats
	sps := s.secondsPerStep
	s.mu.RUnlock()

	status := map[string]any{
		"scenario":       s.Scenario,
		"step":           st.Step,
		"phase":          st.Phase,
		"progress":       st.Progress,
		"simulated_time": humanize.FtoaWithDigits(float64(st.Step)*sps, 1) + " s",
		"speed":          s.Eng.Speed(),
		"initial":        st.Initial,
		"remaining":      st.Remaining,
		"safe":           st.Safe,
		"evacuated":      st.Evacuated,
		"dead":           st.Dead,
		"crowd":          st.Crowd,
		"seed":           st.Seed,
		"summary": fmt.Sprintf("%s of %s evacuated, %s dead",
			humanize.Comma(int64(st.Evacuated)), humanize.Comma(int64(st.Initial)), humanize.Comma(int64(st.Dead))),
	}
	writeJSON(w, status)
}

func (s *Server) handleIndividuals(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]individuals.Outcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		if status != "" && o.Status.String() != status {
			continue
		}
		result = append(result, o)
	}
	writeJSON(w, result)
}

func (s *Server) handleDeaths(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	causes := s.stats.DeathCauses
	s.mu.RUnlock()

	if causes == nil {
		causes = map[string]int{}
	}
	writeJSON(w, causes)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run history disabled (no database)", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.DB.Runs(limit)
	if err != nil {
		slog.Error("list runs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	type runSummary struct {
		persistence.Run
		Age string `json:"age"`
	}
	result := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		sum := runSummary{Run: run}
		if t, err := time.Parse(time.RFC3339, run.CreatedAt); err == nil {
			sum.Age = humanize.Time(t)
		}
		result = append(result, sum)
	}
	writeJSON(w, result)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run history disabled (no database)", http.StatusServiceUnavailable)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	run, err := s.DB.Run(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load run", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	inds, err := s.DB.Individuals(id)
	if err != nil {
		slog.Error("load run individuals", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	causes, err := s.DB.DeathCauses(id)
	if err != nil {
		slog.Error("load run deaths", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"run":          run,
		"individuals":  inds,
		"death_causes": causes,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write response", "error", err)
	}
}
