// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/rankd/internal/domain/stats"
	"github.com/okian/rankd/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PlayerDependencies
	LeaderboardDependencies

	// Ready reports whether the backing store is reachable.
	Ready() bool
}

// PlayerDependencies covers the per-player operations.
type PlayerDependencies interface {
	SetPlayer(ctx context.Context, nickname, prefix string, rec stats.Stats) error
	UpdatePlayer(ctx context.Context, nickname, prefix string, delta stats.Stats) error
	DeletePlayer(ctx context.Context, nickname, prefix string) error
	Player(ctx context.Context, nickname, prefix string) (stats.Stats, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	playersHandler     *PlayersHandler
	leaderboardHandler *LeaderboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		playersHandler:     NewPlayersHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))

	mux.HandleFunc("GET /players/{nickname}", MetricsMiddleware(s.playersHandler.HandleGet, "players"))
	mux.HandleFunc("PUT /players/{nickname}", MetricsMiddleware(s.playersHandler.HandleSet, "players"))
	mux.HandleFunc("PATCH /players/{nickname}", MetricsMiddleware(s.playersHandler.HandleUpdate, "players"))
	mux.HandleFunc("DELETE /players/{nickname}", MetricsMiddleware(s.playersHandler.HandleDelete, "players"))
}

type ackResponse struct {
	Status   string `json:"status"`
	Nickname string `json:"nickname"`
	Prefix   string `json:"prefix,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
