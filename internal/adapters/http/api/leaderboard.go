// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/rankd/internal/app"
	"github.com/okian/rankd/internal/domain/stats"
)

const defaultLeaderboardLimit = 10

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, attribute, prefix string, limit int, biggestFirst bool) ([]Entry, error)
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

type leaderboardResponse struct {
	Attribute string  `json:"attribute"`
	Prefix    string  `json:"prefix,omitempty"`
	Order     string  `json:"order"`
	Entries   []Entry `json:"entries"`
}

// HandleGetLeaderboard handles GET /leaderboard?attribute=A&limit=N&prefix=P&order=desc.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	attribute := q.Get("attribute")
	if attribute == "" {
		attribute = stats.Score
	}
	if !stats.IsAttribute(attribute) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %q", stats.ErrUnknownAttribute, attribute))
		return
	}

	limit := defaultLeaderboardLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidLimit)
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: %d", ErrLimitExceeded, h.maxLimit))
		return
	}

	order := strings.ToLower(q.Get("order"))
	switch order {
	case "":
		order = "desc"
	case "asc", "desc":
	default:
		writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidOrder)
		return
	}

	prefix := q.Get("prefix")
	entries, err := h.deps.Leaderboard(r.Context(), attribute, prefix, limit, order == "desc")
	if err != nil {
		if errors.Is(err, service.ErrRejected) {
			writeError(w, http.StatusBadRequest, "rejected", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Attribute: attribute,
		Prefix:    prefix,
		Order:     order,
		Entries:   entries,
	})
}
