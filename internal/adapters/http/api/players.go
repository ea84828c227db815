// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/okian/rankd/internal/app"
	"github.com/okian/rankd/internal/domain/stats"
)

const maxBodyBytes = 1 << 16

// PlayersHandler handles /players/{nickname} requests.
type PlayersHandler struct {
	deps PlayerDependencies
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayerDependencies) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

type playerResponse struct {
	Nickname string      `json:"nickname"`
	Prefix   string      `json:"prefix,omitempty"`
	Stats    stats.Stats `json:"stats"`
}

// HandleGet handles GET /players/{nickname}?prefix=P.
func (h *PlayersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	nickname, prefix := r.PathValue("nickname"), r.URL.Query().Get("prefix")
	rec, err := h.deps.Player(r.Context(), nickname, prefix)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, playerResponse{Nickname: nickname, Prefix: prefix, Stats: rec})
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrRejected):
		writeError(w, http.StatusBadRequest, "rejected", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// HandleSet handles PUT /players/{nickname}?prefix=P with a stats body.
func (h *PlayersHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeStats(w, r)
	if !ok {
		return
	}
	nickname, prefix := r.PathValue("nickname"), r.URL.Query().Get("prefix")
	h.ack(w, nickname, prefix, h.deps.SetPlayer(r.Context(), nickname, prefix, rec))
}

// HandleUpdate handles PATCH /players/{nickname}?prefix=P with a delta body.
func (h *PlayersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	delta, ok := decodeStats(w, r)
	if !ok {
		return
	}
	nickname, prefix := r.PathValue("nickname"), r.URL.Query().Get("prefix")
	h.ack(w, nickname, prefix, h.deps.UpdatePlayer(r.Context(), nickname, prefix, delta))
}

// HandleDelete handles DELETE /players/{nickname}?prefix=P.
func (h *PlayersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	nickname, prefix := r.PathValue("nickname"), r.URL.Query().Get("prefix")
	h.ack(w, nickname, prefix, h.deps.DeletePlayer(r.Context(), nickname, prefix))
}

func (h *PlayersHandler) ack(w http.ResponseWriter, nickname, prefix string, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Nickname: nickname, Prefix: prefix})
	case errors.Is(err, service.ErrRejected):
		writeError(w, http.StatusBadRequest, "rejected", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeStats(w http.ResponseWriter, r *http.Request) (stats.Stats, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return stats.Invalid(), false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingBody)
		return stats.Invalid(), false
	}
	var rec stats.Stats
	if err := json.Unmarshal(body, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return stats.Invalid(), false
	}
	if !rec.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingBody)
		return stats.Invalid(), false
	}
	return rec, true
}
