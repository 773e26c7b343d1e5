package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kberry/chatbus/backend/telemetry"
)

// presenceRequest is the body for join/heartbeat and leave posts.
type presenceRequest struct {
	Nickname string `json:"nickname"`
}

// HandlePresence accepts a join/heartbeat signal. A missing nickname is
// acknowledged but changes nothing, matching the widget's fire-and-forget
// heartbeat loop.
func (h *Handlers) HandlePresence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	h.runCleanup(r.Context())
	nick := strings.TrimSpace(req.Nickname)
	if nick == "" {
		writeJSON(w, http.StatusOK, statusOK)
		return
	}
	if err := h.protocol.Heartbeat(r.Context(), nick, h.Now()); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("heartbeat failed", slog.String("nick", nick), slog.Any("err", err), slog.String("component", "http"))
	}
	writeJSON(w, http.StatusOK, statusOK)
}

// HandleLeave accepts the best-effort leave beacon sent on page exit.
func (h *Handlers) HandleLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	h.runCleanup(r.Context())
	nick := strings.TrimSpace(req.Nickname)
	if nick == "" {
		writeJSON(w, http.StatusOK, statusOK)
		return
	}
	if err := h.protocol.Leave(r.Context(), nick, h.Now()); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("leave failed", slog.String("nick", nick), slog.Any("err", err), slog.String("component", "http"))
	}
	writeJSON(w, http.StatusOK, statusOK)
}

// HandleUsers lists every registered nickname after a cleanup pass.
func (h *Handlers) HandleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.runCleanup(r.Context())
	users, err := h.registry.Snapshot(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("presence snapshot failed", slog.Any("err", err), slog.String("component", "http"))
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleNotFound answers every unrecognized route with the structured 404
// body.
func (h *Handlers) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "not found")
}
