package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kberry/chatbus/backend/chatlog"
	"github.com/kberry/chatbus/backend/telemetry"
)

// postMessageRequest is the accepted shape for a client message post. Any
// caller-supplied id, type, or timestamp is discarded; the log assigns
// identity itself.
type postMessageRequest struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// HandleMessages serves the chat log: GET lists it (running presence
// cleanup first, since the widget polls messages and users together), POST
// appends a message.
func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.runCleanup(r.Context())
		messages, err := h.log.List(r.Context())
		if err != nil {
			// List degrades to empty internally; an error here is unexpected.
			telemetry.LoggerWithCorr(r.Context()).Warn("list messages failed", slog.Any("err", err), slog.String("component", "http"))
			messages = []chatlog.Message{}
		}
		writeJSON(w, http.StatusOK, messages)
	case http.MethodPost:
		var req postMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeJSONError(w, http.StatusBadRequest, "missing message text")
			return
		}
		msg, err := h.log.Append(r.Context(), chatlog.Message{User: req.User, Text: req.Text}, h.Now())
		if err != nil {
			// Availability over correctness: the message is fully populated
			// even when the save failed, and the client is answered as if it
			// landed. The next successful append re-seeds the document.
			telemetry.LoggerWithCorr(r.Context()).Warn("append message failed", slog.Any("err", err), slog.String("component", "http"))
		}
		telemetry.IncMessagesPosted()
		writeJSON(w, http.StatusCreated, msg)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
