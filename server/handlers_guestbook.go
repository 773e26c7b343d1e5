package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kberry/chatbus/backend/guestbook"
	"github.com/kberry/chatbus/backend/telemetry"
)

// guestbookRequest is the accepted shape for a guestbook submission.
type guestbookRequest struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

// HandleGuestbook serves the guestbook: GET lists entries, POST validates
// and stores one. No presence concept, no cleanup pass, no lock.
func (h *Handlers) HandleGuestbook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := h.book.List(r.Context())
		if err != nil {
			telemetry.LoggerWithCorr(r.Context()).Warn("list guestbook failed", slog.Any("err", err), slog.String("component", "http"))
			entries = []guestbook.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		var req guestbookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid entry data")
			return
		}
		entry, err := h.book.Add(r.Context(), guestbook.Entry{Name: req.Name, Message: req.Message, Rating: req.Rating}, h.Now())
		if err != nil {
			if errors.Is(err, guestbook.ErrInvalidEntry) {
				writeJSONError(w, http.StatusBadRequest, "invalid entry data")
				return
			}
			telemetry.LoggerWithCorr(r.Context()).Warn("add guestbook entry failed", slog.Any("err", err), slog.String("component", "http"))
		}
		writeJSON(w, http.StatusCreated, entry)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
