package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kberry/chatbus/backend/store"
)

// HandleHealthz responds to liveness probe requests by checking store reachability.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Load(r.Context(), store.DocChatLog); err != nil && !errors.Is(err, store.ErrNotFound) {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with per-check detail.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"store_read", func() error {
			if _, err := h.store.Load(r.Context(), store.DocChatLog); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			return nil
		}},
		{"store_write", func() error {
			return h.store.Save(r.Context(), "health-probe", []byte(`{}`))
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			// Set headers before writing status code
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
