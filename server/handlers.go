package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/kberry/chatbus/backend/chatlog"
	"github.com/kberry/chatbus/backend/config"
	"github.com/kberry/chatbus/backend/guestbook"
	"github.com/kberry/chatbus/backend/presence"
	"github.com/kberry/chatbus/backend/store"
	"github.com/kberry/chatbus/backend/telemetry"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store    store.Store
	log      *chatlog.Log
	registry *presence.Registry
	protocol *presence.Protocol
	cleaner  *presence.Cleaner
	book     *guestbook.Book

	// Now supplies the current time. Handlers pass it explicitly into every
	// time-dependent operation; tests replace it with a fixed clock.
	Now func() time.Time
}

// NewHandlers wires the domain components over the given store and locker.
func NewHandlers(st store.Store, locker store.Locker, cfg *config.Config) *Handlers {
	log := chatlog.New(st, cfg.MaxMessages)
	registry := presence.NewRegistry(st)
	return &Handlers{
		store:    st,
		log:      log,
		registry: registry,
		protocol: presence.NewProtocol(registry, log),
		cleaner:  presence.NewCleaner(registry, log, locker, cfg.PresenceTimeout),
		book:     guestbook.New(st, cfg.MaxGuestbookEntries),
		Now:      time.Now,
	}
}

// runCleanup performs the best-effort cleanup pass that precedes any
// presence-dependent action. Failures are logged, never surfaced: the
// request proceeds with whatever state is committed.
func (h *Handlers) runCleanup(ctx context.Context) {
	if err := h.cleaner.Run(ctx, h.Now()); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("presence cleanup failed", slog.Any("err", err), slog.String("component", "http"))
	}
}
