package server

import (
	"context"
	"testing"
	"time"

	"github.com/kberry/chatbus/backend/config"
	"github.com/kberry/chatbus/backend/store"
)

func TestStartAndShutdown(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	cfg := &config.Config{
		HTTPAddr:            ":0",
		StoreBackend:        "memory",
		MaxMessages:         100,
		PresenceTimeout:     45 * time.Second,
		MaxGuestbookEntries: 200,
	}
	st := store.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run server in background on random port by using :0
	done := make(chan error, 1)
	go func() { done <- Start(ctx, st, st.NewLocker(), cfg) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}
