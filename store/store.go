// Package store provides whole-document persistence for the chat service.
// All shared state lives in named JSON documents that are read and written
// as complete units; there are no partial updates. A separate advisory
// Locker arbitrates the presence cleanup transaction.
package store

import (
	"context"
	"errors"
)

// Document names used by the service.
const (
	DocChatLog   = "chat-log"
	DocPresence  = "chat-presence"
	DocGuestbook = "guestbook-entries"
)

// ErrNotFound is returned by Load when a document has never been saved.
// Callers that follow the degrade-to-empty policy treat it as an empty
// document rather than a failure.
var ErrNotFound = errors.New("store: document not found")

// Store is a key-addressed persistence abstraction over whole JSON
// documents. Each Save replaces the document atomically; each Load returns
// the last committed body. Concurrent load-modify-save cycles are NOT
// serialized against each other.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, body []byte) error
}

// Locker is a non-blocking mutual-exclusion capability. TryAcquire never
// waits: it reports false immediately when the lock is held elsewhere.
// Release must be safe to call exactly once per successful acquisition.
type Locker interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
