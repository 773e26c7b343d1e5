// Package guestbook is the lock-free bounded entry log behind the site
// guestbook. Same whole-document store and retention pattern as the chat
// log, with input validation but no presence concept.
package guestbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kberry/chatbus/backend/store"
	"github.com/kberry/chatbus/backend/telemetry"
)

// DefaultMaxEntries is the retention cap when none is configured.
const DefaultMaxEntries = 200

const (
	maxMessageLen = 256
	maxNameLen    = 32
	defaultName   = "ANONYMOUS"
)

// ErrInvalidEntry rejects submissions missing a message.
var ErrInvalidEntry = errors.New("guestbook: invalid entry data")

// Entry is one guestbook submission.
type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	Rating    int    `json:"rating"`
	Timestamp string `json:"timestamp"`
}

// Book owns validation, id/timestamp assignment and retention for the
// guestbook document.
type Book struct {
	store store.Store
	max   int
}

func New(st store.Store, max int) *Book {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Book{store: st, max: max}
}

// List returns all entries oldest-first, degrading to empty on a missing or
// corrupt document.
func (b *Book) List(ctx context.Context) ([]Entry, error) {
	return b.load(ctx), nil
}

// Add validates and stores a submission: message required and trimmed to
// 256 characters, rating clamped to 0..5, name defaulted and trimmed to 32
// characters.
func (b *Book) Add(ctx context.Context, submitted Entry, now time.Time) (Entry, error) {
	message := strings.TrimSpace(truncate(submitted.Message, maxMessageLen))
	if message == "" {
		return Entry{}, ErrInvalidEntry
	}
	name := strings.TrimSpace(truncate(submitted.Name, maxNameLen))
	if name == "" {
		name = defaultName
	}
	rating := submitted.Rating
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Name:      name,
		Message:   message,
		Rating:    rating,
		Timestamp: now.UTC().Format(time.RFC3339),
	}

	entries := append(b.load(ctx), entry)
	if len(entries) > b.max {
		entries = entries[len(entries)-b.max:]
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return entry, fmt.Errorf("marshal guestbook: %w", err)
	}
	if err := b.store.Save(ctx, store.DocGuestbook, body); err != nil {
		return entry, fmt.Errorf("add guestbook entry: %w", err)
	}
	telemetry.IncGuestbookEntries()
	return entry, nil
}

func (b *Book) load(ctx context.Context) []Entry {
	body, err := b.store.Load(ctx, store.DocGuestbook)
	if err != nil {
		if err != store.ErrNotFound {
			slog.Warn("guestbook unreadable, treating as empty", slog.Any("err", err), slog.String("component", "guestbook"))
		}
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		slog.Warn("guestbook corrupt, treating as empty", slog.Any("err", err), slog.String("component", "guestbook"))
		return []Entry{}
	}
	return entries
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
