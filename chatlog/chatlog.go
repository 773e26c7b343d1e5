// Package chatlog maintains the bounded, ordered chat message log. The log
// is a single JSON document in the store; every operation reads or writes it
// whole. Ordinary appends are deliberately not lock-protected: two
// concurrent posts can race on the load-modify-save cycle and one can be
// lost. Chat traffic favors availability over strict consistency.
package chatlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kberry/chatbus/backend/store"
	"github.com/kberry/chatbus/backend/telemetry"
)

// DefaultMaxMessages is the retention cap when none is configured.
const DefaultMaxMessages = 100

// TypeSystem marks messages synthesized by the server (join/leave notices).
const TypeSystem = "system"

// Message is one entry in the chat log. Never mutated after Append; dropped
// only by retention trimming.
type Message struct {
	ID        string `json:"id"`
	User      string `json:"user,omitempty"`
	Type      string `json:"type,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// IsSystem reports whether the message was synthesized by the server.
func (m Message) IsSystem() bool { return m.Type == TypeSystem }

// Log owns id and timestamp assignment and retention trimming for the chat
// document. It is stateless: all state lives in the store.
type Log struct {
	store store.Store
	max   int
}

// New returns a Log over the given store, retaining at most max messages.
func New(st store.Store, max int) *Log {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &Log{store: st, max: max}
}

// List returns the full log oldest-first. An unreadable or corrupt document
// degrades to an empty log rather than failing the caller; the next
// successful Append re-seeds it.
func (l *Log) List(ctx context.Context) ([]Message, error) {
	return l.load(ctx), nil
}

// Append assigns a fresh id, stamps the message with now (UTC, RFC3339) and
// persists the trimmed log. Any caller-supplied id or timestamp is replaced;
// synthesized system messages pass their synthesis instant as now. The
// returned message is fully populated even when persistence fails, so
// callers favoring availability can still answer with it.
func (l *Log) Append(ctx context.Context, msg Message, now time.Time) (Message, error) {
	msg.ID = uuid.NewString()
	msg.Timestamp = now.UTC().Format(time.RFC3339)

	messages := append(l.load(ctx), msg)
	if len(messages) > l.max {
		messages = messages[len(messages)-l.max:]
	}

	body, err := json.Marshal(messages)
	if err != nil {
		return msg, fmt.Errorf("marshal chat log: %w", err)
	}
	if err := l.store.Save(ctx, store.DocChatLog, body); err != nil {
		return msg, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// AppendSystem synthesizes a server notice stamped with now.
func (l *Log) AppendSystem(ctx context.Context, text string, now time.Time) (Message, error) {
	msg, err := l.Append(ctx, Message{Type: TypeSystem, Text: text}, now)
	if err != nil {
		return Message{}, err
	}
	telemetry.IncSystemMessages()
	return msg, nil
}

// load implements the degrade-to-empty policy shared by List and Append.
func (l *Log) load(ctx context.Context) []Message {
	body, err := l.store.Load(ctx, store.DocChatLog)
	if err != nil {
		if err != store.ErrNotFound {
			slog.Warn("chat log unreadable, treating as empty", slog.Any("err", err), slog.String("component", "chatlog"))
		}
		return []Message{}
	}
	var messages []Message
	if err := json.Unmarshal(body, &messages); err != nil {
		slog.Warn("chat log corrupt, treating as empty", slog.Any("err", err), slog.String("component", "chatlog"))
		return []Message{}
	}
	return messages
}
