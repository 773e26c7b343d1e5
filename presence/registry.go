// Package presence tracks which nicknames are currently active. The
// registry is a single JSON document mapping nickname to last-heartbeat
// epoch seconds; an entry exists iff the nickname counts as present.
// Liveness is enforced only by the Cleaner, never on read.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kberry/chatbus/backend/store"
)

// DefaultTimeout is how stale a heartbeat may be before the nickname is
// considered gone.
const DefaultTimeout = 45 * time.Second

// Registry is the stateless presence document logic. All time-dependent
// operations take an explicit now so callers stay deterministic under test.
type Registry struct {
	store store.Store
}

func NewRegistry(st store.Store) *Registry {
	return &Registry{store: st}
}

// Heartbeat upserts the nickname's last-seen instant and persists.
func (r *Registry) Heartbeat(ctx context.Context, nick string, now time.Time) error {
	reg := r.load(ctx)
	reg[nick] = now.Unix()
	return r.save(ctx, reg)
}

// Snapshot returns every registered nickname, sorted. No liveness check.
func (r *Registry) Snapshot(ctx context.Context) ([]string, error) {
	reg := r.load(ctx)
	nicks := make([]string, 0, len(reg))
	for nick := range reg {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	return nicks, nil
}

// IsPresent reports whether an entry exists for the nickname.
func (r *Registry) IsPresent(ctx context.Context, nick string) (bool, error) {
	_, ok := r.load(ctx)[nick]
	return ok, nil
}

// Remove deletes the entry and persists. Removing an absent nickname is a
// no-op that still succeeds.
func (r *Registry) Remove(ctx context.Context, nick string) error {
	reg := r.load(ctx)
	if _, ok := reg[nick]; !ok {
		return nil
	}
	delete(reg, nick)
	return r.save(ctx, reg)
}

// expiredNicknames returns, sorted, every nickname whose heartbeat is older
// than the timeout at the given instant. Pure: the registry map is not
// mutated.
func expiredNicknames(reg map[string]int64, now time.Time, timeout time.Duration) []string {
	var expired []string
	for nick, lastSeen := range reg {
		if now.Unix()-lastSeen > int64(timeout.Seconds()) {
			expired = append(expired, nick)
		}
	}
	sort.Strings(expired)
	return expired
}

// load implements the degrade-to-empty policy: a missing or corrupt
// document reads as an empty registry.
func (r *Registry) load(ctx context.Context) map[string]int64 {
	body, err := r.store.Load(ctx, store.DocPresence)
	if err != nil {
		if err != store.ErrNotFound {
			slog.Warn("presence registry unreadable, treating as empty", slog.Any("err", err), slog.String("component", "presence"))
		}
		return map[string]int64{}
	}
	var reg map[string]int64
	if err := json.Unmarshal(body, &reg); err != nil || reg == nil {
		slog.Warn("presence registry corrupt, treating as empty", slog.Any("err", err), slog.String("component", "presence"))
		return map[string]int64{}
	}
	return reg
}

func (r *Registry) save(ctx context.Context, reg map[string]int64) error {
	body, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal presence registry: %w", err)
	}
	if err := r.store.Save(ctx, store.DocPresence, body); err != nil {
		return fmt.Errorf("save presence registry: %w", err)
	}
	return nil
}
