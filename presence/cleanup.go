package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kberry/chatbus/backend/chatlog"
	"github.com/kberry/chatbus/backend/store"
	"github.com/kberry/chatbus/backend/telemetry"
)

// Cleaner evicts timed-out nicknames. It is the only serialized operation
// in the system: the advisory lock guarantees at most one
// read-expire-write pass over the registry at a time, so near-simultaneous
// poll requests cannot both synthesize a "left (timeout)" notice for the
// same nickname.
type Cleaner struct {
	registry *Registry
	log      *chatlog.Log
	locker   store.Locker
	timeout  time.Duration
}

func NewCleaner(registry *Registry, log *chatlog.Log, locker store.Locker, timeout time.Duration) *Cleaner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Cleaner{registry: registry, log: log, locker: locker, timeout: timeout}
}

// Run performs one best-effort cleanup pass. Lock contention is not an
// error: another request is already cleaning, so this one proceeds with
// whatever state is committed. The lock is released on every exit path.
func (c *Cleaner) Run(ctx context.Context, now time.Time) error {
	acquired, err := c.locker.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("cleanup lock: %w", err)
	}
	if !acquired {
		telemetry.IncCleanupSkipped()
		return nil
	}
	defer func() {
		if err := c.locker.Release(ctx); err != nil {
			slog.Warn("cleanup lock release failed", slog.Any("err", err), slog.String("component", "presence"))
		}
	}()
	telemetry.IncCleanupRun()

	reg := c.registry.load(ctx)
	expired := expiredNicknames(reg, now, c.timeout)
	if len(expired) == 0 {
		telemetry.SetActiveUsers(len(reg))
		return nil
	}

	for _, nick := range expired {
		if _, err := c.log.AppendSystem(ctx, fmt.Sprintf("*** %s has left (timeout)", nick), now); err != nil {
			return fmt.Errorf("synthesize timeout notice for %s: %w", nick, err)
		}
		delete(reg, nick)
	}
	if err := c.registry.save(ctx, reg); err != nil {
		return err
	}

	slog.Info("evicted stale nicknames", slog.Int("count", len(expired)), slog.String("component", "presence"))
	telemetry.AddEvictions(len(expired))
	telemetry.SetActiveUsers(len(reg))
	return nil
}
