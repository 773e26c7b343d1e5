package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/kberry/chatbus/backend/chatlog"
)

// Protocol implements the join/heartbeat/leave transitions and synthesizes
// the matching system messages. Timeout eviction is the Cleaner's job, not
// the protocol's.
type Protocol struct {
	registry *Registry
	log      *chatlog.Log
}

func NewProtocol(registry *Registry, log *chatlog.Log) *Protocol {
	return &Protocol{registry: registry, log: log}
}

// Heartbeat registers activity for a nickname. The first heartbeat of an
// absent nickname is a join and synthesizes a joined notice; subsequent
// heartbeats only refresh the last-seen instant.
func (p *Protocol) Heartbeat(ctx context.Context, nick string, now time.Time) error {
	present, err := p.registry.IsPresent(ctx, nick)
	if err != nil {
		return err
	}
	if !present {
		if _, err := p.log.AppendSystem(ctx, fmt.Sprintf("*** %s has joined the cluster", nick), now); err != nil {
			return fmt.Errorf("synthesize join notice for %s: %w", nick, err)
		}
	}
	return p.registry.Heartbeat(ctx, nick, now)
}

// Leave removes the nickname and synthesizes a disconnect notice. Both
// steps are unconditional: leaving an absent nickname still produces the
// notice, which keeps the best-effort page-exit beacon permissive.
func (p *Protocol) Leave(ctx context.Context, nick string, now time.Time) error {
	if err := p.registry.Remove(ctx, nick); err != nil {
		return err
	}
	if _, err := p.log.AppendSystem(ctx, fmt.Sprintf("*** %s has left (disconnected)", nick), now); err != nil {
		return fmt.Errorf("synthesize leave notice for %s: %w", nick, err)
	}
	return nil
}
