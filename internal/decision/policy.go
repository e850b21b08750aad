package decision

import (
	"context"
	"sync"
	"time"

	"parking-scheduler-backend/internal/scheduler"
)

// Policy answers without a human: occupants of the listed tiers get a fixed
// extension a bounded number of times, everyone else leaves.
type Policy struct {
	catalog       *scheduler.Catalog
	extend        map[scheduler.Tier]time.Duration
	maxExtensions int

	mu      sync.Mutex
	granted map[string]int
}

func NewPolicy(catalog *scheduler.Catalog, extend map[scheduler.Tier]time.Duration, maxExtensions int) *Policy {
	return &Policy{
		catalog:       catalog,
		extend:        extend,
		maxExtensions: maxExtensions,
		granted:       make(map[string]int),
	}
}

func (p *Policy) AskExtendOrRelease(ctx context.Context, occupantID, slotID string) (scheduler.Decision, error) {
	if err := ctx.Err(); err != nil {
		return scheduler.Decision{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var extra time.Duration
	if slot, ok := p.catalog.Slot(slotID); ok {
		extra = p.extend[slot.Tier]
	}
	if extra <= 0 || p.granted[occupantID] >= p.maxExtensions {
		delete(p.granted, occupantID)
		return scheduler.Release(), nil
	}
	p.granted[occupantID]++
	return scheduler.Extend(extra), nil
}
