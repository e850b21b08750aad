package scheduler

import (
	"fmt"
	"time"
)

// Tier partitions slots into groups that share admission rules.
// Lower tiers are resolved first when several expiries land in one batch.
type Tier int

const (
	Tier0 Tier = iota
	Tier1
	Tier2
)

// Priority is the resolution order of the tier; smaller runs earlier.
func (t Tier) Priority() int {
	return int(t)
}

func (t Tier) String() string {
	return fmt.Sprintf("tier%d", int(t))
}

// TierRule describes how a tier admits requests.
type TierRule struct {
	Tier Tier
	Name string
	// MaxDuration caps the requested stay. Zero means uncapped.
	MaxDuration time.Duration
	// Queueing tiers hold overflow requests instead of rejecting them.
	Queueing bool
}

func (r TierRule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Tier.String()
}

// Slot is one unit of capacity. It never changes tier.
type Slot struct {
	ID   string
	Tier Tier
}
