package scheduler

import (
	"errors"
	"fmt"
	"sort"
)

// Catalog is the immutable description of every slot and tier.
type Catalog struct {
	rules  map[Tier]TierRule
	tiers  []Tier
	slots  []Slot
	byID   map[string]Slot
	byTier map[Tier][]Slot
}

// NewCatalog validates the rules and slots and builds a catalog.
// Slot order within a tier is preserved; it decides which free slot is handed out first.
func NewCatalog(rules []TierRule, slots []Slot) (*Catalog, error) {
	if len(rules) == 0 {
		return nil, errors.New("catalog needs at least one tier")
	}

	c := &Catalog{
		rules:  make(map[Tier]TierRule, len(rules)),
		byID:   make(map[string]Slot, len(slots)),
		byTier: make(map[Tier][]Slot, len(rules)),
	}

	for _, r := range rules {
		if _, dup := c.rules[r.Tier]; dup {
			return nil, fmt.Errorf("duplicate rule for %s", r.Tier)
		}
		if r.MaxDuration < 0 {
			return nil, fmt.Errorf("%s: negative max duration", r.label())
		}
		c.rules[r.Tier] = r
		c.tiers = append(c.tiers, r.Tier)
	}
	sort.Slice(c.tiers, func(i, j int) bool { return c.tiers[i] < c.tiers[j] })

	for _, s := range slots {
		if s.ID == "" {
			return nil, errors.New("slot identifier must not be empty")
		}
		if _, ok := c.rules[s.Tier]; !ok {
			return nil, fmt.Errorf("slot %q references unknown %s", s.ID, s.Tier)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate slot identifier %q", s.ID)
		}
		c.byID[s.ID] = s
		c.byTier[s.Tier] = append(c.byTier[s.Tier], s)
		c.slots = append(c.slots, s)
	}

	return c, nil
}

// SlotsInTier returns the slots of a tier in catalog order.
func (c *Catalog) SlotsInTier(t Tier) []Slot {
	out := make([]Slot, len(c.byTier[t]))
	copy(out, c.byTier[t])
	return out
}

// IsValidSlotForTier reports whether slotID exists and belongs to t.
func (c *Catalog) IsValidSlotForTier(slotID string, t Tier) bool {
	s, ok := c.byID[slotID]
	return ok && s.Tier == t
}

func (c *Catalog) Slot(slotID string) (Slot, bool) {
	s, ok := c.byID[slotID]
	return s, ok
}

func (c *Catalog) Rule(t Tier) (TierRule, bool) {
	r, ok := c.rules[t]
	return r, ok
}

// Tiers lists the configured tiers in priority order.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Slots returns every slot in catalog order.
func (c *Catalog) Slots() []Slot {
	out := make([]Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

func (c *Catalog) Len() int {
	return len(c.slots)
}
