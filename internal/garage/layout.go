package garage

import (
	"fmt"
	"time"

	"parking-scheduler-backend/config"
	"parking-scheduler-backend/internal/parse"
	"parking-scheduler-backend/internal/scheduler"
	"parking-scheduler-backend/internal/store"
)

// Layout is the garage described by the tiers section: the scheduler's
// catalog and the rows that mirror it in the database.
type Layout struct {
	Catalog *scheduler.Catalog
	Items   []store.CatalogItem
}

// Build turns the configured tiers into a catalog. Tiers are numbered in the
// order they are listed; slot IDs follow <floor><seq:02> unless given explicitly.
func Build(tiers []config.TierConfig, unit time.Duration) (*Layout, error) {
	if unit <= 0 {
		unit = time.Minute
	}

	var (
		rules []scheduler.TierRule
		slots []scheduler.Slot
		items []store.CatalogItem
	)
	for i, tc := range tiers {
		tier := scheduler.Tier(i)
		maxStay, err := parse.StayDuration(tc.MaxMinutes, unit)
		if err != nil {
			return nil, fmt.Errorf("tier %d (%s): max_minutes: %w", i, tc.Name, err)
		}
		rules = append(rules, scheduler.TierRule{
			Tier:        tier,
			Name:        tc.Name,
			MaxDuration: maxStay,
			Queueing:    tc.Queueing,
		})

		ids, err := slotIDs(tc)
		if err != nil {
			return nil, fmt.Errorf("tier %d (%s): %w", i, tc.Name, err)
		}
		for _, id := range ids {
			n, _ := parse.ParseSlotNumber(id)
			slots = append(slots, scheduler.Slot{ID: id, Tier: tier})
			items = append(items, store.CatalogItem{
				SlotID:             id,
				Floor:              n.Floor,
				Seq:                n.Seq,
				TierID:             i,
				TierName:           tc.Name,
				Priority:           tier.Priority(),
				MaxDurationMinutes: tc.MaxMinutes,
				Queueing:           tc.Queueing,
			})
		}
	}

	catalog, err := scheduler.NewCatalog(rules, slots)
	if err != nil {
		return nil, err
	}
	return &Layout{Catalog: catalog, Items: items}, nil
}

func slotIDs(tc config.TierConfig) ([]string, error) {
	if len(tc.SlotIDs) == 0 {
		ids := make([]string, 0, tc.Slots)
		for seq := 1; seq <= tc.Slots; seq++ {
			ids = append(ids, parse.FormatSlotNumber(tc.Floor, seq))
		}
		return ids, nil
	}

	ids := make([]string, 0, len(tc.SlotIDs))
	for _, raw := range tc.SlotIDs {
		id, err := parse.NormalizeSlot(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
