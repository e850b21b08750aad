package scheduler

import "fmt"

// Table maps slots to their current occupancy. It does no locking of its own.
type Table struct {
	catalog    *Catalog
	bound      map[string]*Occupancy
	byOccupant map[string]string
}

func NewTable(catalog *Catalog) *Table {
	return &Table{
		catalog:    catalog,
		bound:      make(map[string]*Occupancy, catalog.Len()),
		byOccupant: make(map[string]string, catalog.Len()),
	}
}

// IsFree reports whether slotID exists and has no occupant.
func (t *Table) IsFree(slotID string) bool {
	if _, ok := t.catalog.Slot(slotID); !ok {
		return false
	}
	_, taken := t.bound[slotID]
	return !taken
}

// Occupy binds occ to slotID and records the slot on the occupancy.
func (t *Table) Occupy(slotID string, occ *Occupancy) error {
	if _, ok := t.catalog.Slot(slotID); !ok {
		return fmt.Errorf("occupy %s: %w", slotID, ErrUnknownSlot)
	}
	if cur, taken := t.bound[slotID]; taken {
		return &AlreadyOccupiedError{SlotID: slotID, OccupantID: cur.OccupantID()}
	}
	if other, holds := t.byOccupant[occ.OccupantID()]; holds {
		return fmt.Errorf("occupy %s: %s holds %s: %w", slotID, occ.OccupantID(), other, ErrOccupantBound)
	}

	occ.SlotID = slotID
	t.bound[slotID] = occ
	t.byOccupant[occ.OccupantID()] = slotID
	return nil
}

// Release unbinds slotID and returns the occupancy that held it.
func (t *Table) Release(slotID string) (*Occupancy, error) {
	occ, taken := t.bound[slotID]
	if !taken {
		return nil, &NotOccupiedError{SlotID: slotID}
	}
	delete(t.bound, slotID)
	delete(t.byOccupant, occ.OccupantID())
	return occ, nil
}

func (t *Table) Lookup(slotID string) (*Occupancy, bool) {
	occ, ok := t.bound[slotID]
	return occ, ok
}

// SlotOf returns the slot currently held by occupantID.
func (t *Table) SlotOf(occupantID string) (string, bool) {
	slotID, ok := t.byOccupant[occupantID]
	return slotID, ok
}

// FirstFree returns the first free slot of the tier in catalog order.
func (t *Table) FirstFree(tier Tier) (string, bool) {
	for _, s := range t.catalog.byTier[tier] {
		if _, taken := t.bound[s.ID]; !taken {
			return s.ID, true
		}
	}
	return "", false
}

func (t *Table) CountOccupied(tier Tier) int {
	n := 0
	for _, s := range t.catalog.byTier[tier] {
		if _, taken := t.bound[s.ID]; taken {
			n++
		}
	}
	return n
}

func (t *Table) CountFree(tier Tier) int {
	return len(t.catalog.byTier[tier]) - t.CountOccupied(tier)
}

// Len is the number of occupied slots across all tiers.
func (t *Table) Len() int {
	return len(t.bound)
}

func (t *Table) clear() {
	t.bound = make(map[string]*Occupancy, t.catalog.Len())
	t.byOccupant = make(map[string]string, t.catalog.Len())
}
