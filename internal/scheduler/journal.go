package scheduler

import "time"

type EntryKind int

const (
	EntryAssigned EntryKind = iota
	EntryExtended
	EntryReleased
	EntryReset
)

func (k EntryKind) String() string {
	switch k {
	case EntryAssigned:
		return "assigned"
	case EntryExtended:
		return "extended"
	case EntryReleased:
		return "released"
	default:
		return "reset"
	}
}

// JournalEntry is a copy of one binding change. Binding is zero for EntryReset.
type JournalEntry struct {
	Kind    EntryKind
	Binding Binding
	Cycle   int
	At      time.Time
}

// Journal receives every binding change in the order it happened.
// Record is called under the mutation lock and must not block.
type Journal interface {
	Record(e JournalEntry)
}

type nopJournal struct{}

func (nopJournal) Record(JournalEntry) {}

func bindingOf(occ *Occupancy) Binding {
	return Binding{
		SlotID:       occ.SlotID,
		Tier:         occ.Tier(),
		OccupantID:   occ.OccupantID(),
		OccupancyID:  occ.ID,
		StartedAt:    occ.StartedAt,
		ScheduledEnd: occ.ScheduledEnd,
		Extensions:   occ.Extensions,
	}
}

func (s *Scheduler) recordLocked(kind EntryKind, occ *Occupancy) {
	e := JournalEntry{Kind: kind, Cycle: s.cycle, At: s.now()}
	if occ != nil {
		e.Binding = bindingOf(occ)
	}
	s.journal.Record(e)
}
