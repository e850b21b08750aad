package store

import (
	"errors"
	"time"
)

// ErrNoOpenOccupancy is returned when an occupant has no hot row to update or archive.
var ErrNoOpenOccupancy = errors.New("no open occupancy")

// CatalogItem describes one slot and the tier it belongs to.
type CatalogItem struct {
	SlotID             string
	Floor              int
	Seq                int
	TierID             int
	TierName           string
	Priority           int
	MaxDurationMinutes float64
	Queueing           bool
}

// AssignedItem is a fresh binding of an occupant to a slot.
type AssignedItem struct {
	OccupancyID  string
	OccupantID   string
	SlotID       string
	TierID       int
	StartedAt    time.Time
	ScheduledEnd time.Time
}

// ReleasedItem is what remains of a binding after it was archived.
type ReleasedItem struct {
	OccupancyID string
	OccupantID  string
	SlotID      string
	TierID      int
	PeriodStart time.Time
	PeriodEnd   time.Time
	ReleasedAt  time.Time
	Extensions  int
}

// SlotState is one row of a tier listing, live or historical.
type SlotState struct {
	SlotID       string     `json:"slotId"`
	Floor        int        `json:"floor"`
	Seq          int        `json:"seq"`
	IsAvailable  bool       `json:"isAvailable"`
	OccupantID   string     `json:"occupantId,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	ScheduledEnd *time.Time `json:"scheduledEnd,omitempty"`
	Extensions   int        `json:"extensions"`
}
