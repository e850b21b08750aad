package scheduler

import "time"

// Request asks for a stay in a tier.
type Request struct {
	OccupantID string
	Tier       Tier
	// SlotID pins a slot. Empty means any slot in the tier.
	SlotID   string
	Duration time.Duration
	// Seq is the arrival number, assigned on submission.
	Seq uint64
}

// Occupancy binds a request to a slot. Fields are only touched under the scheduler lock.
type Occupancy struct {
	ID           string
	Request      Request
	SlotID       string
	StartedAt    time.Time
	ScheduledEnd time.Time
	Extensions   int

	completed bool
	// generation increments on every extension so the fire of a superseded timer is stale.
	generation uint64
}

func (o *Occupancy) OccupantID() string {
	return o.Request.OccupantID
}

func (o *Occupancy) Tier() Tier {
	return o.Request.Tier
}

// PendingEvent is posted by an expiry timer when its occupancy's stay has elapsed.
type PendingEvent struct {
	ScheduledEnd time.Time
	Priority     int
	Seq          uint64
	Generation   uint64
	Occupancy    *Occupancy
}

func newPendingEvent(o *Occupancy) PendingEvent {
	return PendingEvent{
		ScheduledEnd: o.ScheduledEnd,
		Priority:     o.Tier().Priority(),
		Seq:          o.Request.Seq,
		Generation:   o.generation,
		Occupancy:    o,
	}
}
