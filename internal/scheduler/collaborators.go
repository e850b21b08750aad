package scheduler

import (
	"context"
	"time"
)

// MovementSink is told when an occupant moves into or out of a slot.
// Implementations must return quickly; they are called under the mutation lock.
type MovementSink interface {
	OnAssigned(occupantID, slotID string)
	OnReleased(occupantID string)
}

// DecisionSource answers whether an expired occupant stays longer.
type DecisionSource interface {
	AskExtendOrRelease(ctx context.Context, occupantID, slotID string) (Decision, error)
}

// StatusSink receives the filled/empty totals after every change.
type StatusSink interface {
	OnOccupancyChanged(filled, empty int)
}

// Observer counts scheduler outcomes. Used for metrics.
type Observer interface {
	Admitted(t Tier)
	Queued(t Tier)
	Released(t Tier)
	Extended(t Tier)
	StaleDropped(t Tier)
	CycleReset()
}

type Action int

const (
	ActionRelease Action = iota
	ActionExtend
)

func (a Action) String() string {
	if a == ActionExtend {
		return "extend"
	}
	return "release"
}

// Decision is the answer of a DecisionSource.
type Decision struct {
	Action Action
	Extra  time.Duration
}

func Extend(extra time.Duration) Decision {
	return Decision{Action: ActionExtend, Extra: extra}
}

func Release() Decision {
	return Decision{Action: ActionRelease}
}

// MovementSinks fans movement events out to several sinks.
type MovementSinks []MovementSink

func (m MovementSinks) OnAssigned(occupantID, slotID string) {
	for _, s := range m {
		s.OnAssigned(occupantID, slotID)
	}
}

func (m MovementSinks) OnReleased(occupantID string) {
	for _, s := range m {
		s.OnReleased(occupantID)
	}
}

// StatusSinks fans status snapshots out to several sinks.
type StatusSinks []StatusSink

func (m StatusSinks) OnOccupancyChanged(filled, empty int) {
	for _, s := range m {
		s.OnOccupancyChanged(filled, empty)
	}
}

type releaseAll struct{}

func (releaseAll) AskExtendOrRelease(context.Context, string, string) (Decision, error) {
	return Release(), nil
}

type nopMovement struct{}

func (nopMovement) OnAssigned(string, string) {}
func (nopMovement) OnReleased(string)         {}

type nopStatus struct{}

func (nopStatus) OnOccupancyChanged(int, int) {}

type nopObserver struct{}

func (nopObserver) Admitted(Tier)     {}
func (nopObserver) Queued(Tier)       {}
func (nopObserver) Released(Tier)     {}
func (nopObserver) Extended(Tier)     {}
func (nopObserver) StaleDropped(Tier) {}
func (nopObserver) CycleReset()       {}
