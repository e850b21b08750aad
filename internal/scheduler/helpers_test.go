package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// referenceCatalog mirrors the garage layout: floor 0 capped at 30 minutes,
// floor 1 uncapped, floor 2 queueing with three bays.
func referenceCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(
		[]TierRule{
			{Tier: Tier0, Name: "ground", MaxDuration: 30 * time.Minute},
			{Tier: Tier1, Name: "first"},
			{Tier: Tier2, Name: "second", Queueing: true},
		},
		[]Slot{
			{ID: "001", Tier: Tier0}, {ID: "002", Tier: Tier0}, {ID: "003", Tier: Tier0},
			{ID: "101", Tier: Tier1}, {ID: "102", Tier: Tier1}, {ID: "103", Tier: Tier1},
			{ID: "201", Tier: Tier2}, {ID: "202", Tier: Tier2}, {ID: "203", Tier: Tier2},
		},
	)
	require.NoError(t, err)
	return c
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// movementRecorder tracks bindings as seen from outside and flags any double booking.
type movementRecorder struct {
	mu         sync.Mutex
	assigned   []string
	released   []string
	holding    map[string]string
	slotOf     map[string]string
	violations []string
}

func newMovementRecorder() *movementRecorder {
	return &movementRecorder{holding: map[string]string{}, slotOf: map[string]string{}}
}

func (m *movementRecorder) OnAssigned(occupantID, slotID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.holding[slotID]; ok {
		m.violations = append(m.violations, slotID+" held by "+cur+" given to "+occupantID)
	}
	if cur, ok := m.slotOf[occupantID]; ok {
		m.violations = append(m.violations, occupantID+" already in "+cur)
	}
	m.holding[slotID] = occupantID
	m.slotOf[occupantID] = slotID
	m.assigned = append(m.assigned, occupantID+"@"+slotID)
}

func (m *movementRecorder) OnReleased(occupantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slotID, ok := m.slotOf[occupantID]
	if !ok {
		m.violations = append(m.violations, occupantID+" released without a slot")
	}
	delete(m.slotOf, occupantID)
	delete(m.holding, slotID)
	m.released = append(m.released, occupantID)
}

func (m *movementRecorder) Released() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.released...)
}

func (m *movementRecorder) Assigned() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.assigned...)
}

func (m *movementRecorder) Violations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.violations...)
}

// scriptedDecisions answers from a per-occupant script and releases when the script runs out.
type scriptedDecisions struct {
	mu      sync.Mutex
	answers map[string][]Decision
	asked   []string
	err     error
}

func (d *scriptedDecisions) AskExtendOrRelease(_ context.Context, occupantID, _ string) (Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.asked = append(d.asked, occupantID)
	if d.err != nil {
		return Decision{}, d.err
	}
	if script := d.answers[occupantID]; len(script) > 0 {
		d.answers[occupantID] = script[1:]
		return script[0], nil
	}
	return Release(), nil
}

func (d *scriptedDecisions) Asked() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.asked...)
}

type statusRecorder struct {
	mu            sync.Mutex
	filled, empty int
	calls         int
}

func (s *statusRecorder) OnOccupancyChanged(filled, empty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filled, s.empty = filled, empty
	s.calls++
}

// fire posts the current expiry of an occupant as if its timer had elapsed.
func fire(t *testing.T, s *Scheduler, occupantID string) PendingEvent {
	t.Helper()
	s.mu.Lock()
	occ, ok := s.active[occupantID]
	require.True(t, ok, "occupant %s is not active", occupantID)
	ev := newPendingEvent(occ)
	s.mu.Unlock()

	s.events <- ev
	return ev
}

// resolvePending runs one batch the way the resolver loop would.
func resolvePending(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx := context.Background()
	select {
	case first := <-s.events:
		batch, err := s.collect(ctx, first)
		require.NoError(t, err)
		s.resolveBatch(ctx, batch)
		s.draining.Store(false)
	case <-time.After(time.Second):
		t.Fatal("no pending event to resolve")
	}
}

func submit(t *testing.T, s *Scheduler, occupantID string, tier Tier, slotID string, stay time.Duration) Admission {
	t.Helper()
	adm, err := s.Submit(Request{OccupantID: occupantID, Tier: tier, SlotID: slotID, Duration: stay})
	require.NoError(t, err)
	return adm
}
