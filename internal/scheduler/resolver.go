package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Run is the resolver loop. It returns when ctx is cancelled and stops every pending timer.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stopTimers()
	s.log.Info().Dur("batch_window", s.cfg.BatchWindow).Bool("reset_when_idle", s.cfg.ResetWhenIdle).Msg("resolver started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("resolver shutting down")
			return ctx.Err()
		case first := <-s.events:
			batch, err := s.collect(ctx, first)
			if err != nil {
				s.draining.Store(false)
				return err
			}
			s.resolveBatch(ctx, batch)
			s.draining.Store(false)
		}
	}
}

// collect keeps the batch window open, then drains whatever else is queued.
func (s *Scheduler) collect(ctx context.Context, first PendingEvent) ([]PendingEvent, error) {
	s.draining.Store(true)
	batch := []PendingEvent{first}

	window := time.NewTimer(s.cfg.BatchWindow)
	defer window.Stop()

	for {
		select {
		case ev := <-s.events:
			batch = append(batch, ev)
		case <-window.C:
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					return batch, nil
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// sortEvents orders by tier priority, then scheduled end, then arrival.
func sortEvents(batch []PendingEvent) {
	sort.SliceStable(batch, func(i, j int) bool {
		a, b := batch[i], batch[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.ScheduledEnd.Equal(b.ScheduledEnd) {
			return a.ScheduledEnd.Before(b.ScheduledEnd)
		}
		return a.Seq < b.Seq
	})
}

func (s *Scheduler) resolveBatch(ctx context.Context, batch []PendingEvent) {
	sortEvents(batch)
	s.log.Debug().Int("events", len(batch)).Msg("resolving batch")
	for _, ev := range batch {
		if ctx.Err() != nil {
			return
		}
		s.resolveEvent(ctx, ev)
	}
}

// resolveEvent handles one expiry in isolation; a failure here never reaches other occupants.
func (s *Scheduler) resolveEvent(ctx context.Context, ev PendingEvent) {
	occ := ev.Occupancy
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("occupant", occ.OccupantID()).Interface("panic", r).Msg("event resolution aborted")
			s.rearmAfterFailure(occ)
		}
	}()

	occupantID, slotID, ok := s.claim(ev)
	if !ok {
		s.observer.StaleDropped(occ.Tier())
		s.log.Debug().Str("occupant", occ.OccupantID()).Msg("dropping stale expiry")
		return
	}

	decision := s.decide(ctx, occupantID, slotID)
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(ev) {
		return
	}

	if decision.Action == ActionExtend {
		s.extendLocked(occ, decision.Extra)
		return
	}
	if err := s.releaseLocked(occ); err != nil {
		s.log.Error().Err(err).Str("occupant", occupantID).Str("slot", slotID).Msg("release aborted")
	}
}

// claim stops the timer of a live expiry so the occupant is only asked once.
func (s *Scheduler) claim(ev PendingEvent) (occupantID, slotID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	occ := ev.Occupancy
	if s.staleLocked(ev) {
		return "", "", false
	}
	if t, ok := s.timers[occ.ID]; ok {
		t.Stop()
		delete(s.timers, occ.ID)
	}
	return occ.OccupantID(), occ.SlotID, true
}

// rearmAfterFailure gives a still bound occupancy without a timer a new expiry
// one batch window out, so an aborted resolution is retried instead of holding the slot.
func (s *Scheduler) rearmAfterFailure(occ *Occupancy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if occ.completed || s.active[occ.OccupantID()] != occ {
		return
	}
	if _, ok := s.timers[occ.ID]; ok {
		return
	}
	occ.generation++
	s.armLocked(occ, s.cfg.BatchWindow)
	s.log.Warn().Str("occupant", occ.OccupantID()).Dur("retry_in", s.cfg.BatchWindow).Msg("expiry re-armed after failure")
}

func (s *Scheduler) staleLocked(ev PendingEvent) bool {
	return ev.Occupancy.completed || ev.Generation != ev.Occupancy.generation
}

// decide asks the decision source once; unusable answers are asked again up to the attempt limit.
func (s *Scheduler) decide(ctx context.Context, occupantID, slotID string) Decision {
	for attempt := 1; attempt <= s.cfg.DecisionAttempts; attempt++ {
		d, err := s.ask(ctx, occupantID, slotID)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.log.Warn().Err(err).Str("occupant", occupantID).Msg("decision failed, releasing")
			}
			return Release()
		}
		if d.Action == ActionExtend && d.Extra <= 0 {
			s.log.Warn().Str("occupant", occupantID).Dur("extra", d.Extra).Int("attempt", attempt).Msg("extension must be positive")
			continue
		}
		return d
	}
	return Release()
}

// ask turns a panicking decision source into an error, which releases the occupant.
func (s *Scheduler) ask(ctx context.Context, occupantID, slotID string) (d Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decision source panicked: %v", r)
		}
	}()
	return s.decisions.AskExtendOrRelease(ctx, occupantID, slotID)
}

// extendLocked keeps the binding and re-arms the timer for the extra time.
func (s *Scheduler) extendLocked(occ *Occupancy, extra time.Duration) {
	occ.ScheduledEnd = s.now().Add(extra)
	occ.Extensions++
	occ.generation++
	s.armLocked(occ, extra)

	s.observer.Extended(occ.Tier())
	s.recordLocked(EntryExtended, occ)
	s.log.Info().Str("occupant", occ.OccupantID()).Str("slot", occ.SlotID).Dur("extra", extra).Time("until", occ.ScheduledEnd).Msg("stay extended")
}

// releaseLocked vacates the slot, hands it to the next waiter and resets the cycle when everyone is done.
func (s *Scheduler) releaseLocked(occ *Occupancy) error {
	if cur, ok := s.table.Lookup(occ.SlotID); ok && cur != occ {
		return &AlreadyOccupiedError{SlotID: occ.SlotID, OccupantID: cur.OccupantID()}
	}
	occ.completed = true
	if _, err := s.table.Release(occ.SlotID); err != nil {
		return err
	}
	delete(s.active, occ.OccupantID())
	if t, ok := s.timers[occ.ID]; ok {
		t.Stop()
		delete(s.timers, occ.ID)
	}

	s.movement.OnReleased(occ.OccupantID())
	s.observer.Released(occ.Tier())
	s.recordLocked(EntryReleased, occ)
	s.log.Info().Str("occupant", occ.OccupantID()).Str("slot", occ.SlotID).Msg("occupant left slot")

	s.onSlotFreed(occ.Tier(), occ.SlotID)
	s.publishStatusLocked()

	if s.cfg.ResetWhenIdle && s.allCompletedLocked() {
		s.resetLocked()
	}
	return nil
}
