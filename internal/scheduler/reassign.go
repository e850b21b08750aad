package scheduler

// onSlotFreed hands a just-freed slot to the oldest waiter of its tier.
// Called with mu held; starting the new timer does not block.
func (s *Scheduler) onSlotFreed(tier Tier, slotID string) {
	q := s.queues[tier]
	if q == nil {
		return
	}
	req, ok := q.DequeueNext()
	if !ok {
		s.log.Debug().Str("slot", slotID).Msg("slot stays free, nobody waiting")
		return
	}

	if _, err := s.admitLocked(req, slotID); err != nil {
		s.log.Error().Err(err).Str("occupant", req.OccupantID).Str("slot", slotID).Msg("reassignment aborted")
		return
	}
	s.log.Info().Str("occupant", req.OccupantID).Str("slot", slotID).Int("still_waiting", q.Len()).Msg("slot reassigned to next waiter")
}

// allCompletedLocked is true once a cycle admitted someone and nobody is left.
func (s *Scheduler) allCompletedLocked() bool {
	if s.admittedSinceReset == 0 || len(s.active) > 0 {
		return false
	}
	for _, q := range s.queues {
		if q.Len() > 0 {
			return false
		}
	}
	return true
}

// resetLocked restores the initial state: empty queues, every slot free.
func (s *Scheduler) resetLocked() {
	for _, q := range s.queues {
		q.clear()
	}
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.table.clear()
	s.active = make(map[string]*Occupancy)
	s.admittedSinceReset = 0
	s.cycle++

	s.observer.CycleReset()
	s.recordLocked(EntryReset, nil)
	s.publishStatusLocked()
	s.log.Info().Int("cycle", s.cycle).Msg("all occupants completed, restarting cycle")
}
