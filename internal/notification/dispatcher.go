package notification

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"parking-scheduler-backend/internal/scheduler"
	"parking-scheduler-backend/internal/store"
)

// SlotChecker reports whether a slot is still free.
type SlotChecker interface {
	IsFree(slotID string) bool
}

// Dispatcher records scheduler binding changes in the store, in order, and
// hands slots that stay free to the worker pool.
type Dispatcher struct {
	entries chan scheduler.JournalEntry
	store   store.Store
	pool    *WorkerPool
	log     zerolog.Logger
}

func NewDispatcher(s store.Store, pool *WorkerPool, buffer int, log zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		entries: make(chan scheduler.JournalEntry, buffer),
		store:   s,
		pool:    pool,
		log:     log,
	}
}

// Record implements scheduler.Journal. A full buffer drops the entry.
func (d *Dispatcher) Record(e scheduler.JournalEntry) {
	select {
	case d.entries <- e:
	default:
		d.log.Warn().Str("kind", e.Kind.String()).Str("occupant", e.Binding.OccupantID).Msg("journal buffer full, dropping entry")
	}
}

// Run persists entries until ctx is cancelled, then flushes what is already buffered.
func (d *Dispatcher) Run(ctx context.Context, slots SlotChecker) {
	for {
		select {
		case e := <-d.entries:
			d.apply(ctx, e, slots)
		case <-ctx.Done():
			d.flush(slots)
			return
		}
	}
}

func (d *Dispatcher) flush(slots SlotChecker) {
	for {
		select {
		case e := <-d.entries:
			d.apply(context.Background(), e, slots)
		default:
			return
		}
	}
}

func (d *Dispatcher) apply(ctx context.Context, e scheduler.JournalEntry, slots SlotChecker) {
	b := e.Binding
	log := d.log.With().Str("kind", e.Kind.String()).Str("occupant", b.OccupantID).Str("slot", b.SlotID).Logger()

	switch e.Kind {
	case scheduler.EntryAssigned:
		err := d.store.RecordAssigned(ctx, store.AssignedItem{
			OccupancyID:  b.OccupancyID,
			OccupantID:   b.OccupantID,
			SlotID:       b.SlotID,
			TierID:       int(b.Tier),
			StartedAt:    b.StartedAt,
			ScheduledEnd: b.ScheduledEnd,
		})
		if err != nil {
			log.Error().Err(err).Msg("recording assignment failed")
		}

	case scheduler.EntryExtended:
		if err := d.store.RecordExtended(ctx, b.OccupantID, b.ScheduledEnd); err != nil {
			log.Error().Err(err).Msg("recording extension failed")
		}

	case scheduler.EntryReleased:
		released, err := d.store.RecordReleased(ctx, e.At, b.OccupantID)
		if err != nil && !errors.Is(err, store.ErrNoOpenOccupancy) {
			log.Error().Err(err).Msg("archiving release failed")
		}
		if err == nil {
			log.Debug().Time("period_start", released.PeriodStart).Msg("stay archived")
		}
		if d.pool != nil && slots != nil && slots.IsFree(b.SlotID) {
			d.pool.Dispatch(Job{SlotID: b.SlotID, TierID: int(b.Tier)})
		}

	case scheduler.EntryReset:
		n, err := d.store.CloseAll(ctx, e.At)
		if err != nil {
			log.Error().Err(err).Msg("closing open stays failed")
			return
		}
		log.Info().Int("cycle", e.Cycle).Int("archived", n).Msg("cycle closed")
	}
}
