package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config tunes the resolver loop.
type Config struct {
	// BatchWindow is how long the resolver keeps collecting events after the first one arrives.
	BatchWindow time.Duration
	// ResetWhenIdle clears queues and frees every slot once all occupants have completed.
	ResetWhenIdle bool
	// EventBuffer sizes the timer channel. Defaults to the number of slots.
	EventBuffer int
	// DecisionAttempts bounds how often an unusable answer is asked again before releasing.
	DecisionAttempts int
}

// Options wires the collaborators. Nil members fall back to no-ops;
// a nil DecisionSource releases every expired occupant.
type Options struct {
	Movement  MovementSink
	Decisions DecisionSource
	Status    StatusSink
	Observer  Observer
	Journal   Journal
	Logger    *zerolog.Logger
	Now       func() time.Time
}

// Admission is the outcome of a successful Submit.
type Admission struct {
	OccupantID   string
	Seq          uint64
	SlotID       string
	Queued       bool
	Position     int
	ScheduledEnd time.Time
}

// Scheduler owns all slot state. The table, queues and occupancies
// are only touched while mu is held.
type Scheduler struct {
	cfg     Config
	catalog *Catalog

	mu                 sync.Mutex
	table              *Table
	queues             map[Tier]*WaitingQueue
	active             map[string]*Occupancy
	timers             map[string]*expiryTimer
	seq                uint64
	admittedSinceReset int
	cycle              int

	draining atomic.Bool
	events   chan PendingEvent

	lifetime   context.Context
	stopTimers context.CancelFunc

	movement  MovementSink
	decisions DecisionSource
	status    StatusSink
	observer  Observer
	journal   Journal
	log       zerolog.Logger
	now       func() time.Time
}

func New(catalog *Catalog, cfg Config, opts Options) *Scheduler {
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = catalog.Len() + 1
	}
	if cfg.DecisionAttempts <= 0 {
		cfg.DecisionAttempts = 3
	}

	s := &Scheduler{
		cfg:       cfg,
		catalog:   catalog,
		table:     NewTable(catalog),
		queues:    make(map[Tier]*WaitingQueue),
		active:    make(map[string]*Occupancy),
		timers:    make(map[string]*expiryTimer),
		events:    make(chan PendingEvent, cfg.EventBuffer),
		movement:  opts.Movement,
		decisions: opts.Decisions,
		status:    opts.Status,
		observer:  opts.Observer,
		journal:   opts.Journal,
		now:       opts.Now,
		log:       zerolog.Nop(),
	}
	s.lifetime, s.stopTimers = context.WithCancel(context.Background())

	for _, t := range catalog.Tiers() {
		if rule, _ := catalog.Rule(t); rule.Queueing {
			s.queues[t] = &WaitingQueue{}
		}
	}

	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "scheduler").Logger()
	}
	if s.movement == nil {
		s.movement = nopMovement{}
	}
	if s.decisions == nil {
		s.decisions = releaseAll{}
	}
	if s.status == nil {
		s.status = nopStatus{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.journal == nil {
		s.journal = nopJournal{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Scheduler) Catalog() *Catalog {
	return s.catalog
}

// Submit admits a request to a free slot, queues it on a queueing tier,
// or rejects it with an InvalidAdmissionError the caller can correct.
func (s *Scheduler) Submit(req Request) (Admission, error) {
	rule, ok := s.catalog.Rule(req.Tier)
	switch {
	case req.OccupantID == "":
		return Admission{}, invalidAdmission("", "occupant id is required")
	case !ok:
		return Admission{}, invalidAdmission(req.OccupantID, "unknown %s", req.Tier)
	case req.Duration <= 0:
		return Admission{}, invalidAdmission(req.OccupantID, "stay must be positive, got %s", req.Duration)
	case rule.MaxDuration > 0 && req.Duration > rule.MaxDuration:
		return Admission{}, invalidAdmission(req.OccupantID, "%s only accepts stays up to %s, got %s", rule.label(), rule.MaxDuration, req.Duration)
	case req.SlotID != "" && !s.catalog.IsValidSlotForTier(req.SlotID, req.Tier):
		return Admission{}, invalidAdmission(req.OccupantID, "slot %s is not part of %s", req.SlotID, rule.label())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.knownLocked(req.OccupantID) {
		return Admission{}, busy(req.OccupantID, "occupant already holds or awaits a slot")
	}

	slotID, free, err := s.pickSlotLocked(req, rule)
	if err != nil {
		return Admission{}, err
	}

	s.seq++
	req.Seq = s.seq

	if free {
		occ, err := s.admitLocked(req, slotID)
		if err != nil {
			s.log.Error().Err(err).Str("occupant", req.OccupantID).Str("slot", slotID).Msg("admission aborted")
			return Admission{}, err
		}
		return Admission{
			OccupantID:   req.OccupantID,
			Seq:          req.Seq,
			SlotID:       occ.SlotID,
			ScheduledEnd: occ.ScheduledEnd,
		}, nil
	}

	q := s.queues[req.Tier]
	q.Enqueue(req)
	s.observer.Queued(req.Tier)
	s.log.Info().Str("occupant", req.OccupantID).Str("tier", rule.label()).Int("position", q.Len()).Msg("no slot available, added to waiting queue")
	return Admission{OccupantID: req.OccupantID, Seq: req.Seq, Queued: true, Position: q.Len()}, nil
}

// pickSlotLocked finds a free slot for req. free=false with a nil error means queue it.
func (s *Scheduler) pickSlotLocked(req Request, rule TierRule) (slotID string, free bool, err error) {
	if q := s.queues[req.Tier]; q != nil && q.Len() > 0 {
		return "", false, nil
	}
	if req.SlotID != "" {
		if s.table.IsFree(req.SlotID) {
			return req.SlotID, true, nil
		}
		if !rule.Queueing {
			return "", false, busy(req.OccupantID, "slot %s is already occupied", req.SlotID)
		}
	}
	if id, ok := s.table.FirstFree(req.Tier); ok {
		return id, true, nil
	}
	if !rule.Queueing {
		return "", false, busy(req.OccupantID, "no free slot in %s", rule.label())
	}
	return "", false, nil
}

func (s *Scheduler) knownLocked(occupantID string) bool {
	if _, ok := s.active[occupantID]; ok {
		return true
	}
	for _, q := range s.queues {
		if q.Contains(occupantID) {
			return true
		}
	}
	return false
}

// admitLocked binds req to slotID and starts its timer. The stay is counted from now.
func (s *Scheduler) admitLocked(req Request, slotID string) (*Occupancy, error) {
	now := s.now()
	occ := &Occupancy{
		ID:           uuid.NewString(),
		Request:      req,
		StartedAt:    now,
		ScheduledEnd: now.Add(req.Duration),
		generation:   1,
	}
	if err := s.table.Occupy(slotID, occ); err != nil {
		return nil, err
	}

	s.active[req.OccupantID] = occ
	s.admittedSinceReset++
	s.armLocked(occ, req.Duration)

	s.movement.OnAssigned(req.OccupantID, slotID)
	s.observer.Admitted(req.Tier)
	s.recordLocked(EntryAssigned, occ)
	s.publishStatusLocked()
	s.log.Info().Str("occupant", req.OccupantID).Str("slot", slotID).Dur("stay", req.Duration).Msg("occupant moved to slot")
	return occ, nil
}

func (s *Scheduler) armLocked(occ *Occupancy, d time.Duration) {
	if old, ok := s.timers[occ.ID]; ok {
		old.Stop()
	}
	s.timers[occ.ID] = startExpiryTimer(s.lifetime, d, newPendingEvent(occ), s.events)
}

func (s *Scheduler) publishStatusLocked() {
	filled := s.table.Len()
	s.status.OnOccupancyChanged(filled, s.catalog.Len()-filled)
}

// IsFree reports whether the slot currently has no occupant.
func (s *Scheduler) IsFree(slotID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.IsFree(slotID)
}

// Waiting returns the number of queued requests in a tier.
func (s *Scheduler) Waiting(t Tier) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q := s.queues[t]; q != nil {
		return q.Len()
	}
	return 0
}

// Cycle counts completed reset cycles.
func (s *Scheduler) Cycle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
)

func (st State) String() string {
	switch st {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "idle"
	}
}

func (s *Scheduler) State() State {
	if s.draining.Load() {
		return StateDraining
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.active) > 0 {
		return StateRunning
	}
	return StateIdle
}

// TierStatus summarises one tier.
type TierStatus struct {
	Tier     Tier
	Name     string
	Queueing bool
	Occupied int
	Free     int
	Waiting  int
}

// Binding is a copy of one live occupancy.
type Binding struct {
	SlotID       string
	Tier         Tier
	OccupantID   string
	OccupancyID  string
	StartedAt    time.Time
	ScheduledEnd time.Time
	Extensions   int
}

type Snapshot struct {
	State    State
	Cycle    int
	Filled   int
	Empty    int
	Tiers    []TierStatus
	Bindings []Binding
	Waiting  map[Tier][]Request
}

// Snapshot copies the current state for reporting.
func (s *Scheduler) Snapshot() Snapshot {
	state := s.State()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:   state,
		Cycle:   s.cycle,
		Filled:  s.table.Len(),
		Empty:   s.catalog.Len() - s.table.Len(),
		Waiting: make(map[Tier][]Request, len(s.queues)),
	}
	for _, t := range s.catalog.Tiers() {
		rule, _ := s.catalog.Rule(t)
		ts := TierStatus{
			Tier:     t,
			Name:     rule.label(),
			Queueing: rule.Queueing,
			Occupied: s.table.CountOccupied(t),
			Free:     s.table.CountFree(t),
		}
		if q := s.queues[t]; q != nil {
			ts.Waiting = q.Len()
			snap.Waiting[t] = q.Snapshot()
		}
		snap.Tiers = append(snap.Tiers, ts)

		for _, slot := range s.catalog.byTier[t] {
			occ, ok := s.table.Lookup(slot.ID)
			if !ok {
				continue
			}
			snap.Bindings = append(snap.Bindings, bindingOf(occ))
		}
	}
	return snap
}

// Binding returns the live binding of an occupant.
func (s *Scheduler) Binding(occupantID string) (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	occ, ok := s.active[occupantID]
	if !ok {
		return Binding{}, false
	}
	return bindingOf(occ), true
}
