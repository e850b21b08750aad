package decision

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"parking-scheduler-backend/internal/scheduler"
)

// ErrNoQuestion is returned when answering an occupant nobody is waiting on.
var ErrNoQuestion = errors.New("no pending question for occupant")

// Question is an expiry waiting for an answer from an API client.
type Question struct {
	OccupantID string    `json:"occupantId"`
	SlotID     string    `json:"slotId"`
	AskedAt    time.Time `json:"askedAt"`
	Deadline   time.Time `json:"deadline"`
}

type pendingQuestion struct {
	Question
	answer chan scheduler.Decision
}

// Remote parks each question until Answer is called or the timeout elapses.
// Unanswered questions release the occupant.
type Remote struct {
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingQuestion
}

func NewRemote(timeout time.Duration, log zerolog.Logger) *Remote {
	return &Remote{
		timeout: timeout,
		log:     log,
		pending: make(map[string]*pendingQuestion),
	}
}

func (r *Remote) AskExtendOrRelease(ctx context.Context, occupantID, slotID string) (scheduler.Decision, error) {
	now := time.Now()
	q := &pendingQuestion{
		Question: Question{
			OccupantID: occupantID,
			SlotID:     slotID,
			AskedAt:    now,
			Deadline:   now.Add(r.timeout),
		},
		answer: make(chan scheduler.Decision, 1),
	}

	r.mu.Lock()
	r.pending[occupantID] = q
	r.mu.Unlock()
	defer r.forget(occupantID, q)

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case d := <-q.answer:
		return d, nil
	case <-timer.C:
		r.log.Info().Str("occupant", occupantID).Str("slot", slotID).Msg("no answer before deadline, releasing")
		return scheduler.Release(), nil
	case <-ctx.Done():
		return scheduler.Decision{}, ctx.Err()
	}
}

func (r *Remote) forget(occupantID string, q *pendingQuestion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[occupantID] == q {
		delete(r.pending, occupantID)
	}
}

// Answer resolves the pending question of an occupant.
func (r *Remote) Answer(occupantID string, d scheduler.Decision) error {
	r.mu.Lock()
	q, ok := r.pending[occupantID]
	if ok {
		delete(r.pending, occupantID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNoQuestion
	}
	q.answer <- d
	return nil
}

// Pending lists open questions, oldest first.
func (r *Remote) Pending() []Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Question, 0, len(r.pending))
	for _, q := range r.pending {
		out = append(out, q.Question)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AskedAt.Equal(out[j].AskedAt) {
			return out[i].OccupantID < out[j].OccupantID
		}
		return out[i].AskedAt.Before(out[j].AskedAt)
	})
	return out
}
