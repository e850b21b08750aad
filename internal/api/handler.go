package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"parking-scheduler-backend/internal/decision"
	"parking-scheduler-backend/internal/scheduler"
	"parking-scheduler-backend/internal/store"
)

// Scheduler is the part of *scheduler.Scheduler the API needs.
type Scheduler interface {
	Submit(req scheduler.Request) (scheduler.Admission, error)
	Snapshot() scheduler.Snapshot
	Catalog() *scheduler.Catalog
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	sched     Scheduler
	store     store.Store
	webpush   *webpush.Options
	decisions *decision.Remote
	unit      time.Duration
}

// NewHandler creates a new API handler. decisions may be nil when answers
// do not come from API clients. unit is the length of one requested minute.
func NewHandler(sched Scheduler, s store.Store, webpushOptions *webpush.Options, decisions *decision.Remote, unit time.Duration) *Handler {
	if unit <= 0 {
		unit = time.Minute
	}
	return &Handler{
		sched:     sched,
		store:     s,
		webpush:   webpushOptions,
		decisions: decisions,
		unit:      unit,
	}
}
