package scheduler

import (
	"context"
	"sync"
	"time"
)

// expiryTimer sleeps for one stay and posts a single event. It never touches scheduler state.
type expiryTimer struct {
	stop chan struct{}
	once sync.Once
}

func startExpiryTimer(ctx context.Context, d time.Duration, ev PendingEvent, out chan<- PendingEvent) *expiryTimer {
	t := &expiryTimer{stop: make(chan struct{})}
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-t.stop:
			return
		case <-ctx.Done():
			return
		}

		select {
		case out <- ev:
		case <-t.stop:
		case <-ctx.Done():
		}
	}()
	return t
}

// Stop abandons the timer. A fire already posted is left for the resolver to discard.
func (t *expiryTimer) Stop() {
	t.once.Do(func() { close(t.stop) })
}
