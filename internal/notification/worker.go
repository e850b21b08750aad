package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"parking-scheduler-backend/internal/model"
)

// Sender delivers one encrypted push message.
type Sender interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

type pushSender struct{}

func (pushSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, payload, sub, options)
}

// Job announces a slot that became free with nobody waiting for it.
type Job struct {
	SlotID string
	TierID int
}

// FreeSlotMessage is the JSON body the service worker receives.
type FreeSlotMessage struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	SlotID string `json:"slot"`
	TierID int    `json:"tier"`
}

// WorkerPool tells tier subscribers about free slots.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
	log     zerolog.Logger
}

func NewWorkerPool(size, buffer int, db *gorm.DB, webpushOptions *webpush.Options, log zerolog.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if buffer < size {
		buffer = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, buffer),
		db:      db,
		webpush: webpushOptions,
		sender:  pushSender{},
		log:     log,
	}
}

// Start launches the workers; they stop with ctx.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With().Int("worker", id).Logger()
	for {
		select {
		case job := <-wp.jobs:
			if err := wp.announce(ctx, job); err != nil {
				log.Error().Err(err).Str("slot", job.SlotID).Int("tier", job.TierID).Msg("free slot announcement failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Dispatch hands a job to the pool. It never blocks; a full queue drops the job.
func (wp *WorkerPool) Dispatch(job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		wp.log.Warn().Str("slot", job.SlotID).Msg("notification queue full, dropping job")
		return false
	}
}

// announce pushes a FreeSlotMessage to every subscriber of the job's tier.
func (wp *WorkerPool) announce(ctx context.Context, job Job) error {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_tier_mapping stm ON stm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("stm.tier_id = ?", job.TierID).
		Find(&subscriptions).Error
	if err != nil {
		return fmt.Errorf("fetching subscribers of tier %d: %w", job.TierID, err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(wp.message(ctx, job))
	if err != nil {
		return err
	}

	wp.log.Info().Int("count", len(subscriptions)).Str("slot", job.SlotID).Msg("announcing free slot")
	for _, sub := range subscriptions {
		wp.push(ctx, sub, payload)
	}
	return nil
}

func (wp *WorkerPool) message(ctx context.Context, job Job) FreeSlotMessage {
	label := fmt.Sprintf("tier %d", job.TierID)
	var tier model.Tier
	if err := wp.db.WithContext(ctx).Select("name").Where("id = ?", job.TierID).First(&tier).Error; err != nil {
		wp.log.Warn().Err(err).Int("tier", job.TierID).Msg("tier lookup failed")
	} else if tier.Name != "" {
		label = tier.Name
	}
	return FreeSlotMessage{
		Title:  fmt.Sprintf("Slot %s is free", job.SlotID),
		Body:   fmt.Sprintf("Parking slot %s on %s is free", job.SlotID, label),
		SlotID: job.SlotID,
		TierID: job.TierID,
	}
}

// push delivers to one subscriber and forgets subscriptions the push service no longer knows.
func (wp *WorkerPool) push(ctx context.Context, sub model.PushSubscription, payload []byte) {
	resp, err := wp.sender.Send(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256DH, Auth: sub.Auth},
	}, wp.webpush)
	if err != nil {
		wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("push failed")
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusGone, http.StatusNotFound:
		wp.log.Info().Str("endpoint", sub.Endpoint).Int("status", resp.StatusCode).Msg("subscription expired, deleting")
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("deleting expired subscription failed")
		}
	}
}
