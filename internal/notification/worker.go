// Package notification sends web push notifications when the heater turns on
// or off.
package notification

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"tolppa-client/internal/logging"
	"tolppa-client/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Event is a heater state change.
type Event struct {
	On           bool
	LicensePlate string
}

// Message is the notification text for e.
func (e Event) Message() string {
	if e.On {
		return "Your tolppa is on!"
	}
	return "Your tolppa is off!"
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     logging.Component("notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug().Int("worker", id).Msg("worker started")
	for {
		select {
		case ev := <-wp.jobs:
			wp.log.Debug().Int("worker", id).Bool("on", ev.On).Msg("processing state change")
			wp.broadcast(ctx, ev)
		case <-ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues an event. It never blocks; when the queue is full the
// event is dropped.
func (wp *WorkerPool) Dispatch(ev Event) bool {
	select {
	case wp.jobs <- ev:
		return true
	default:
		wp.log.Warn().Bool("on", ev.On).Msg("notification queue full; dropping event")
		return false
	}
}

// OnStatus dispatches an event when the heater state flips between two
// consecutive snapshots.
func (wp *WorkerPool) OnStatus(_ context.Context, prev *model.DeviceStatus, next model.DeviceStatus) {
	if prev == nil || prev.State == next.State {
		return
	}
	wp.Dispatch(Event{On: next.State, LicensePlate: next.LicensePlate})
}

func (wp *WorkerPool) broadcast(ctx context.Context, ev Event) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		wp.log.Error().Err(err).Msg("failed to fetch push subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.log.Info().Int("count", len(subscriptions)).Bool("on", ev.On).Str("plate", ev.LicensePlate).Msg("sending notifications")
	payload := []byte(ev.Message())
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to send notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired; deleting")
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
