// Package mqtt mirrors the device status to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"tolppa-client/internal/logging"
	"tolppa-client/internal/model"
	"tolppa-client/internal/view"
)

// Publisher publishes status snapshots.
type Publisher interface {
	// Publish sends a retained snapshot to the broker.
	Publish(payload []byte) error

	// Close disconnects from the broker.
	Close() error
}

// Payload is the retained message body.
type Payload struct {
	Timestamp    string             `json:"timestamp"`
	State        string             `json:"state"`
	LicensePlate string             `json:"licensePlate"`
	Temperature  float64            `json:"temperature"`
	Consumption  float64            `json:"consumption"`
	Timers       int                `json:"timers"`
	ActiveTimer  *model.Reservation `json:"activeTimer,omitempty"`
}

// FormatPayload creates the JSON payload for a snapshot taken at now.
func FormatPayload(d model.DeviceStatus, now time.Time) ([]byte, error) {
	p := Payload{
		Timestamp:    now.UTC().Format(time.RFC3339),
		State:        "OFF",
		LicensePlate: d.LicensePlate,
		Temperature:  d.Temperature,
		Consumption:  d.Consumption,
		Timers:       len(d.Reservations),
	}
	if d.State {
		p.State = "ON"
	}
	if active, ok := view.ActiveTimer(d.Reservations, now); ok {
		p.ActiveTimer = &active
	}
	return json.Marshal(p)
}

// Bridge publishes every changed snapshot. Only the latest pending snapshot
// is kept, so a slow broker never holds up polling.
type Bridge struct {
	pub     Publisher
	now     func() time.Time
	pending chan model.DeviceStatus
	log     zerolog.Logger
}

// NewBridge creates a Bridge. Call Run to start publishing.
func NewBridge(pub Publisher) *Bridge {
	return &Bridge{
		pub:     pub,
		now:     time.Now,
		pending: make(chan model.DeviceStatus, 1),
		log:     logging.Component("mqtt"),
	}
}

// OnStatus queues next unless it equals prev.
func (b *Bridge) OnStatus(_ context.Context, prev *model.DeviceStatus, next model.DeviceStatus) {
	if prev != nil && prev.Equal(next) {
		return
	}
	for {
		select {
		case b.pending <- next:
			return
		default:
		}
		// Replace the stale snapshot.
		select {
		case <-b.pending:
		default:
		}
	}
}

// Run publishes queued snapshots until ctx is done, then closes the
// publisher.
func (b *Bridge) Run(ctx context.Context) {
	defer func() {
		if err := b.pub.Close(); err != nil {
			b.log.Warn().Err(err).Msg("failed to close publisher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-b.pending:
			payload, err := FormatPayload(d, b.now())
			if err != nil {
				b.log.Error().Err(err).Msg("failed to format payload")
				continue
			}
			if err := b.pub.Publish(payload); err != nil {
				b.log.Warn().Err(err).Msg("failed to publish status")
			}
		}
	}
}
