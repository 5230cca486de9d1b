package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tolppa-client/internal/model"
)

var heating = model.DeviceStatus{
	State:        true,
	LicensePlate: "ABC-123",
	Temperature:  -8.5,
	Consumption:  900,
	Reservations: []model.Reservation{
		{DateStart: "01.01.2024", TimeStart: "10:00", DateEnd: "01.01.2024", TimeEnd: "11:00"},
	},
}

func TestFormatPayload(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)

	raw, err := FormatPayload(heating, now)
	require.NoError(t, err)

	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "2024-01-01T10:30:00Z", p.Timestamp)
	assert.Equal(t, "ON", p.State)
	assert.Equal(t, "ABC-123", p.LicensePlate)
	assert.Equal(t, 1, p.Timers)
	require.NotNil(t, p.ActiveTimer)
	assert.Equal(t, "11:00", p.ActiveTimer.TimeEnd)

	raw, err = FormatPayload(model.DeviceStatus{}, now)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"2024-01-01T10:30:00Z","state":"OFF","licensePlate":"","temperature":0,"consumption":0,"timers":0}`, string(raw))
}

func TestBridge_PublishesChangesOnly(t *testing.T) {
	pub := NewFakePublisher()
	b := NewBridge(pub)
	b.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	b.OnStatus(ctx, nil, heating)
	require.Eventually(t, func() bool { return len(pub.Published()) == 1 }, time.Second, 5*time.Millisecond)

	same := heating
	b.OnStatus(ctx, &heating, same)

	off := heating
	off.State = false
	b.OnStatus(ctx, &heating, off)
	require.Eventually(t, func() bool { return len(pub.Published()) == 2 }, time.Second, 5*time.Millisecond)

	var p Payload
	require.NoError(t, json.Unmarshal(pub.Published()[1], &p))
	assert.Equal(t, "OFF", p.State)

	cancel()
	<-done
	assert.True(t, pub.IsClosed())
}

func TestBridge_KeepsLatestPending(t *testing.T) {
	b := NewBridge(NewFakePublisher())

	first := heating
	second := heating
	second.Temperature = 1
	b.OnStatus(context.Background(), nil, first)
	b.OnStatus(context.Background(), nil, second)

	require.Len(t, b.pending, 1)
	assert.Equal(t, 1.0, (<-b.pending).Temperature)
}
