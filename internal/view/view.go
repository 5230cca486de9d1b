// Package view derives presentation facts from the latest device status.
// Everything here is recomputed on each call; nothing is cached.
package view

import (
	"fmt"
	"time"

	"tolppa-client/internal/model"
	"tolppa-client/internal/timer"
)

// MaxTimers is how many timers the device holds at once.
const MaxTimers = 2

// ActiveTimer returns the first reservation whose [start, end) window
// contains now. Reservations that fail to parse never match.
func ActiveTimer(reservations []model.Reservation, now time.Time) (model.Reservation, bool) {
	for _, r := range reservations {
		span, err := r.Span(now.Location())
		if err != nil {
			continue
		}
		if span.Contains(now) {
			return r, true
		}
	}
	return model.Reservation{}, false
}

// HeatedMinutes is how long the active timer has been heating, floored to
// whole minutes. It is 0 when there is no active timer.
func HeatedMinutes(active *model.Reservation, now time.Time) int {
	if active == nil {
		return 0
	}
	span, err := active.Span(now.Location())
	if err != nil || !span.Contains(now) {
		return 0
	}
	return span.Elapsed(now)
}

// RemainingMinutes is the time left in r. ok is false unless now lies
// inside the window.
func RemainingMinutes(r model.Reservation, now time.Time) (minutes int, ok bool) {
	span, err := r.Span(now.Location())
	if err != nil || !span.Contains(now) {
		return 0, false
	}
	return span.Remaining(now), true
}

// DurationMinutes is the window length regardless of activity. Malformed
// or inverted windows have zero length.
func DurationMinutes(r model.Reservation, loc *time.Location) int {
	span, err := r.Span(loc)
	if err != nil {
		return 0
	}
	return span.Minutes()
}

// ReservationView is one row of the reservation list.
type ReservationView struct {
	model.Reservation
	Label            string `json:"label"`
	DurationMinutes  int    `json:"durationMinutes"`
	DurationText     string `json:"durationText"`
	Active           bool   `json:"active"`
	RemainingMinutes *int   `json:"remainingMinutes,omitempty"`
}

// View is everything a presentation layer needs to render the device card.
type View struct {
	Phase         model.Phase         `json:"phase"`
	Headline      string              `json:"headline"`
	Device        *model.DeviceStatus `json:"device,omitempty"`
	ActiveTimer   *model.Reservation  `json:"activeTimer,omitempty"`
	HeatedMinutes int                 `json:"heatedMinutes"`
	TimerCount    string              `json:"timerCount,omitempty"`
	Reservations  []ReservationView   `json:"reservations"`
}

// Build derives the view for status at now.
func Build(status model.Status, now time.Time) View {
	v := View{Phase: status.Phase, Reservations: []ReservationView{}}

	switch {
	case status.Phase == model.PhaseError:
		v.Headline = "Tolppa status is unknown"
		return v
	case status.Phase != model.PhaseReady || status.Device == nil:
		v.Phase = model.PhaseLoading
		v.Headline = "Loading..."
		return v
	}

	d := status.Device
	v.Device = d
	if d.State {
		v.Headline = "Your tolppa is on!"
	} else {
		v.Headline = "Your tolppa is off!"
	}
	v.TimerCount = fmt.Sprintf("%d/%d timers", len(d.Reservations), MaxTimers)

	if active, ok := ActiveTimer(d.Reservations, now); ok {
		v.ActiveTimer = &active
		v.HeatedMinutes = HeatedMinutes(&active, now)
	}

	for _, r := range d.Reservations {
		minutes := DurationMinutes(r, now.Location())
		row := ReservationView{
			Reservation:     r,
			Label:           fmt.Sprintf("%s, %s-%s", r.DateStart, r.TimeStart, r.TimeEnd),
			DurationMinutes: minutes,
			DurationText:    fmt.Sprintf("%d minutes", minutes),
		}
		if left, ok := RemainingMinutes(r, now); ok {
			row.Active = true
			row.RemainingMinutes = &left
		}
		v.Reservations = append(v.Reservations, row)
	}
	return v
}

// Summary is a one-line rendering used by the CLI.
func (v View) Summary() string {
	if v.Device == nil {
		return v.Headline
	}
	s := fmt.Sprintf("%s %s %.1f°C, %s", v.Headline, v.Device.LicensePlate, v.Device.Temperature, v.TimerCount)
	if v.ActiveTimer != nil {
		s += fmt.Sprintf(" (heated for %s, %.0fW)", timer.FormatMinutes(v.HeatedMinutes), v.Device.Consumption)
	}
	return s
}
