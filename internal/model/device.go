package model

import (
	"time"

	"tolppa-client/internal/timewindow"
)

// Reservation is a scheduled heating window as the reservation service
// reports it. Dates and times are separate "DD.MM.YYYY" / "HH:mm" strings.
type Reservation struct {
	DateStart string `json:"dateStart"`
	TimeStart string `json:"timeStart"`
	DateEnd   string `json:"dateEnd"`
	TimeEnd   string `json:"timeEnd"`
}

// Span parses the reservation into a comparable interval in loc.
func (r Reservation) Span(loc *time.Location) (timewindow.Span, error) {
	return timewindow.NewSpan(r.DateStart, r.TimeStart, r.DateEnd, r.TimeEnd, loc)
}

// DeviceStatus is one snapshot of the heater as returned by the gateway.
type DeviceStatus struct {
	State        bool          `json:"state"`
	LicensePlate string        `json:"licensePlate"`
	Temperature  float64       `json:"temperature"`
	Consumption  float64       `json:"consumption"`
	Reservations []Reservation `json:"reservations"`
}

// Equal reports whether two snapshots carry the same values.
func (d DeviceStatus) Equal(o DeviceStatus) bool {
	if d.State != o.State || d.LicensePlate != o.LicensePlate ||
		d.Temperature != o.Temperature || d.Consumption != o.Consumption ||
		len(d.Reservations) != len(o.Reservations) {
		return false
	}
	for i := range d.Reservations {
		if d.Reservations[i] != o.Reservations[i] {
			return false
		}
	}
	return true
}

// Phase tags which variant of Status is populated.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
	PhaseReady   Phase = "ready"
)

// Status is the engine's view of the device: loading, errored, or ready
// with a snapshot. Device is non-nil only in PhaseReady.
type Status struct {
	Phase  Phase         `json:"phase"`
	Device *DeviceStatus `json:"device,omitempty"`
}

// Loading returns the "not yet fetched" status.
func Loading() Status { return Status{Phase: PhaseLoading} }

// Errored returns the error sentinel status.
func Errored() Status { return Status{Phase: PhaseError} }

// Ready wraps a fetched snapshot.
func Ready(d DeviceStatus) Status { return Status{Phase: PhaseReady, Device: &d} }

// Severity of a user-facing message.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Message is the single transient notice shown to the user.
type Message struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// Credential is the persisted session state.
type Credential struct {
	Token    string
	Email    string
	Password string
}

// Authenticated reports whether a token is present.
func (c Credential) Authenticated() bool {
	return c.Token != ""
}

// HasDelegated reports whether email and password are stored for re-login.
func (c Credential) HasDelegated() bool {
	return c.Email != "" && c.Password != ""
}
