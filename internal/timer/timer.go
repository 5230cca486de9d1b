// Package timer turns timer form input into a gateway request.
package timer

import (
	"errors"
	"fmt"
	"time"

	"tolppa-client/internal/gateway"
	"tolppa-client/internal/timewindow"
)

// Heating duration bounds accepted by the device, in minutes.
const (
	MinDuration     = 15
	MaxDuration     = 200
	DefaultDuration = 60
)

var (
	ErrDuration = fmt.Errorf("duration must be between %d and %d minutes", MinDuration, MaxDuration)
	ErrDelay    = errors.New("delay must not be negative")
	ErrEndTime  = errors.New("end date and time are required in scheduled mode")
)

// Form is what the user fills in. In quick mode the car should be ready
// Delay+Duration minutes from now; otherwise at EndDate/EndTime.
type Form struct {
	Quick           bool   `json:"quick"`
	Duration        int    `json:"duration"`
	Delay           int    `json:"delay"`
	EndDate         string `json:"endDate"`
	EndTime         string `json:"endTime"`
	OptimizeForCost bool   `json:"eco"`
}

// Build validates f and produces the request for token at now.
func Build(f Form, token string, now time.Time) (gateway.TimerRequest, error) {
	if f.Duration == 0 {
		f.Duration = DefaultDuration
	}
	if f.Duration < MinDuration || f.Duration > MaxDuration {
		return gateway.TimerRequest{}, ErrDuration
	}

	req := gateway.TimerRequest{
		Duration:        f.Duration,
		OptimizeForCost: f.OptimizeForCost,
		Token:           token,
	}

	if f.Quick {
		if f.Delay < 0 {
			return gateway.TimerRequest{}, ErrDelay
		}
		end := now.Add(time.Duration(f.Delay+f.Duration) * time.Minute)
		req.EndDate = timewindow.FormatDate(end)
		req.EndTime = timewindow.FormatClock(end)
		return req, nil
	}

	if f.EndDate == "" || f.EndTime == "" {
		return gateway.TimerRequest{}, ErrEndTime
	}
	end, err := timewindow.Parse(f.EndDate, f.EndTime, now.Location())
	if err != nil {
		return gateway.TimerRequest{}, fmt.Errorf("invalid end time: %w", err)
	}
	req.EndDate = timewindow.FormatDate(end)
	req.EndTime = timewindow.FormatClock(end)
	return req, nil
}

// FormatMinutes renders a duration the way the duration slider labels it:
// "45min" or "1h 15min".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
}
