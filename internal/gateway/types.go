package gateway

import "tolppa-client/internal/model"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Cookie string `json:"cookie"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// detailsResponse models the body of POST /details.
type detailsResponse struct {
	Reservations []model.Reservation `json:"reservations"`
	State        bool                `json:"state"`
	LicensePlate string              `json:"licensePlate"`
	Temperature  float64             `json:"temperature"`
	Consumption  float64             `json:"consumption"`
}

// TimerRequest is the body of POST /timer.
type TimerRequest struct {
	EndDate         string `json:"endDate"`
	EndTime         string `json:"endTime"`
	Duration        int    `json:"duration"`
	OptimizeForCost bool   `json:"eco"`
	Token           string `json:"token"`
}
