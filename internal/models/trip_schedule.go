package models

import (
	"regexp"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// TripSchedule is one dated run of a bus along a route
type TripSchedule struct {
	ID            string    `json:"id" db:"id"`
	BusID         string    `json:"bus_id" db:"bus_id"`
	RouteID       string    `json:"route_id" db:"route_id"`
	TravelDate    Date      `json:"travel_date" db:"travel_date"`
	DepartureTime string    `json:"departure_time" db:"departure_time"` // HH:MM
	ArrivalTime   string    `json:"arrival_time" db:"arrival_time"`     // HH:MM
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// CreateTripScheduleRequest schedules a bus on a date.
// RouteID may be empty, in which case the bus's first route is used.
type CreateTripScheduleRequest struct {
	BusID         string `json:"bus_id" binding:"required"`
	RouteID       string `json:"route_id"`
	TravelDate    string `json:"travel_date" binding:"required"`
	DepartureTime string `json:"departure_time" binding:"required"`
	ArrivalTime   string `json:"arrival_time" binding:"required"`
}

// Validate checks date and clock formats
func (r *CreateTripScheduleRequest) Validate() (Date, error) {
	date, err := ParseDate(r.TravelDate)
	if err != nil {
		return Date{}, err
	}
	r.DepartureTime = strings.TrimSpace(r.DepartureTime)
	r.ArrivalTime = strings.TrimSpace(r.ArrivalTime)
	if !clockPattern.MatchString(r.DepartureTime) {
		return Date{}, ErrInvalidField("departure_time", "must be in HH:MM format")
	}
	if !clockPattern.MatchString(r.ArrivalTime) {
		return Date{}, ErrInvalidField("arrival_time", "must be in HH:MM format")
	}
	return date, nil
}
