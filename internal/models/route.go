package models

import (
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/onlinebus/booking-backend/pkg/fare"
)

// Route is the ordered list of boarding points a bus serves
type Route struct {
	ID          string         `json:"id" db:"id"`
	BusID       string         `json:"bus_id" db:"bus_id"`
	Origin      string         `json:"origin" db:"origin"`
	Destination string         `json:"destination" db:"destination"`
	Stops       pq.StringArray `json:"stops" db:"stops"`
	Timing      string         `json:"timing" db:"timing"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// StopPath returns origin, stops and destination as one normalized path
func (r *Route) StopPath() fare.StopPath {
	return fare.NewStopPath(r.Origin, r.Stops, r.Destination)
}

// RouteRequest is the payload to create or update a route
type RouteRequest struct {
	BusID       string   `json:"bus_id" binding:"required"`
	Origin      string   `json:"origin" binding:"required"`
	Destination string   `json:"destination" binding:"required"`
	Stops       []string `json:"stops"`
	Timing      string   `json:"timing"`
}

// Validate trims names and drops empty stops
func (r *RouteRequest) Validate() error {
	r.Origin = strings.TrimSpace(r.Origin)
	r.Destination = strings.TrimSpace(r.Destination)
	if r.Origin == "" {
		return ErrInvalidField("origin", "is required")
	}
	if r.Destination == "" {
		return ErrInvalidField("destination", "is required")
	}
	if strings.EqualFold(r.Origin, r.Destination) {
		return ErrInvalidInput("origin and destination must differ")
	}

	stops := make([]string, 0, len(r.Stops))
	for _, s := range r.Stops {
		if s = strings.TrimSpace(s); s != "" {
			stops = append(stops, s)
		}
	}
	r.Stops = stops
	return nil
}

// ApplyTo copies the request onto a route
func (r *RouteRequest) ApplyTo(route *Route) {
	route.BusID = r.BusID
	route.Origin = r.Origin
	route.Destination = r.Destination
	route.Stops = pq.StringArray(r.Stops)
	route.Timing = strings.TrimSpace(r.Timing)
}
