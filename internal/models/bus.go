package models

import (
	"strings"
	"time"
)

// DeckTypeUpperLower marks a bus with two decks
const DeckTypeUpperLower = "Upper + Lower"

// Bus represents a bus operated by an agent
type Bus struct {
	ID           string    `json:"id" db:"id"`
	AgentID      string    `json:"agent_id" db:"agent_id"`
	OperatorName string    `json:"operator_name" db:"operator_name"`
	BusName      string    `json:"bus_name" db:"bus_name"`
	BusNumber    string    `json:"bus_number" db:"bus_number"`
	BusType      string    `json:"bus_type" db:"bus_type"`
	DeckType     string    `json:"deck_type" db:"deck_type"`
	SeaterSeats  int       `json:"seater_seats" db:"seater_seats"`
	SleeperSeats int       `json:"sleeper_seats" db:"sleeper_seats"`
	TotalSeats   int       `json:"total_seats" db:"total_seats"`
	HasUpperDeck bool      `json:"has_upper_deck" db:"has_upper_deck"`
	Source       string    `json:"source" db:"source"`
	Destination  string    `json:"destination" db:"destination"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// BusRequest is the payload to create or update a bus
type BusRequest struct {
	OperatorName string `json:"operator_name"`
	BusName      string `json:"bus_name" binding:"required"`
	BusNumber    string `json:"bus_number" binding:"required"`
	BusType      string `json:"bus_type" binding:"required"`
	DeckType     string `json:"deck_type"`
	SeaterSeats  int    `json:"seater_seats" binding:"gte=0"`
	SleeperSeats int    `json:"sleeper_seats" binding:"gte=0"`
	Source       string `json:"source"`
	Destination  string `json:"destination"`
}

// Validate checks the request
func (r *BusRequest) Validate() error {
	r.BusName = strings.TrimSpace(r.BusName)
	r.BusNumber = strings.ToUpper(strings.TrimSpace(r.BusNumber))
	if r.BusName == "" {
		return ErrInvalidField("bus_name", "is required")
	}
	if r.BusNumber == "" {
		return ErrInvalidField("bus_number", "is required")
	}
	if r.SeaterSeats < 0 || r.SleeperSeats < 0 {
		return ErrInvalidInput("seat counts must not be negative")
	}
	if r.SeaterSeats+r.SleeperSeats == 0 {
		return ErrInvalidInput("bus must have at least one seat")
	}
	return nil
}

// ApplyTo copies the request onto a bus and derives seat totals and deck flags
func (r *BusRequest) ApplyTo(bus *Bus) {
	bus.OperatorName = strings.TrimSpace(r.OperatorName)
	bus.BusName = r.BusName
	bus.BusNumber = r.BusNumber
	bus.BusType = strings.TrimSpace(r.BusType)
	bus.DeckType = strings.TrimSpace(r.DeckType)
	bus.SeaterSeats = r.SeaterSeats
	bus.SleeperSeats = r.SleeperSeats
	bus.TotalSeats = r.SeaterSeats + r.SleeperSeats
	bus.HasUpperDeck = strings.EqualFold(bus.DeckType, DeckTypeUpperLower)
	bus.Source = strings.TrimSpace(r.Source)
	bus.Destination = strings.TrimSpace(r.Destination)
}
