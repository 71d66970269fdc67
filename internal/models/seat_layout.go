package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SeatType distinguishes seater and sleeper berths
type SeatType string

const (
	SeatTypeSeater  SeatType = "seater"
	SeatTypeSleeper SeatType = "sleeper"
)

// Deck is the level a seat is on
type Deck string

const (
	DeckLower Deck = "lower"
	DeckUpper Deck = "upper"
)

// Seat is one bookable position in a bus. Price is the end-to-end fare.
type Seat struct {
	SeatNumber string   `json:"seat_number"`
	Type       SeatType `json:"type"`
	Deck       Deck     `json:"deck"`
	Price      float64  `json:"price"`
}

// Seats is stored as a JSONB array
type Seats []Seat

// Value implements the driver.Valuer interface
func (s Seats) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (s *Seats) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Seats", src)
	}
	return json.Unmarshal(data, s)
}

// SeatLayout is the seat map of one bus
type SeatLayout struct {
	ID        string    `json:"id" db:"id"`
	BusID     string    `json:"bus_id" db:"bus_id"`
	Seats     Seats     `json:"seats" db:"seats"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FindSeat looks a seat up by number, ignoring case
func (l *SeatLayout) FindSeat(seatNumber string) (Seat, bool) {
	seatNumber = strings.TrimSpace(seatNumber)
	for _, seat := range l.Seats {
		if strings.EqualFold(seat.SeatNumber, seatNumber) {
			return seat, true
		}
	}
	return Seat{}, false
}

// Prices returns the base price of every seat
func (l *SeatLayout) Prices() []float64 {
	prices := make([]float64, 0, len(l.Seats))
	for _, seat := range l.Seats {
		prices = append(prices, seat.Price)
	}
	return prices
}

// SaveSeatLayoutRequest replaces the seat map of a bus
type SaveSeatLayoutRequest struct {
	Seats []Seat `json:"seats" binding:"required"`
}

// Validate normalizes seats and enforces unique seat numbers per bus
func (r *SaveSeatLayoutRequest) Validate() error {
	if len(r.Seats) == 0 {
		return ErrInvalidField("seats", "at least one seat is required")
	}

	seen := make(map[string]struct{}, len(r.Seats))
	for i := range r.Seats {
		seat := &r.Seats[i]
		seat.SeatNumber = strings.ToUpper(strings.TrimSpace(seat.SeatNumber))
		if seat.SeatNumber == "" {
			return ErrInvalidInput(fmt.Sprintf("seat %d: seat_number is required", i+1))
		}
		key := strings.ToLower(seat.SeatNumber)
		if _, dup := seen[key]; dup {
			return ErrInvalidInput(fmt.Sprintf("duplicate seat number %s", seat.SeatNumber))
		}
		seen[key] = struct{}{}

		switch SeatType(strings.ToLower(string(seat.Type))) {
		case SeatTypeSeater, "":
			seat.Type = SeatTypeSeater
		case SeatTypeSleeper:
			seat.Type = SeatTypeSleeper
		default:
			return ErrInvalidInput(fmt.Sprintf("seat %s: type must be seater or sleeper", seat.SeatNumber))
		}

		switch Deck(strings.ToLower(string(seat.Deck))) {
		case DeckLower, "":
			seat.Deck = DeckLower
		case DeckUpper:
			seat.Deck = DeckUpper
		default:
			return ErrInvalidInput(fmt.Sprintf("seat %s: deck must be lower or upper", seat.SeatNumber))
		}

		if seat.Price <= 0 {
			return ErrInvalidInput(fmt.Sprintf("seat %s: price must be positive", seat.SeatNumber))
		}
	}
	return nil
}
