package models

import (
	"net/mail"
	"strings"
	"time"

	"github.com/onlinebus/booking-backend/pkg/fare"
	"github.com/onlinebus/booking-backend/pkg/validator"
)

// BookingStatus represents the state of a seat booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking is one seat on one bus on one travel date
type Booking struct {
	ID              string        `json:"id" db:"id"`
	BusID           string        `json:"bus_id" db:"bus_id"`
	TravelDate      Date          `json:"travel_date" db:"travel_date"`
	SeatNumber      string        `json:"seat_number" db:"seat_number"`
	SeatType        string        `json:"seat_type" db:"seat_type"`
	Fare            float64       `json:"fare" db:"fare"`
	FareMode        string        `json:"fare_mode" db:"fare_mode"`
	PassengerName   string        `json:"passenger_name" db:"passenger_name"`
	PassengerAge    int           `json:"passenger_age" db:"passenger_age"`
	PassengerMobile string        `json:"passenger_mobile" db:"passenger_mobile"`
	PassengerEmail  string        `json:"passenger_email" db:"passenger_email"`
	FromStop        string        `json:"from_stop" db:"from_stop"`
	ToStop          string        `json:"to_stop" db:"to_stop"`
	CustomerEmail   string        `json:"customer_email" db:"customer_email"`
	Status          BookingStatus `json:"status" db:"status"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// BookingWithBus is a booking enriched with the bus name for listings
type BookingWithBus struct {
	Booking
	BusName   string `json:"bus_name" db:"bus_name"`
	BusNumber string `json:"bus_number" db:"bus_number"`
}

// PassengerInfo identifies the traveller occupying a seat
type PassengerInfo struct {
	Name   string `json:"name" binding:"required"`
	Age    int    `json:"age"`
	Mobile string `json:"mobile"`
	Email  string `json:"email"`
}

// Validate checks the passenger details
func (p *PassengerInfo) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrInvalidField("passenger.name", "is required")
	}
	if p.Age < 0 || p.Age > 120 {
		return ErrInvalidField("passenger.age", "must be between 0 and 120")
	}
	if p.Mobile != "" {
		mobile, err := validator.NewPhoneValidator().Validate(p.Mobile)
		if err != nil {
			return ErrInvalidField("passenger.mobile", err.Error())
		}
		p.Mobile = mobile
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return ErrInvalidField("passenger.email", "is not a valid email address")
		}
	}
	return nil
}

// BookSeatRequest books one seat. A non-nil Fare means the amount was captured
// upstream and is accepted only within the allowed bounds.
type BookSeatRequest struct {
	BusID         string        `json:"bus_id" binding:"required"`
	TravelDate    string        `json:"travel_date" binding:"required"`
	SeatNumber    string        `json:"seat_number" binding:"required"`
	RouteID       string        `json:"route_id,omitempty"`
	From          string        `json:"from" binding:"required"`
	To            string        `json:"to" binding:"required"`
	Passenger     PassengerInfo `json:"passenger" binding:"required"`
	Fare          *float64      `json:"fare,omitempty"`
	CustomerEmail string        `json:"-"`
}

// Validate checks the request and returns the parsed travel date
func (r *BookSeatRequest) Validate() (Date, error) {
	r.BusID = strings.TrimSpace(r.BusID)
	r.SeatNumber = strings.TrimSpace(r.SeatNumber)
	r.From = strings.TrimSpace(r.From)
	r.To = strings.TrimSpace(r.To)

	if r.BusID == "" {
		return Date{}, ErrInvalidField("bus_id", "is required")
	}
	if r.SeatNumber == "" {
		return Date{}, ErrInvalidField("seat_number", "is required")
	}
	if r.From == "" || r.To == "" {
		return Date{}, ErrInvalidInput("from and to stops are required")
	}
	if r.Fare != nil && *r.Fare <= 0 {
		return Date{}, ErrInvalidField("fare", "must be positive")
	}
	if err := r.Passenger.Validate(); err != nil {
		return Date{}, err
	}
	return ParseDate(r.TravelDate)
}

// FareMode returns how the fare of this booking is determined
func (r *BookSeatRequest) FareMode() fare.Mode {
	if r.Fare != nil {
		return fare.ClientSuppliedFare{Amount: *r.Fare}
	}
	return fare.ComputedFare{}
}

// BookSeatResponse is returned after a confirmed booking
type BookSeatResponse struct {
	BookingID  string        `json:"booking_id"`
	SeatNumber string        `json:"seat_number"`
	Fare       float64       `json:"fare"`
	Status     BookingStatus `json:"status"`
}

// SeatSelection pairs a seat with its passenger in a multi-seat booking
type SeatSelection struct {
	SeatNumber string        `json:"seat_number" binding:"required"`
	Passenger  PassengerInfo `json:"passenger" binding:"required"`
	Fare       *float64      `json:"fare,omitempty"`
}

// BookSeatsRequest books several seats on the same bus, date and stops
type BookSeatsRequest struct {
	BusID         string          `json:"bus_id" binding:"required"`
	TravelDate    string          `json:"travel_date" binding:"required"`
	RouteID       string          `json:"route_id,omitempty"`
	From          string          `json:"from" binding:"required"`
	To            string          `json:"to" binding:"required"`
	Seats         []SeatSelection `json:"seats" binding:"required"`
	CustomerEmail string          `json:"-"`
}

// Validate checks the seat list for emptiness and duplicates
func (r *BookSeatsRequest) Validate() error {
	if len(r.Seats) == 0 {
		return ErrInvalidField("seats", "at least one seat is required")
	}
	seen := make(map[string]struct{}, len(r.Seats))
	for _, s := range r.Seats {
		key := strings.ToLower(strings.TrimSpace(s.SeatNumber))
		if _, dup := seen[key]; dup {
			return ErrInvalidInput("duplicate seat " + s.SeatNumber)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Single expands one selection into a single-seat request
func (r *BookSeatsRequest) Single(s SeatSelection) BookSeatRequest {
	return BookSeatRequest{
		BusID:         r.BusID,
		TravelDate:    r.TravelDate,
		SeatNumber:    s.SeatNumber,
		RouteID:       r.RouteID,
		From:          r.From,
		To:            r.To,
		Passenger:     s.Passenger,
		Fare:          s.Fare,
		CustomerEmail: r.CustomerEmail,
	}
}

// BookSeatsResponse lists the seats booked together
type BookSeatsResponse struct {
	Bookings  []BookSeatResponse `json:"bookings"`
	TotalFare float64            `json:"total_fare"`
}

// FinalizeBookingRequest asks for the ticket of already created bookings
type FinalizeBookingRequest struct {
	CustomerEmail string   `json:"email"` // defaults to the caller; another customer needs admin or the bus agent
	BusID         string   `json:"bus_id" binding:"required"`
	TravelDate    string   `json:"travel_date" binding:"required"`
	SeatNumbers   []string `json:"seat_numbers" binding:"required"`
}

// Validate checks required fields and returns the parsed date
func (r *FinalizeBookingRequest) Validate() (Date, error) {
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	if r.CustomerEmail == "" {
		return Date{}, ErrInvalidField("email", "is required")
	}
	if strings.TrimSpace(r.BusID) == "" {
		return Date{}, ErrInvalidField("bus_id", "is required")
	}
	if len(r.SeatNumbers) == 0 {
		return Date{}, ErrInvalidField("seat_numbers", "at least one seat is required")
	}
	return ParseDate(r.TravelDate)
}

// FinalizeBookingResult reports the bookings covered by the ticket and
// whether the ticket reached the customer
type FinalizeBookingResult struct {
	Bookings        []Booking `json:"bookings"`
	TotalFare       float64   `json:"total_fare"`
	TicketDelivered bool      `json:"ticket_delivered"`
	TicketURL       string    `json:"ticket_url,omitempty"`
	DeliveryError   string    `json:"delivery_error,omitempty"`
}
