package services

import (
	"context"
	"strings"

	"github.com/onlinebus/booking-backend/internal/models"
)

// SeatGuard answers point-in-time seat availability questions. It does not
// reserve anything; uniqueness is enforced by BookingStore.InsertConfirmed.
type SeatGuard struct {
	bookings BookingStore
}

// NewSeatGuard creates a new SeatGuard
func NewSeatGuard(bookings BookingStore) *SeatGuard {
	return &SeatGuard{bookings: bookings}
}

// IsBooked reports whether a confirmed booking holds the seat
func (g *SeatGuard) IsBooked(ctx context.Context, busID string, date models.Date, seatNumber string) (bool, error) {
	return g.bookings.IsSeatBooked(ctx, busID, date, strings.TrimSpace(seatNumber))
}

// BookedSeats lists the booked seat numbers for a bus on a date
func (g *SeatGuard) BookedSeats(ctx context.Context, busID string, date models.Date) ([]string, error) {
	seats, err := g.bookings.BookedSeatNumbers(ctx, busID, date)
	if err != nil {
		return nil, err
	}
	if seats == nil {
		seats = []string{}
	}
	return seats, nil
}
