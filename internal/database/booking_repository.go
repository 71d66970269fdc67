package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/onlinebus/booking-backend/internal/models"
)

const bookingColumns = `
	b.id, b.bus_id, b.travel_date, b.seat_number, b.seat_type, b.fare::float8 AS fare, b.fare_mode,
	b.passenger_name, b.passenger_age, b.passenger_mobile, b.passenger_email,
	b.from_stop, b.to_stop, b.customer_email, b.status, b.created_at`

// BookingRepository handles database operations for seat bookings
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// InsertConfirmed stores a CONFIRMED booking unless another confirmed booking
// already holds the same bus, date and seat. The check and the write are one
// statement backed by the uq_bookings_confirmed_seat partial index, so
// concurrent callers cannot both succeed. ErrSeatTaken is returned to the loser.
func (r *BookingRepository) InsertConfirmed(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, bus_id, travel_date, seat_number, seat_type, fare, fare_mode,
			passenger_name, passenger_age, passenger_mobile, passenger_email,
			from_stop, to_stop, customer_email, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'CONFIRMED'
		)
		ON CONFLICT (bus_id, travel_date, seat_number) WHERE status = 'CONFIRMED' DO NOTHING
		RETURNING status, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		booking.ID, booking.BusID, booking.TravelDate, booking.SeatNumber, booking.SeatType,
		booking.Fare, booking.FareMode,
		booking.PassengerName, booking.PassengerAge, booking.PassengerMobile, booking.PassengerEmail,
		booking.FromStop, booking.ToStop, booking.CustomerEmail,
	).Scan(&booking.Status, &booking.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return ErrSeatTaken
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// IsSeatBooked reports whether a confirmed booking holds the seat
func (r *BookingRepository) IsSeatBooked(ctx context.Context, busID string, date models.Date, seatNumber string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE bus_id = $1 AND travel_date = $2 AND UPPER(seat_number) = UPPER($3) AND status = 'CONFIRMED'
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, busID, date, seatNumber); err != nil {
		return false, fmt.Errorf("failed to check seat availability: %w", err)
	}
	return exists, nil
}

// BookedSeatNumbers lists the seats with a confirmed booking for a bus on a date
func (r *BookingRepository) BookedSeatNumbers(ctx context.Context, busID string, date models.Date) ([]string, error) {
	query := `
		SELECT seat_number FROM bookings
		WHERE bus_id = $1 AND travel_date = $2 AND status = 'CONFIRMED'
		ORDER BY seat_number
	`

	seats := []string{}
	if err := r.db.SelectContext(ctx, &seats, query, busID, date); err != nil {
		return nil, fmt.Errorf("failed to list booked seats: %w", err)
	}
	return seats, nil
}

// GetByID retrieves a booking; it returns nil when none exists
func (r *BookingRepository) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// FindForFinalize retrieves a customer's confirmed bookings for a bus and date
// whose seat is one of seatNumbers
func (r *BookingRepository) FindForFinalize(ctx context.Context, customerEmail, busID string, date models.Date, seatNumbers []string) ([]models.Booking, error) {
	bookings := []models.Booking{}
	if len(seatNumbers) == 0 {
		return bookings, nil
	}

	upper := make([]string, len(seatNumbers))
	for i, s := range seatNumbers {
		upper[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	query, args, err := sqlx.In(`
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE LOWER(b.customer_email) = LOWER(?) AND b.bus_id = ? AND b.travel_date = ?
			AND b.status = 'CONFIRMED' AND UPPER(b.seat_number) IN (?)
		ORDER BY b.seat_number
	`, customerEmail, busID, date, upper)
	if err != nil {
		return nil, fmt.Errorf("failed to build finalize query: %w", err)
	}

	if err := r.db.SelectContext(ctx, &bookings, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	return bookings, nil
}

// ListByCustomer retrieves a customer's bookings with bus names, newest first
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerEmail string) ([]models.BookingWithBus, error) {
	query := `
		SELECT ` + bookingColumns + `,
			COALESCE(bu.bus_name, '') AS bus_name, COALESCE(bu.bus_number, '') AS bus_number
		FROM bookings b
		LEFT JOIN buses bu ON bu.id = b.bus_id
		WHERE LOWER(b.customer_email) = LOWER($1)
		ORDER BY b.travel_date DESC, b.created_at DESC
	`

	bookings := []models.BookingWithBus{}
	if err := r.db.SelectContext(ctx, &bookings, query, customerEmail); err != nil {
		return nil, fmt.Errorf("failed to list customer bookings: %w", err)
	}
	return bookings, nil
}

// ListByAgent retrieves bookings on every bus operated by an agent
func (r *BookingRepository) ListByAgent(ctx context.Context, agentID string) ([]models.BookingWithBus, error) {
	query := `
		SELECT ` + bookingColumns + `, bu.bus_name, bu.bus_number
		FROM bookings b
		JOIN buses bu ON bu.id = b.bus_id
		WHERE bu.agent_id = $1
		ORDER BY b.travel_date DESC, b.created_at DESC
	`

	bookings := []models.BookingWithBus{}
	if err := r.db.SelectContext(ctx, &bookings, query, agentID); err != nil {
		return nil, fmt.Errorf("failed to list agent bookings: %w", err)
	}
	return bookings, nil
}

// Cancel marks a confirmed booking as cancelled, releasing its seat
func (r *BookingRepository) Cancel(ctx context.Context, bookingID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'CANCELLED' WHERE id = $1 AND status = 'CONFIRMED'`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return expectAffected(result, "confirmed booking", bookingID)
}
