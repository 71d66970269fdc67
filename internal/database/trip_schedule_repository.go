package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onlinebus/booking-backend/internal/models"
)

const scheduleColumns = `id, bus_id, route_id, travel_date, departure_time, arrival_time, created_at`

// TripScheduleRepository handles database operations for dated trips
type TripScheduleRepository struct {
	db DB
}

// NewTripScheduleRepository creates a new TripScheduleRepository
func NewTripScheduleRepository(db DB) *TripScheduleRepository {
	return &TripScheduleRepository{db: db}
}

// Create creates a new trip schedule
func (r *TripScheduleRepository) Create(ctx context.Context, schedule *models.TripSchedule) error {
	query := `
		INSERT INTO trip_schedules (id, bus_id, route_id, travel_date, departure_time, arrival_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		schedule.ID, schedule.BusID, schedule.RouteID, schedule.TravelDate,
		schedule.DepartureTime, schedule.ArrivalTime,
	).Scan(&schedule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip schedule: %w", err)
	}
	return nil
}

// ListByRoutesAndDate retrieves the schedules of any of the given routes on a date
func (r *TripScheduleRepository) ListByRoutesAndDate(ctx context.Context, routeIDs []string, date models.Date) ([]models.TripSchedule, error) {
	schedules := []models.TripSchedule{}
	if len(routeIDs) == 0 {
		return schedules, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+scheduleColumns+`
		FROM trip_schedules
		WHERE route_id IN (?) AND travel_date = ?
		ORDER BY departure_time, id
	`, routeIDs, date)
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule query: %w", err)
	}

	if err := r.db.SelectContext(ctx, &schedules, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// FirstByBusAndDate retrieves the earliest schedule of a bus on a date; nil when none
func (r *TripScheduleRepository) FirstByBusAndDate(ctx context.Context, busID string, date models.Date) (*models.TripSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM trip_schedules
		WHERE bus_id = $1 AND travel_date = $2
		ORDER BY departure_time, id
		LIMIT 1
	`

	var schedule models.TripSchedule
	if err := r.db.GetContext(ctx, &schedule, query, busID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

// ListByBus retrieves all schedules of a bus, newest date first
func (r *TripScheduleRepository) ListByBus(ctx context.Context, busID string) ([]models.TripSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM trip_schedules WHERE bus_id = $1 ORDER BY travel_date DESC, departure_time`

	schedules := []models.TripSchedule{}
	if err := r.db.SelectContext(ctx, &schedules, query, busID); err != nil {
		return nil, fmt.Errorf("failed to list schedules for bus: %w", err)
	}
	return schedules, nil
}

// GetByID retrieves a schedule by ID; it returns nil when none exists
func (r *TripScheduleRepository) GetByID(ctx context.Context, scheduleID string) (*models.TripSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM trip_schedules WHERE id = $1`

	var schedule models.TripSchedule
	if err := r.db.GetContext(ctx, &schedule, query, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

// Delete removes a schedule
func (r *TripScheduleRepository) Delete(ctx context.Context, scheduleID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trip_schedules WHERE id = $1`, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return expectAffected(result, "schedule", scheduleID)
}
