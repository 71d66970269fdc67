package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onlinebus/booking-backend/internal/models"
)

const busColumns = `
	id, agent_id, operator_name, bus_name, bus_number, bus_type, deck_type,
	seater_seats, sleeper_seats, total_seats, has_upper_deck, source, destination,
	created_at, updated_at`

// BusRepository handles database operations for buses
type BusRepository struct {
	db DB
}

// NewBusRepository creates a new BusRepository
func NewBusRepository(db DB) *BusRepository {
	return &BusRepository{db: db}
}

// Create creates a new bus
func (r *BusRepository) Create(ctx context.Context, bus *models.Bus) error {
	query := `
		INSERT INTO buses (
			id, agent_id, operator_name, bus_name, bus_number, bus_type, deck_type,
			seater_seats, sleeper_seats, total_seats, has_upper_deck, source, destination
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		bus.ID, bus.AgentID, bus.OperatorName, bus.BusName, bus.BusNumber, bus.BusType, bus.DeckType,
		bus.SeaterSeats, bus.SleeperSeats, bus.TotalSeats, bus.HasUpperDeck, bus.Source, bus.Destination,
	).Scan(&bus.CreatedAt, &bus.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bus number %s: %w", bus.BusNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to create bus: %w", err)
	}
	return nil
}

// GetByID retrieves a bus by ID; it returns nil when no bus exists
func (r *BusRepository) GetByID(ctx context.Context, busID string) (*models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE id = $1`

	var bus models.Bus
	if err := r.db.GetContext(ctx, &bus, query, busID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bus: %w", err)
	}
	return &bus, nil
}

// ListByAgent retrieves all buses operated by an agent
func (r *BusRepository) ListByAgent(ctx context.Context, agentID string) ([]models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE agent_id = $1 ORDER BY created_at DESC`

	buses := []models.Bus{}
	if err := r.db.SelectContext(ctx, &buses, query, agentID); err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	return buses, nil
}

// ListByIDs retrieves the given buses keyed by id
func (r *BusRepository) ListByIDs(ctx context.Context, busIDs []string) (map[string]*models.Bus, error) {
	result := make(map[string]*models.Bus, len(busIDs))
	if len(busIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT `+busColumns+` FROM buses WHERE id IN (?)`, busIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build bus query: %w", err)
	}

	buses := []models.Bus{}
	if err := r.db.SelectContext(ctx, &buses, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	for i := range buses {
		result[buses[i].ID] = &buses[i]
	}
	return result, nil
}

// ListAll retrieves every bus
func (r *BusRepository) ListAll(ctx context.Context) ([]models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses ORDER BY bus_name`

	buses := []models.Bus{}
	if err := r.db.SelectContext(ctx, &buses, query); err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	return buses, nil
}

// Update updates a bus's descriptive fields
func (r *BusRepository) Update(ctx context.Context, bus *models.Bus) error {
	query := `
		UPDATE buses SET
			operator_name = $2, bus_name = $3, bus_number = $4, bus_type = $5, deck_type = $6,
			seater_seats = $7, sleeper_seats = $8, total_seats = $9, has_upper_deck = $10,
			source = $11, destination = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		bus.ID, bus.OperatorName, bus.BusName, bus.BusNumber, bus.BusType, bus.DeckType,
		bus.SeaterSeats, bus.SleeperSeats, bus.TotalSeats, bus.HasUpperDeck,
		bus.Source, bus.Destination,
	).Scan(&bus.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound("bus", bus.ID)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("bus number %s: %w", bus.BusNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to update bus: %w", err)
	}
	return nil
}

// Delete removes a bus. Routes, schedules and bookings keep their bus_id.
func (r *BusRepository) Delete(ctx context.Context, busID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM buses WHERE id = $1`, busID)
	if err != nil {
		return fmt.Errorf("failed to delete bus: %w", err)
	}
	return expectAffected(result, "bus", busID)
}

// StatsForAgent aggregates fleet counts and confirmed revenue for an agent
func (r *BusRepository) StatsForAgent(ctx context.Context, agentID string) (*models.AgentStats, error) {
	query := `
		WITH agent_buses AS (
			SELECT id FROM buses WHERE agent_id = $1
		)
		SELECT
			(SELECT COUNT(*) FROM agent_buses) AS total_buses,
			(SELECT COUNT(*) FROM routes WHERE bus_id IN (SELECT id FROM agent_buses)) AS total_routes,
			(SELECT COUNT(*) FROM trip_schedules WHERE bus_id IN (SELECT id FROM agent_buses)) AS total_schedules,
			(SELECT COUNT(*) FROM bookings WHERE status = 'CONFIRMED'
				AND bus_id IN (SELECT id FROM agent_buses)) AS total_bookings,
			(SELECT COALESCE(SUM(fare), 0)::float8 FROM bookings WHERE status = 'CONFIRMED'
				AND bus_id IN (SELECT id FROM agent_buses)) AS total_revenue
	`

	var stats models.AgentStats
	if err := r.db.GetContext(ctx, &stats, query, agentID); err != nil {
		return nil, fmt.Errorf("failed to load agent stats: %w", err)
	}
	return &stats, nil
}

// expectAffected maps a zero-row write to a not found error
func expectAffected(result sql.Result, resource, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound(resource, id)
	}
	return nil
}
