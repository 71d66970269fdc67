package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onlinebus/booking-backend/internal/models"
)

// SeatLayoutRepository handles database operations for seat layouts
type SeatLayoutRepository struct {
	db DB
}

// NewSeatLayoutRepository creates a new SeatLayoutRepository
func NewSeatLayoutRepository(db DB) *SeatLayoutRepository {
	return &SeatLayoutRepository{db: db}
}

// Upsert stores the layout of a bus, replacing any existing one
func (r *SeatLayoutRepository) Upsert(ctx context.Context, layout *models.SeatLayout) error {
	query := `
		INSERT INTO seat_layouts (id, bus_id, seats)
		VALUES ($1, $2, $3)
		ON CONFLICT (bus_id) DO UPDATE SET
			seats = EXCLUDED.seats,
			updated_at = NOW()
		RETURNING id, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query, layout.ID, layout.BusID, layout.Seats).
		Scan(&layout.ID, &layout.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save seat layout: %w", err)
	}
	return nil
}

// GetByBusID retrieves the layout of a bus; it returns nil when none is configured
func (r *SeatLayoutRepository) GetByBusID(ctx context.Context, busID string) (*models.SeatLayout, error) {
	query := `SELECT id, bus_id, seats, updated_at FROM seat_layouts WHERE bus_id = $1`

	var layout models.SeatLayout
	if err := r.db.GetContext(ctx, &layout, query, busID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get seat layout: %w", err)
	}
	return &layout, nil
}

// ListByBusIDs retrieves layouts for several buses keyed by bus ID
func (r *SeatLayoutRepository) ListByBusIDs(ctx context.Context, busIDs []string) (map[string]*models.SeatLayout, error) {
	result := make(map[string]*models.SeatLayout, len(busIDs))
	if len(busIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT id, bus_id, seats, updated_at FROM seat_layouts WHERE bus_id IN (?)`, busIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build seat layout query: %w", err)
	}

	var layouts []models.SeatLayout
	if err := r.db.SelectContext(ctx, &layouts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list seat layouts: %w", err)
	}
	for i := range layouts {
		result[layouts[i].BusID] = &layouts[i]
	}
	return result, nil
}
