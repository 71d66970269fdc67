package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onlinebus/booking-backend/internal/models"
)

const staffColumns = `id, bus_id, name, role, phone, license_number, created_at, updated_at`

// StaffRepository handles database operations for bus crew
type StaffRepository struct {
	db DB
}

// NewStaffRepository creates a new StaffRepository
func NewStaffRepository(db DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// Create adds a crew member to a bus
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	query := `
		INSERT INTO staff (id, bus_id, name, role, phone, license_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		staff.ID, staff.BusID, staff.Name, staff.Role, staff.Phone, staff.LicenseNumber,
	).Scan(&staff.CreatedAt, &staff.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	return nil
}

// GetByID retrieves a crew member; it returns nil when none exists
func (r *StaffRepository) GetByID(ctx context.Context, staffID string) (*models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE id = $1`

	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, staffID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	return &staff, nil
}

// ListByBus retrieves the crew of a bus
func (r *StaffRepository) ListByBus(ctx context.Context, busID string) ([]models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE bus_id = $1 ORDER BY role, name`

	staff := []models.Staff{}
	if err := r.db.SelectContext(ctx, &staff, query, busID); err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, nil
}

// Update updates a crew member
func (r *StaffRepository) Update(ctx context.Context, staff *models.Staff) error {
	query := `
		UPDATE staff SET
			bus_id = $2, name = $3, role = $4, phone = $5, license_number = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		staff.ID, staff.BusID, staff.Name, staff.Role, staff.Phone, staff.LicenseNumber,
	).Scan(&staff.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound("staff", staff.ID)
		}
		return fmt.Errorf("failed to update staff: %w", err)
	}
	return nil
}

// Delete removes a crew member
func (r *StaffRepository) Delete(ctx context.Context, staffID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, staffID)
	if err != nil {
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	return expectAffected(result, "staff", staffID)
}
