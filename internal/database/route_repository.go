package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onlinebus/booking-backend/internal/models"
)

const routeColumns = `id, bus_id, origin, destination, stops, timing, created_at, updated_at`

// RouteRepository handles database operations for routes
type RouteRepository struct {
	db DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// Create creates a new route
func (r *RouteRepository) Create(ctx context.Context, route *models.Route) error {
	query := `
		INSERT INTO routes (id, bus_id, origin, destination, stops, timing)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		route.ID, route.BusID, route.Origin, route.Destination, route.Stops, route.Timing,
	).Scan(&route.CreatedAt, &route.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create route: %w", err)
	}
	return nil
}

// GetByID retrieves a route by ID; it returns nil when no route exists
func (r *RouteRepository) GetByID(ctx context.Context, routeID string) (*models.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`

	var route models.Route
	if err := r.db.GetContext(ctx, &route, query, routeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	return &route, nil
}

// ListAll retrieves every route, oldest first
func (r *RouteRepository) ListAll(ctx context.Context) ([]models.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes ORDER BY created_at, id`

	routes := []models.Route{}
	if err := r.db.SelectContext(ctx, &routes, query); err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, nil
}

// ListByBus retrieves the routes of a bus, oldest first
func (r *RouteRepository) ListByBus(ctx context.Context, busID string) ([]models.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE bus_id = $1 ORDER BY created_at, id`

	routes := []models.Route{}
	if err := r.db.SelectContext(ctx, &routes, query, busID); err != nil {
		return nil, fmt.Errorf("failed to list routes for bus: %w", err)
	}
	return routes, nil
}

// FirstByBus retrieves the oldest route of a bus; it returns nil when the bus has none
func (r *RouteRepository) FirstByBus(ctx context.Context, busID string) (*models.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE bus_id = $1 ORDER BY created_at, id LIMIT 1`

	var route models.Route
	if err := r.db.GetContext(ctx, &route, query, busID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get route for bus: %w", err)
	}
	return &route, nil
}

// Update replaces a route's stops and endpoints
func (r *RouteRepository) Update(ctx context.Context, route *models.Route) error {
	query := `
		UPDATE routes SET
			origin = $2, destination = $3, stops = $4, timing = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		route.ID, route.Origin, route.Destination, route.Stops, route.Timing,
	).Scan(&route.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound("route", route.ID)
		}
		return fmt.Errorf("failed to update route: %w", err)
	}
	return nil
}

// Delete removes a route
func (r *RouteRepository) Delete(ctx context.Context, routeID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM routes WHERE id = $1`, routeID)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	return expectAffected(result, "route", routeID)
}
