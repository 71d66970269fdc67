package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// schemaStatements are applied in order; every statement is idempotent
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		contact_person TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'agent', 'admin')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS buses (
		id UUID PRIMARY KEY,
		agent_id UUID NOT NULL REFERENCES users(id),
		operator_name TEXT NOT NULL DEFAULT '',
		bus_name TEXT NOT NULL,
		bus_number TEXT NOT NULL UNIQUE,
		bus_type TEXT NOT NULL,
		deck_type TEXT NOT NULL DEFAULT '',
		seater_seats INT NOT NULL DEFAULT 0,
		sleeper_seats INT NOT NULL DEFAULT 0,
		total_seats INT NOT NULL DEFAULT 0,
		has_upper_deck BOOLEAN NOT NULL DEFAULT FALSE,
		source TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_buses_agent ON buses (agent_id)`,
	`CREATE TABLE IF NOT EXISTS routes (
		id UUID PRIMARY KEY,
		bus_id UUID NOT NULL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		stops TEXT[] NOT NULL DEFAULT '{}',
		timing TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_routes_bus ON routes (bus_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS trip_schedules (
		id UUID PRIMARY KEY,
		bus_id UUID NOT NULL,
		route_id UUID NOT NULL,
		travel_date DATE NOT NULL,
		departure_time TEXT NOT NULL,
		arrival_time TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trip_schedules_route_date ON trip_schedules (route_id, travel_date)`,
	`CREATE INDEX IF NOT EXISTS idx_trip_schedules_bus_date ON trip_schedules (bus_id, travel_date)`,
	`CREATE TABLE IF NOT EXISTS seat_layouts (
		id UUID PRIMARY KEY,
		bus_id UUID NOT NULL UNIQUE,
		seats JSONB NOT NULL DEFAULT '[]',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		bus_id UUID NOT NULL,
		travel_date DATE NOT NULL,
		seat_number TEXT NOT NULL,
		seat_type TEXT NOT NULL DEFAULT '',
		fare NUMERIC(10, 2) NOT NULL CHECK (fare > 0),
		fare_mode TEXT NOT NULL DEFAULT 'computed',
		passenger_name TEXT NOT NULL,
		passenger_age INT NOT NULL DEFAULT 0,
		passenger_mobile TEXT NOT NULL DEFAULT '',
		passenger_email TEXT NOT NULL DEFAULT '',
		from_stop TEXT NOT NULL,
		to_stop TEXT NOT NULL,
		customer_email TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'CONFIRMED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// At most one confirmed booking per seat per bus per day
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_confirmed_seat
		ON bookings (bus_id, travel_date, seat_number)
		WHERE status = 'CONFIRMED'`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings (customer_email, bus_id, travel_date)`,
	`CREATE TABLE IF NOT EXISTS staff (
		id UUID PRIMARY KEY,
		bus_id UUID NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('driver', 'conductor')),
		phone TEXT NOT NULL,
		license_number TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_staff_bus ON staff (bus_id)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		device_type TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL,
		last_used_at TIMESTAMPTZ,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`,
	`CREATE TABLE IF NOT EXISTS login_attempts (
		id BIGSERIAL PRIMARY KEY,
		identifier TEXT NOT NULL,
		identifier_type TEXT NOT NULL CHECK (identifier_type IN ('email', 'ip')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_login_attempts_lookup ON login_attempts (identifier, identifier_type, created_at)`,
}

// Migrate creates the tables and indexes the service needs
func Migrate(ctx context.Context, db DB, logger *logrus.Logger) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	logger.WithField("statements", len(schemaStatements)).Info("Database schema is up to date")
	return nil
}
