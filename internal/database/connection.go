package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/config"
)

// DB interface defines database operations used by the repositories
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
	PingContext(ctx context.Context) error
	Close() error
}

// PostgresDB implements the DB interface using sqlx
type PostgresDB struct {
	*sqlx.DB
}

var passwordPattern = regexp.MustCompile(`(postgres(?:ql)?://[^:]+:)([^@]+)(@.+)`)

// maskPassword masks the password in a database URL for safe logging
func maskPassword(url string) string {
	return passwordPattern.ReplaceAllString(url, "${1}****${3}")
}

// NewConnection creates a new database connection with the configured driver
func NewConnection(cfg config.DatabaseConfig, logger *logrus.Logger) (*PostgresDB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	logger.WithFields(logrus.Fields{
		"driver": cfg.Driver,
		"url":    maskPassword(cfg.URL),
	}).Info("Connecting to database")

	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = sqlx.Connect("postgres", cfg.URL)
	default:
		db, err = connectPgx(cfg.URL, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

func connectPgx(url string, logger *logrus.Logger) (*sqlx.DB, error) {
	pgxConfig, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Transaction-mode poolers (PgBouncer, Supavisor on 6543) reject prepared statements
	if strings.Contains(url, ":6543") || strings.Contains(url, "pgbouncer=true") {
		pgxConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		logger.Info("Connection pooler detected, using simple query protocol")
	}

	connStr := stdlib.RegisterConnConfig(pgxConfig)
	return sqlx.Connect("pgx", connStr)
}
