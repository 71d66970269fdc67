package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/config"
	"github.com/onlinebus/booking-backend/internal/database"
)

// booking data first so the list reads in dependency order
var bookingTables = []string{
	"bookings",
	"trip_schedules",
	"seat_layouts",
	"staff",
	"routes",
	"buses",
}

var accountTables = []string{
	"login_attempts",
	"refresh_tokens",
	"users",
}

func main() {
	var (
		dbURLFlag    string
		driver       string
		keepAccounts bool
		migrate      bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&driver, "driver", "pgx", "database driver: pgx or postgres")
	flag.BoolVar(&keepAccounts, "keep-accounts", false, "keep users and refresh tokens")
	flag.BoolVar(&migrate, "migrate", false, "create missing tables before clearing")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// .env is optional; it keeps secrets off the command line
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		Driver:             driver,
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	}, logger)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if migrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			logger.Fatalf("failed to migrate: %v", err)
		}
	}

	tables := append([]string{}, bookingTables...)
	if !keepAccounts {
		tables = append(tables, accountTables...)
	}

	truncateSQL := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := db.ExecContext(ctx, truncateSQL); err != nil {
		logger.Fatalf("failed to truncate tables: %v", err)
	}
	logger.WithField("tables", tables).Info("Data cleared")

	for _, table := range tables {
		var count int
		if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
			logger.WithError(err).WithField("table", table).Warn("Failed to count rows")
			continue
		}
		logger.WithFields(logrus.Fields{"table": table, "rows": count}).Info("Post-clear row count")
	}
}
