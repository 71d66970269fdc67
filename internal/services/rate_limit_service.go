package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onlinebus/booking-backend/internal/database"
)

// RateLimitService throttles failed login attempts per account and per client IP
type RateLimitService struct {
	db     database.DB
	config RateLimitConfig
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB) *RateLimitService {
	return &RateLimitService{
		db:     db,
		config: DefaultRateLimitConfig(),
	}
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxEmailFailures int           // failed logins per account
	EmailWindow      time.Duration // window for the account limit
	MaxIPFailures    int           // failed logins per IP
	IPWindow         time.Duration // window for the IP limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailFailures: 5,
		EmailWindow:      15 * time.Minute,
		MaxIPFailures:    20,
		IPWindow:         time.Hour,
	}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// CheckLoginRateLimit returns a *RateLimitError when the account or the IP
// has too many recent failed logins
func (s *RateLimitService) CheckLoginRateLimit(ctx context.Context, email, ip string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	if email != "" {
		count, lastAttempt, err := s.getFailureCount(ctx, email, "email", s.config.EmailWindow)
		if err != nil {
			return fmt.Errorf("failed to check account rate limit: %w", err)
		}
		if count >= s.config.MaxEmailFailures {
			retryAfter := lastAttempt.Add(s.config.EmailWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many failed logins for this account. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "email",
			}
		}
	}

	if ip != "" {
		count, lastAttempt, err := s.getFailureCount(ctx, ip, "ip", s.config.IPWindow)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}
		if count >= s.config.MaxIPFailures {
			retryAfter := lastAttempt.Add(s.config.IPWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many failed logins from this IP address. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "ip",
			}
		}
	}

	return nil
}

func (s *RateLimitService) getFailureCount(ctx context.Context, identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM login_attempts
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3
	`

	var count int
	var lastAttempt time.Time
	err := s.db.QueryRowxContext(ctx, query, identifier, identifierType, time.Now().Add(-window)).Scan(&count, &lastAttempt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, err
	}
	return count, lastAttempt, nil
}

// RecordFailedLogin records a failed login against the account and the IP
func (s *RateLimitService) RecordFailedLogin(ctx context.Context, email, ip string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		if err := s.recordAttempt(ctx, email, "email"); err != nil {
			return fmt.Errorf("failed to record account attempt: %w", err)
		}
	}
	if ip != "" {
		if err := s.recordAttempt(ctx, ip, "ip"); err != nil {
			return fmt.Errorf("failed to record IP attempt: %w", err)
		}
	}
	return nil
}

func (s *RateLimitService) recordAttempt(ctx context.Context, identifier, identifierType string) error {
	query := `
		INSERT INTO login_attempts (identifier, identifier_type, created_at)
		VALUES ($1, $2, NOW())
	`
	_, err := s.db.ExecContext(ctx, query, identifier, identifierType)
	return err
}

// ClearFailures forgets the failed logins of an account after a successful login
func (s *RateLimitService) ClearFailures(ctx context.Context, email string) error {
	query := `DELETE FROM login_attempts WHERE identifier = $1 AND identifier_type = 'email'`
	_, err := s.db.ExecContext(ctx, query, strings.ToLower(strings.TrimSpace(email)))
	return err
}

// CleanupExpiredRateLimits removes attempts older than the longest window
func (s *RateLimitService) CleanupExpiredRateLimits(ctx context.Context) (int64, error) {
	maxWindow := s.config.IPWindow
	if s.config.EmailWindow > maxWindow {
		maxWindow = s.config.EmailWindow
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE created_at < $1`, time.Now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
