package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onlinebus/booking-backend/internal/models"
)

// RefreshTokenRepository handles refresh token database operations
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Store records a newly issued refresh token
func (r *RefreshTokenRepository) Store(ctx context.Context, userID, token string, meta models.ClientMeta, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, device_type, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), userID, hashToken(token),
		meta.DeviceType, meta.IPAddress, meta.UserAgent, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Get retrieves a refresh token by value; it returns nil when unknown
func (r *RefreshTokenRepository) Get(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, device_type, ip_address, user_agent,
		       created_at, expires_at, last_used_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var refreshToken models.RefreshToken
	if err := r.db.GetContext(ctx, &refreshToken, query, hashToken(token)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &refreshToken, nil
}

// Revoke revokes a specific refresh token
func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $1
		WHERE token_hash = $2 AND revoked = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, time.Now(), hashToken(token))
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return expectAffected(result, "active refresh token", "")
}

// RevokeAllForUser revokes every refresh token of a user
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $1
		WHERE user_id = $2 AND revoked = FALSE
	`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), userID); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// MarkUsed updates the last_used_at timestamp for a token
func (r *RefreshTokenRepository) MarkUsed(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET last_used_at = $1 WHERE token_hash = $2`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), hashToken(token)); err != nil {
		return fmt.Errorf("failed to update token usage: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens that expired before the cutoff
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
