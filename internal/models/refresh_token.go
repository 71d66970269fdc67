package models

import "time"

// RefreshToken is the stored record of an issued refresh token. Only the
// SHA-256 hash of the token is kept.
type RefreshToken struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	DeviceType string     `json:"device_type" db:"device_type"`
	IPAddress  string     `json:"ip_address" db:"ip_address"`
	UserAgent  string     `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// IsUsable reports whether the token can still be exchanged
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// ClientMeta describes where a login came from
type ClientMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
}
