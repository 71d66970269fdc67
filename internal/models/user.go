package models

import (
	"net/mail"
	"strings"
	"time"
)

// Role names carried in access tokens
const (
	RoleUser  = "user"
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// User is an account: passenger, agent (bus operator) or admin
type User struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	ContactPerson string    `json:"contact_person,omitempty" db:"contact_person"`
	Email         string    `json:"email" db:"email"`
	Phone         string    `json:"phone" db:"phone"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	Role          string    `json:"role" db:"role"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// RegisterRequest creates a passenger or, via the admin API, an agent account
type RegisterRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" binding:"required"`
	Phone         string `json:"phone"`
	Password      string `json:"password" binding:"required"`
}

// Validate normalizes the email and checks password length
func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Name == "" {
		return ErrInvalidField("name", "is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return ErrInvalidField("email", "is not a valid email address")
	}
	if len(r.Password) < 8 {
		return ErrInvalidField("password", "must be at least 8 characters")
	}
	return nil
}

// LoginRequest authenticates with email and password
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest exchanges a refresh token for a new token pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResponse is returned after login, registration or refresh
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}

// AgentStats summarizes an agent's fleet
type AgentStats struct {
	TotalBuses     int     `json:"total_buses" db:"total_buses"`
	TotalRoutes    int     `json:"total_routes" db:"total_routes"`
	TotalSchedules int     `json:"total_schedules" db:"total_schedules"`
	TotalBookings  int     `json:"total_bookings" db:"total_bookings"`
	TotalRevenue   float64 `json:"total_revenue" db:"total_revenue"`
}
