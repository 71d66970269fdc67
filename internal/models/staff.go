package models

import (
	"strings"
	"time"

	"github.com/onlinebus/booking-backend/pkg/validator"
)

// StaffRole represents the crew position on a bus
type StaffRole string

const (
	StaffRoleDriver    StaffRole = "driver"
	StaffRoleConductor StaffRole = "conductor"
)

// Staff is a crew member assigned to a bus
type Staff struct {
	ID            string    `json:"id" db:"id"`
	BusID         string    `json:"bus_id" db:"bus_id"`
	Name          string    `json:"name" db:"name"`
	Role          StaffRole `json:"role" db:"role"`
	Phone         string    `json:"phone" db:"phone"`
	LicenseNumber *string   `json:"license_number,omitempty" db:"license_number"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// StaffRequest creates or updates a crew member
type StaffRequest struct {
	BusID         string  `json:"bus_id" binding:"required"`
	Name          string  `json:"name" binding:"required"`
	Role          string  `json:"role" binding:"required"`
	Phone         string  `json:"phone" binding:"required"`
	LicenseNumber *string `json:"license_number,omitempty"`
}

// Validate checks role and phone, and requires a license for drivers
func (r *StaffRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrInvalidField("name", "is required")
	}

	role := StaffRole(strings.ToLower(strings.TrimSpace(r.Role)))
	if role != StaffRoleDriver && role != StaffRoleConductor {
		return ErrInvalidField("role", "must be driver or conductor")
	}
	r.Role = string(role)

	phone, err := validator.NewPhoneValidator().Validate(r.Phone)
	if err != nil {
		return ErrInvalidField("phone", err.Error())
	}
	r.Phone = phone

	if role == StaffRoleDriver && (r.LicenseNumber == nil || strings.TrimSpace(*r.LicenseNumber) == "") {
		return ErrInvalidField("license_number", "is required for drivers")
	}
	return nil
}

// ApplyTo copies the request onto a staff record
func (r *StaffRequest) ApplyTo(s *Staff) {
	s.BusID = r.BusID
	s.Name = r.Name
	s.Role = StaffRole(r.Role)
	s.Phone = r.Phone
	s.LicenseNumber = r.LicenseNumber
}
