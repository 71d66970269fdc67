package models

import (
	"errors"
	"fmt"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ErrInvalidInput creates a new validation error
func ErrInvalidInput(message string) error {
	return &ValidationError{Message: message}
}

// ErrInvalidField creates a validation error for a single field
func ErrInvalidField(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError is returned when a bus, route, seat, schedule or booking is missing
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ErrNotFound creates a new not found error
func ErrNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError signals a write rejected because of existing state.
// Retryable conflicts can succeed if the caller picks different input.
type ConflictError struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error { return e.Err }

// ErrSeatTaken creates the conflict returned when a seat already has a confirmed booking
func ErrSeatTaken(seatNumber string, cause error) error {
	return &ConflictError{
		Code:      "SEAT_TAKEN",
		Message:   fmt.Sprintf("seat %s is already booked", seatNumber),
		Retryable: true,
		Err:       cause,
	}
}

// ErrConflict creates a non-retryable conflict, e.g. a duplicate bus number
func ErrConflict(code, message string, cause error) error {
	return &ConflictError{Code: code, Message: message, Err: cause}
}

// ForbiddenError is returned when the caller may not act on a resource it can see
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// ErrForbidden creates a new forbidden error
func ErrForbidden(message string) error {
	return &ForbiddenError{Message: message}
}

// DeliveryError reports a ticket that could not be rendered or sent after
// the booking itself was committed.
type DeliveryError struct {
	Stage string // "render" or "mail"
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("booking confirmed, ticket delivery failed at %s: %v", e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsDelivery reports whether err is a DeliveryError
func IsDelivery(err error) bool {
	var target *DeliveryError
	return errors.As(err, &target)
}

// IsForbidden reports whether err is a ForbiddenError
func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}
