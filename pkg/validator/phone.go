package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates the mobile number is not 10 digits after removing the country code
	ErrInvalidLength = errors.New("mobile number must be exactly 10 digits")

	// ErrInvalidPrefix indicates the number doesn't start with an Indian mobile series digit
	ErrInvalidPrefix = errors.New("mobile number must start with 6, 7, 8, or 9")

	// ErrInvalidFormat indicates the number contains invalid characters
	ErrInvalidFormat = errors.New("mobile number can only contain digits")

	// ErrEmptyPhone indicates the number is empty
	ErrEmptyPhone = errors.New("mobile number cannot be empty")
)

var phoneRegex = regexp.MustCompile(`^\d+$`)

var separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")

// PhoneValidator validates passenger mobile numbers
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates an Indian mobile number.
// Accepts 9876543210, 98765 43210, +91 98765-43210 or 09876543210.
// Returns the 10 digit number.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if len(sanitized) != 10 {
		return "", ErrInvalidLength
	}

	if !v.IsValidPrefix(sanitized) {
		return "", ErrInvalidPrefix
	}

	return sanitized, nil
}

// Sanitize removes separators and the 91 / 0 trunk prefixes
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = separators.Replace(strings.TrimSpace(phone))

	switch {
	case strings.HasPrefix(phone, "91") && len(phone) == 12:
		phone = phone[2:]
	case strings.HasPrefix(phone, "0") && len(phone) == 11:
		phone = phone[1:]
	}

	return phone
}

// IsValidPrefix checks the leading digit of a 10 digit number
func (v *PhoneValidator) IsValidPrefix(phone string) bool {
	if phone == "" {
		return false
	}
	switch phone[0] {
	case '6', '7', '8', '9':
		return true
	}
	return false
}

// Format formats a number for display: +91 XXXXX XXXXX
func (v *PhoneValidator) Format(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("+91 %s %s", sanitized[0:5], sanitized[5:10]), nil
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
