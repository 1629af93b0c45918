package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	PINLength         = 6
	MinPasswordLength = 8
	MaxAdminNameLen   = 100
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	adminIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{3,64}$`)
	pinRegex     = regexp.MustCompile(`^[0-9]{6}$`)
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateAdminName checks the display name.
func ValidateAdminName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("admin name is required")
	}
	if len(name) > MaxAdminNameLen {
		return fmt.Errorf("admin name must be at most %d characters", MaxAdminNameLen)
	}
	return nil
}

// ValidateAdminID checks the stable identifier.
func ValidateAdminID(id string) error {
	if id == "" {
		return fmt.Errorf("admin ID is required")
	}
	if !adminIDRegex.MatchString(id) {
		return fmt.Errorf("admin ID must be 3-64 letters, digits, '-' or '_'")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidatePIN checks for exactly six ASCII digits.
func ValidatePIN(pin string) error {
	if !pinRegex.MatchString(pin) {
		return fmt.Errorf("PIN must be exactly %d digits", PINLength)
	}
	return nil
}

// FieldErrors collects per-field validation messages for form rendering.
type FieldErrors map[string]string

// Check records err under field if err is non-nil and the field has no message yet.
func (f FieldErrors) Check(field string, err error) {
	if err == nil {
		return
	}
	if _, ok := f[field]; !ok {
		f[field] = err.Error()
	}
}

// Err returns a validation AppError when any field failed, nil otherwise.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return ErrValidationFields(f)
}
