// Package validation holds input rules shared by the services.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"sun/internal/models"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6
	// MaxPasswordLength caps input before bcrypt, which only reads 72 bytes.
	MaxPasswordLength = 72
	maxEmailLength    = 254
	maxNameLength     = 100
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@.]+$`)

// ValidatePassword checks password length.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// ValidateEmail checks the address shape after trimming.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("email must be at most %d characters", maxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("email is invalid")
	}
	return nil
}

// ValidateName checks the display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	return nil
}

// ValidateRole accepts an empty role (defaulted later) or a known one.
func ValidateRole(role models.Role) error {
	if role == "" || role.Valid() {
		return nil
	}
	return fmt.Errorf("role must be one of donor, organisation, volunteer")
}
