// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxFileNameLength = 255
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}
