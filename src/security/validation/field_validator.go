package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/username/monedero/backend/src/logger"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxNameLength   = 100
	MaxSymbolLength = 12
)

// --- String Validators ---

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

// --- Numeric Validators ---

// ValidateAmount checks that a monetary amount is finite and non-negative.
func ValidateAmount(val float64, fieldName string) error {
	if val != val { // NaN
		return fmt.Errorf("%w: %s is not a number", ErrValidationFailed, fieldName)
	}
	if val < 0 {
		logger.L.Warn("Negative value not allowed for field", "field", fieldName, "value", val)
		return fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	return nil
}

// --- Specific Format Validators ---

var (
	symbolRegex = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)
	monthRegex  = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// ValidateSymbol checks that a ticker symbol is uppercase alphanumeric.
func ValidateSymbol(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "Symbol"); err != nil {
		return err
	}
	if !symbolRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: Symbol ('%s') is not in the expected format (1-12 uppercase alphanumerics)", ErrValidationFailed, s)
	}
	return nil
}

// ValidateMonth checks a YYYY-MM month filter and that it denotes a real month.
func ValidateMonth(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if !monthRegex.MatchString(trimmed) {
		return "", fmt.Errorf("%w: month ('%s') is not in the expected format (YYYY-MM)", ErrValidationFailed, s)
	}
	if _, err := time.Parse("2006-01", trimmed); err != nil {
		return "", fmt.Errorf("%w: month ('%s') is not a valid month: %v", ErrValidationFailed, s, err)
	}
	return trimmed, nil
}
