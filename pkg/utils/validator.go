package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateIntRange checks min <= v <= max
func ValidateIntRange(field string, v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("The field %s must be between %d and %d.", field, min, max)
	}
	return nil
}

// ValidateAmount checks an amount lies in [min, max] and carries at most
// scale decimal places.
func ValidateAmount(field string, amount decimal.Decimal, min, max int64, scale int32) error {
	if amount.LessThan(decimal.NewFromInt(min)) || amount.GreaterThan(decimal.NewFromInt(max)) {
		return fmt.Errorf("The field %s must be between %d and %d.", field, min, max)
	}
	if !amount.Equal(amount.Truncate(scale)) {
		return fmt.Errorf("The field %s must have at most %d decimal places.", field, scale)
	}
	return nil
}

// ValidateLength checks a string has at most max characters
func ValidateLength(field, s string, max int) error {
	if utf8.RuneCountInString(s) > max {
		return fmt.Errorf("The field %s must be a string with a maximum length of %d.", field, max)
	}
	return nil
}

// SanitizeString strips control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
