package validation

import (
	"fmt"
	"unicode"
)

// ValidatePassword requires at least 8 characters with an upper-case letter,
// a lower-case letter and a digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain an upper-case letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain a lower-case letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain a digit")
	}

	return nil
}
