package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength        = 100
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MinMessageLength     = 1
	MaxMessageLength     = 5000
	MaxReasonLength      = 2000
)

var (
	emailLocalRe  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRe = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength checks the rune length of value.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email is required")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("invalid email format")
	}
	local, domain := parts[0], parts[1]

	if len(local) == 0 || len(local) > 64 {
		return fmt.Errorf("email local part must be 1 to 64 characters")
	}
	if len(domain) == 0 || len(domain) > 255 {
		return fmt.Errorf("email domain must be 1 to 255 characters")
	}
	if !emailLocalRe.MatchString(local) {
		return fmt.Errorf("email local part contains invalid characters")
	}
	if !emailDomainRe.MatchString(domain) {
		return fmt.Errorf("email domain is invalid")
	}

	return nil
}

// ValidateNonEmpty rejects blank strings.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateMessageContent checks a chat message.
func ValidateMessageContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return ValidateLength("message", content, MinMessageLength, MaxMessageLength)
}
