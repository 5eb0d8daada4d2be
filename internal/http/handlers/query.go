package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

const dateLayout = "2006-01-02"

func badQuery(name, msg string) error {
	return apperror.Validation("invalid "+name, map[string][]string{name: {msg}})
}

// optionalUUID parses an optional UUID query value.
func optionalUUID(name, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, badQuery(name, "Must be a valid UUID")
	}
	return &id, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(name, raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, badQuery(name, "Use YYYY-MM-DD")
	}
	return t, nil
}
