package lifecycle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const projectPrefix = "PRJ-"

// ProjectNumberPrefix returns the same-day prefix, e.g. PRJ-20240510-.
func ProjectNumberPrefix(day time.Time) string {
	return projectPrefix + day.UTC().Format("20060102") + "-"
}

// NextProjectNumber returns the number following last for the given day.
// last is the highest existing same-day number, or "" when none exists.
// A malformed suffix restarts the sequence at 0001.
func NextProjectNumber(day time.Time, last string) string {
	prefix := ProjectNumberPrefix(day)
	next := 1
	if strings.HasPrefix(last, prefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil && n >= 0 {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next)
}

// InvoiceNumber derives the invoice number for a milestone of a project.
func InvoiceNumber(projectNumber string, order int) string {
	return fmt.Sprintf("INV-%s-%02d", strings.TrimPrefix(projectNumber, projectPrefix), order)
}
