// Package lifecycle holds the pure rules of the agreement, milestone and
// invoice lifecycle. Nothing here touches storage; repositories and services
// call these functions inside their transactions.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

// MilestoneSpec is a milestone as submitted when drafting an agreement.
type MilestoneSpec struct {
	Title          string
	Description    string
	Amount         decimal.Decimal
	StartDate      time.Time
	CompletionDate time.Time
	DurationDays   int
	DurationHours  int
}

// ValidateMilestones checks every milestone and reports all problems at once.
// An agreement needs at least one milestone.
func ValidateMilestones(specs []MilestoneSpec) error {
	fields := map[string][]string{}
	if len(specs) == 0 {
		fields["milestones"] = []string{"At least one milestone is required"}
	}

	for i, m := range specs {
		key := func(f string) string { return fmt.Sprintf("milestones[%d].%s", i, f) }

		if strings.TrimSpace(m.Title) == "" {
			fields[key("title")] = append(fields[key("title")], "This field is required")
		}
		if !m.Amount.IsPositive() {
			fields[key("amount")] = append(fields[key("amount")], "Must be greater than 0")
		} else if !m.Amount.Equal(m.Amount.Round(2)) {
			fields[key("amount")] = append(fields[key("amount")], "At most two decimal places")
		}
		if m.StartDate.IsZero() {
			fields[key("start_date")] = append(fields[key("start_date")], "This field is required")
		}
		if m.CompletionDate.IsZero() {
			fields[key("completion_date")] = append(fields[key("completion_date")], "This field is required")
		}
		if !m.StartDate.IsZero() && !m.CompletionDate.IsZero() && m.CompletionDate.Before(m.StartDate) {
			fields[key("completion_date")] = append(fields[key("completion_date")], "Completion date cannot be before start date")
		}
		if m.DurationDays < 0 || m.DurationHours < 0 {
			fields[key("duration")] = append(fields[key("duration")], "Duration cannot be negative")
		} else if m.DurationDays == 0 && m.DurationHours == 0 {
			fields[key("duration")] = append(fields[key("duration")], "Duration must be greater than zero")
		}
	}

	if len(fields) > 0 {
		return apperror.Validation("invalid milestones", fields)
	}
	return nil
}

// SumAmounts totals milestone amounts.
func SumAmounts(specs []MilestoneSpec) decimal.Decimal {
	total := decimal.Zero
	for _, m := range specs {
		total = total.Add(m.Amount)
	}
	return total
}

// EstimateDays returns the agreement time estimate: whole days including
// partial days from hours.
func EstimateDays(specs []MilestoneSpec) int {
	days, hours := 0, 0
	for _, m := range specs {
		days += m.DurationDays
		hours += m.DurationHours
	}
	return days + (hours+23)/24
}
