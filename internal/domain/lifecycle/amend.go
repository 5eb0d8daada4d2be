package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

// Amendment is the copy-on-write successor of a signed agreement.
type Amendment struct {
	Agreement  *models.Agreement
	Milestones []models.Milestone
}

// CloneForAmendment builds the successor of original under projectID. Only
// incomplete milestones are carried over, renumbered from 1. Signatures,
// escrow state and legal snapshots start empty so the amendment is signed
// afresh.
func CloneForAmendment(original *models.Agreement, milestones []models.Milestone, projectID uuid.UUID, now time.Time) (*Amendment, error) {
	if original.IsArchived {
		return nil, apperror.BadRequest("archived agreements cannot be amended")
	}
	if !original.IsFullySigned() {
		return nil, apperror.BadRequest("only fully signed agreements can be amended")
	}
	if original.HasPendingEscrow() {
		return nil, apperror.BadRequest("agreements with an escrow payment in progress cannot be amended")
	}

	now = now.UTC()
	originalID := original.ID
	next := &models.Agreement{
		ID:                   uuid.New(),
		ProjectID:            projectID,
		ContractorID:         original.ContractorID,
		HomeownerID:          original.HomeownerID,
		TotalCost:            decimal.Zero,
		HomeownerAccessToken: uuid.New(),
		GoverningState:       original.GoverningState,
		WarrantyType:         original.WarrantyType,
		CustomWarrantyText:   original.CustomWarrantyText,
		AmendmentNumber:      original.AmendmentNumber + 1,
		OriginalAgreementID:  &originalID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	var copied []models.Milestone
	days, hours := 0, 0
	for _, m := range sortedByOrder(milestones) {
		if m.Completed {
			continue
		}
		copied = append(copied, models.Milestone{
			ID:             uuid.New(),
			AgreementID:    next.ID,
			OrderNum:       len(copied) + 1,
			Title:          m.Title,
			Description:    m.Description,
			Amount:         m.Amount,
			StartDate:      m.StartDate,
			CompletionDate: m.CompletionDate,
			DurationDays:   m.DurationDays,
			DurationHours:  m.DurationHours,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		next.TotalCost = next.TotalCost.Add(m.Amount)
		days += m.DurationDays
		hours += m.DurationHours
	}
	next.MilestoneCount = len(copied)
	next.TotalTimeEstimateDays = days + (hours+23)/24

	return &Amendment{Agreement: next, Milestones: copied}, nil
}
