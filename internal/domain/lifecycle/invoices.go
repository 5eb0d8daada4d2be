package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

// DeriveInvoices returns one pending invoice per milestone that has not been
// invoiced yet. The due date is the milestone's completion date.
func DeriveInvoices(agreement *models.Agreement, projectNumber string, milestones []models.Milestone, now time.Time) []models.Invoice {
	now = now.UTC()
	out := make([]models.Invoice, 0, len(milestones))
	for _, m := range sortedByOrder(milestones) {
		if m.IsInvoiced {
			continue
		}
		out = append(out, models.Invoice{
			ID:            uuid.New(),
			AgreementID:   agreement.ID,
			MilestoneID:   m.ID,
			InvoiceNumber: InvoiceNumber(projectNumber, m.OrderNum),
			Amount:        m.Amount,
			DueDate:       m.CompletionDate,
			Status:        string(valueobject.InvoiceStatusPending),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return out
}

// AutoReleaseDue reports whether a pending invoice has sat untouched past the
// policy window and may be released automatically. Frozen escrow on either
// the agreement or the milestone blocks release.
func AutoReleaseDue(inv *models.Invoice, agreementFrozen, milestoneFrozen bool, window time.Duration, now time.Time) bool {
	if valueobject.InvoiceStatus(inv.Status) != valueobject.InvoiceStatusPending {
		return false
	}
	if agreementFrozen || milestoneFrozen {
		return false
	}
	return !inv.CreatedAt.Add(window).After(now)
}

// ReleaseBlocked reports whether escrow for the invoice's milestone is frozen.
func ReleaseBlocked(agreement *models.Agreement, milestone *models.Milestone) bool {
	return agreement.EscrowFrozen || (milestone != nil && milestone.EscrowFrozen)
}
