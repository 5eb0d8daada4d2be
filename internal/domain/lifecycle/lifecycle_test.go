package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

var day = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newSpec(title string, amount string, days int) MilestoneSpec {
	return MilestoneSpec{
		Title:          title,
		Amount:         decimal.RequireFromString(amount),
		StartDate:      day,
		CompletionDate: day.AddDate(0, 0, days),
		DurationDays:   days,
	}
}

func TestValidateMilestones(t *testing.T) {
	assert.NoError(t, ValidateMilestones([]MilestoneSpec{newSpec("Demo", "500", 3), newSpec("Tile", "300", 2)}))

	err := ValidateMilestones(nil)
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "milestones")

	bad := newSpec("Framing", "0", 2)
	bad.CompletionDate = day.AddDate(0, 0, -1)
	bad.DurationDays = 0
	err = ValidateMilestones([]MilestoneSpec{newSpec("Demo", "500", 3), bad})
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "milestones[1].amount")
	assert.Contains(t, appErr.Fields, "milestones[1].completion_date")
	assert.Contains(t, appErr.Fields, "milestones[1].duration")
	assert.NotContains(t, appErr.Fields, "milestones[0].amount")
}

func TestSumAndEstimate(t *testing.T) {
	specs := []MilestoneSpec{newSpec("Demo", "500", 3), newSpec("Tile", "300.50", 2)}
	specs[1].DurationHours = 5

	assert.True(t, SumAmounts(specs).Equal(decimal.RequireFromString("800.50")))
	assert.Equal(t, 6, EstimateDays(specs))
}

func TestNextProjectNumber(t *testing.T) {
	assert.Equal(t, "PRJ-20240510-0001", NextProjectNumber(day, ""))
	assert.Equal(t, "PRJ-20240510-0013", NextProjectNumber(day, "PRJ-20240510-0012"))
	assert.Equal(t, "PRJ-20240510-0001", NextProjectNumber(day, "PRJ-20240509-0044"))
	assert.Equal(t, "PRJ-20240510-0001", NextProjectNumber(day, "PRJ-20240510-abc"))
	assert.Equal(t, "INV-20240510-0007-02", InvoiceNumber("PRJ-20240510-0007", 2))
}

func agreement(contractor uuid.UUID, cost int64) *models.Agreement {
	return &models.Agreement{ID: uuid.New(), ContractorID: contractor, TotalCost: decimal.NewFromInt(cost)}
}

func milestonesFor(a *models.Agreement, amounts ...int64) []models.Milestone {
	out := make([]models.Milestone, 0, len(amounts))
	for i, amt := range amounts {
		out = append(out, models.Milestone{
			ID:             uuid.New(),
			AgreementID:    a.ID,
			OrderNum:       i + 1,
			Title:          "m",
			Amount:         decimal.NewFromInt(amt),
			CompletionDate: day.AddDate(0, 0, i+1),
		})
	}
	return out
}

func TestPickPrimary(t *testing.T) {
	c := uuid.New()
	a, b, d := agreement(c, 100), agreement(c, 200), agreement(c, 300)

	_, err := PickPrimary([]*models.Agreement{a}, nil)
	assert.Error(t, err)

	p, err := PickPrimary([]*models.Agreement{a, b, d}, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, p.ID, "falls back to first in input order")

	b.SignedByContractor, b.SignedByHomeowner = true, true
	p, _ = PickPrimary([]*models.Agreement{a, b, d}, nil)
	assert.Equal(t, b.ID, p.ID, "sole fully signed agreement wins")

	d.SignedByContractor, d.SignedByHomeowner = true, true
	p, _ = PickPrimary([]*models.Agreement{a, b, d}, nil)
	assert.Equal(t, a.ID, p.ID, "two signed agreements fall back to input order")

	p, _ = PickPrimary([]*models.Agreement{a, b, d}, &d.ID)
	assert.Equal(t, d.ID, p.ID)

	other := uuid.New()
	_, err = PickPrimary([]*models.Agreement{a, b}, &other)
	assert.Error(t, err)
}

func TestPlanMerge_ContinuesOrderAndSumsCost(t *testing.T) {
	c := uuid.New()
	primary, child := agreement(c, 800), agreement(c, 450)
	childMilestones := milestonesFor(child, 200, 250)
	childMilestones[0].OrderNum, childMilestones[1].OrderNum = 2, 1

	plan, err := PlanMerge(primary, 2, 0, []MergeChild{{Agreement: child, Milestones: childMilestones}})
	require.NoError(t, err)

	require.Len(t, plan.Moves, 2)
	assert.Equal(t, childMilestones[1].ID, plan.Moves[0].MilestoneID)
	assert.Equal(t, 3, plan.Moves[0].OrderNum)
	assert.Equal(t, 4, plan.Moves[1].OrderNum)
	assert.True(t, plan.AddedCost.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, 2, plan.AddedMilestones)
	assert.Equal(t, []AmendmentLink{{ChildID: child.ID, AmendmentNumber: 1}}, plan.Links)
	assert.Equal(t, []uuid.UUID{child.ID}, plan.ArchiveIDs)
	assert.False(t, plan.IsNoop())
}

func TestPlanMerge_RerunIsNoop(t *testing.T) {
	c := uuid.New()
	primary, child := agreement(c, 1250), agreement(c, 450)
	child.IsArchived = true

	plan, err := PlanMerge(primary, 4, 1, []MergeChild{{Agreement: child, Linked: true}})
	require.NoError(t, err)
	assert.True(t, plan.IsNoop())
	assert.True(t, plan.AddedCost.IsZero())
}

func TestPlanMerge_Rejections(t *testing.T) {
	c := uuid.New()
	primary := agreement(c, 100)

	foreign := agreement(uuid.New(), 100)
	_, err := PlanMerge(primary, 0, 0, []MergeChild{{Agreement: foreign}})
	assert.Error(t, err)

	funded := agreement(c, 100)
	funded.EscrowFunded = true
	_, err = PlanMerge(primary, 0, 0, []MergeChild{{Agreement: funded}})
	assert.Error(t, err)

	archived := agreement(c, 100)
	archived.IsArchived = true
	_, err = PlanMerge(primary, 0, 0, []MergeChild{{Agreement: archived}})
	assert.Error(t, err, "archived but never linked")

	_, err = PlanMerge(primary, 0, 0, []MergeChild{{Agreement: primary}})
	assert.Error(t, err)
}

func TestPlanMerge_RejectsPendingEscrow(t *testing.T) {
	c := uuid.New()
	primary, child := agreement(c, 800), agreement(c, 500)
	child.PaymentIntentID = "pi_pending_123"

	_, err := PlanMerge(primary, 0, 0, []MergeChild{{Agreement: child, Milestones: milestonesFor(child, 500)}})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	child.PaymentIntentID = ""
	primary.PaymentIntentID = "pi_pending_456"
	_, err = PlanMerge(primary, 0, 0, []MergeChild{{Agreement: child, Milestones: milestonesFor(child, 500)}})
	assert.True(t, apperror.IsValidation(err))
}

func TestCloneForAmendment_RejectsPendingEscrow(t *testing.T) {
	original := agreement(uuid.New(), 800)
	original.SignedByContractor, original.SignedByHomeowner = true, true
	original.PaymentIntentID = "pi_pending_123"

	_, err := CloneForAmendment(original, milestonesFor(original, 800), uuid.New(), day)
	assert.True(t, apperror.IsValidation(err))

	// Once Stripe confirms the payment the amendment is allowed.
	original.EscrowFunded = true
	_, err = CloneForAmendment(original, milestonesFor(original, 800), uuid.New(), day)
	assert.NoError(t, err)
}

func TestSortedByOrder_Stable(t *testing.T) {
	a := agreement(uuid.New(), 300)
	ms := milestonesFor(a, 100, 100, 100)
	ms[0].OrderNum, ms[1].OrderNum, ms[2].OrderNum = 2, 1, 2

	out := sortedByOrder(ms)
	assert.Equal(t, []uuid.UUID{ms[1].ID, ms[0].ID, ms[2].ID}, []uuid.UUID{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, 2, ms[0].OrderNum, "input is left untouched")
}

func TestCloneForAmendment(t *testing.T) {
	c := uuid.New()
	original := agreement(c, 800)
	_, err := CloneForAmendment(original, nil, uuid.New(), day)
	assert.Error(t, err, "unsigned agreement")

	original.SignedByContractor, original.SignedByHomeowner, original.ProjectSigned = true, true, true
	original.EscrowFunded = true
	original.LegalVersion = "abc"
	original.AmendmentNumber = 2
	ms := milestonesFor(original, 500, 300, 100)
	ms[0].Completed = true

	projectID := uuid.New()
	am, err := CloneForAmendment(original, ms, projectID, day)
	require.NoError(t, err)

	next := am.Agreement
	assert.NotEqual(t, original.ID, next.ID)
	assert.Equal(t, projectID, next.ProjectID)
	assert.Equal(t, 3, next.AmendmentNumber)
	assert.Equal(t, &original.ID, next.OriginalAgreementID)
	assert.False(t, next.SignedByContractor)
	assert.False(t, next.SignedByHomeowner)
	assert.False(t, next.ProjectSigned)
	assert.False(t, next.EscrowFunded)
	assert.Empty(t, next.LegalVersion)
	assert.NotEqual(t, original.HomeownerAccessToken, next.HomeownerAccessToken)

	require.Len(t, am.Milestones, 2)
	assert.Equal(t, 1, am.Milestones[0].OrderNum)
	assert.Equal(t, 2, am.Milestones[1].OrderNum)
	assert.Equal(t, next.ID, am.Milestones[0].AgreementID)
	assert.True(t, next.TotalCost.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, 2, next.MilestoneCount)
}

func TestDeriveInvoices_OnePendingPerMilestone(t *testing.T) {
	a := agreement(uuid.New(), 800)
	ms := milestonesFor(a, 500, 300)

	invoices := DeriveInvoices(a, "PRJ-20240510-0001", ms, day)
	require.Len(t, invoices, 2)

	total := decimal.Zero
	for i, inv := range invoices {
		assert.Equal(t, "pending", inv.Status)
		assert.Equal(t, ms[i].ID, inv.MilestoneID)
		assert.Equal(t, ms[i].CompletionDate, inv.DueDate)
		total = total.Add(inv.Amount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, "INV-20240510-0001-01", invoices[0].InvoiceNumber)

	ms[0].IsInvoiced = true
	assert.Len(t, DeriveInvoices(a, "PRJ-20240510-0001", ms, day), 1)
}

func TestAutoReleaseDue(t *testing.T) {
	window := 72 * time.Hour
	inv := &models.Invoice{Status: "pending", CreatedAt: day}

	assert.False(t, AutoReleaseDue(inv, false, false, window, day.Add(71*time.Hour)))
	assert.True(t, AutoReleaseDue(inv, false, false, window, day.Add(72*time.Hour)))
	assert.False(t, AutoReleaseDue(inv, true, false, window, day.Add(100*time.Hour)))
	assert.False(t, AutoReleaseDue(inv, false, true, window, day.Add(100*time.Hour)))

	inv.Status = "disputed"
	assert.False(t, AutoReleaseDue(inv, false, false, window, day.Add(100*time.Hour)))
}
