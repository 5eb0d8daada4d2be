package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

func TestAgreement_ProjectSignedTracksBothSignatures(t *testing.T) {
	a := &Agreement{ID: uuid.New(), TotalCost: decimal.NewFromInt(800)}
	now := time.Now()

	require.NoError(t, a.ApplySignature(valueobject.RoleContractor, "Bob Builder", "10.0.0.1", now))
	assert.True(t, a.SignedByContractor)
	assert.False(t, a.ProjectSigned)
	assert.Equal(t, a.IsFullySigned(), a.ProjectSigned)

	require.NoError(t, a.ApplySignature(valueobject.RoleHomeowner, "Hannah Home", "10.0.0.2", now))
	assert.True(t, a.ProjectSigned)
	assert.Equal(t, a.IsFullySigned(), a.ProjectSigned)
	assert.Equal(t, "Hannah Home", a.HomeownerSignatureName)
	assert.NotNil(t, a.HomeownerSignedAt)
}

func TestAgreement_RejectsSecondSignatureFromSameRole(t *testing.T) {
	a := &Agreement{}
	require.NoError(t, a.ApplySignature(valueobject.RoleContractor, "Bob", "", time.Now()))

	err := a.ApplySignature(valueobject.RoleContractor, "Bob again", "", time.Now())
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, "Bob", a.ContractorSignatureName)
}

func TestAgreement_SignatureRequiresNameAndParty(t *testing.T) {
	a := &Agreement{}
	assert.Error(t, a.ApplySignature(valueobject.RoleHomeowner, "  ", "", time.Now()))
	assert.Error(t, a.ApplySignature(valueobject.RoleAdmin, "Staff", "", time.Now()))
	assert.False(t, a.SignedByHomeowner)
}

func TestAgreement_CanFundEscrow(t *testing.T) {
	a := &Agreement{TotalCost: decimal.NewFromInt(800)}
	assert.Error(t, a.CanFundEscrow(), "unsigned")

	a.SignedByContractor = true
	assert.Error(t, a.CanFundEscrow(), "half signed")

	a.SignedByHomeowner = true
	assert.NoError(t, a.CanFundEscrow())

	a.EscrowFunded = true
	assert.Error(t, a.CanFundEscrow(), "already funded")
}

func TestAgreement_TokenMatches(t *testing.T) {
	token := uuid.New()
	a := &Agreement{HomeownerAccessToken: token}

	assert.True(t, a.TokenMatches(token))
	assert.False(t, a.TokenMatches(uuid.New()))
	assert.False(t, (&Agreement{}).TokenMatches(uuid.Nil))
}

func TestAgreement_PDFFileName(t *testing.T) {
	id := uuid.MustParse("6f1c2a9e-0d7b-4c52-9a55-0f8a1f0b3c11")
	a := &Agreement{ID: id}
	assert.Equal(t, "agreement_6f1c2a9e-0d7b-4c52-9a55-0f8a1f0b3c11_v3.pdf", a.PDFFileName(3))
}

func TestMilestone_IsLate(t *testing.T) {
	due := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	m := &Milestone{CompletionDate: due}

	assert.False(t, m.IsLate(due.Add(20*time.Hour)))
	assert.True(t, m.IsLate(due.AddDate(0, 0, 1)))

	m.Completed = true
	assert.False(t, m.IsLate(due.AddDate(0, 0, 5)))
}

func TestInvoice_StateMachine(t *testing.T) {
	now := time.Now()

	inv := &Invoice{Status: string(valueobject.InvoiceStatusPending)}
	require.NoError(t, inv.Approve(now, false))
	assert.Equal(t, "approved", inv.Status)
	assert.Error(t, inv.Dispute("late", DisputeByHomeowner, now))
	require.NoError(t, inv.MarkPaid(now))
	assert.Equal(t, "paid", inv.Status)
	assert.NotNil(t, inv.PaidAt)

	disputed := &Invoice{Status: string(valueobject.InvoiceStatusPending)}
	require.NoError(t, disputed.Dispute("incomplete work", DisputeByHomeowner, now))
	assert.Equal(t, "disputed", disputed.Status)
	assert.Equal(t, "homeowner", disputed.DisputeBy)
	assert.Equal(t, "incomplete work", disputed.DisputeReason)
	assert.Error(t, disputed.Approve(now, false))

	pending := &Invoice{Status: string(valueobject.InvoiceStatusPending)}
	assert.Error(t, pending.MarkPaid(now))
	assert.Error(t, pending.Dispute(" ", DisputeByHomeowner, now))
	assert.Equal(t, "pending", pending.Status)
}

func TestDispute_OpenRequiresFee(t *testing.T) {
	d := &Dispute{Status: string(valueobject.DisputeStatusInitiated)}
	assert.Error(t, d.Open())
	assert.False(t, d.FreezesEscrow())

	d.FeePaid = true
	require.NoError(t, d.Open())
	assert.Equal(t, "open", d.Status)
	assert.True(t, d.FreezesEscrow())

	admin := uuid.New()
	require.NoError(t, d.Resolve(valueobject.DisputeStatusResolvedHomeowner, "refund", admin, time.Now()))
	assert.False(t, d.FreezesEscrow())
	assert.Equal(t, &admin, d.ResolvedBy)
	assert.Error(t, d.Resolve(valueobject.DisputeStatusOpen, "", admin, time.Now()))
}

func TestOnboardingStatusFor(t *testing.T) {
	assert.Equal(t, OnboardingNotStarted, OnboardingStatusFor(false, true, true, true))
	assert.Equal(t, OnboardingIncomplete, OnboardingStatusFor(true, false, false, false))
	assert.Equal(t, OnboardingPending, OnboardingStatusFor(true, false, false, true))
	assert.Equal(t, OnboardingComplete, OnboardingStatusFor(true, true, true, true))
}

func TestConversation_Participants(t *testing.T) {
	contractor, homeowner := uuid.New(), uuid.New()
	c := &Conversation{ContractorUserID: contractor}

	assert.True(t, c.HasParticipant(contractor))
	assert.False(t, c.HasParticipant(homeowner))

	c.HomeownerUserID = &homeowner
	assert.True(t, c.HasParticipant(homeowner))
	assert.Equal(t, []uuid.UUID{contractor, homeowner}, c.Participants())
}
