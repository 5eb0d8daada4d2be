package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/payments"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

// memInvoices keeps invoice contexts in memory. Transition applies to a copy
// and only stores it when apply succeeds.
type memInvoices struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*repository.InvoiceContext
	transfers map[uuid.UUID]string
	lastList  repository.InvoiceFilter
}

func newMemInvoices() *memInvoices {
	return &memInvoices{rows: map[uuid.UUID]*repository.InvoiceContext{}, transfers: map[uuid.UUID]string{}}
}

func (m *memInvoices) put(ic *repository.InvoiceContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[ic.Invoice.ID] = ic
}

func (m *memInvoices) invoice(id uuid.UUID) *models.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Invoice
}

func (m *memInvoices) List(ctx context.Context, f repository.InvoiceFilter, page common.PageRequest) ([]models.Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = f
	var out []models.Invoice
	for _, ic := range m.rows {
		if f.AgreementID != nil && ic.Invoice.AgreementID != *f.AgreementID {
			continue
		}
		out = append(out, *ic.Invoice)
	}
	return out, len(out), nil
}

func (m *memInvoices) Load(ctx context.Context, id uuid.UUID) (*repository.InvoiceContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ic, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrInvoiceNotFound
	}
	return copyContext(ic), nil
}

func (m *memInvoices) Transition(ctx context.Context, id uuid.UUID, apply func(ic *repository.InvoiceContext) error) (*repository.InvoiceContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ic, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrInvoiceNotFound
	}
	next := copyContext(ic)
	if err := apply(next); err != nil {
		return nil, err
	}
	m.rows[id] = next
	return copyContext(next), nil
}

func (m *memInvoices) SetTransfer(ctx context.Context, id uuid.UUID, transferID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[id] = transferID
	m.rows[id].Invoice.StripeTransferID = transferID
	return nil
}

func (m *memInvoices) ListAutoReleaseDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Invoice
	for _, ic := range m.rows {
		if ic.Invoice.Status == "pending" && !ic.Invoice.CreatedAt.After(cutoff) {
			out = append(out, *ic.Invoice)
		}
	}
	return out, nil
}

func copyContext(ic *repository.InvoiceContext) *repository.InvoiceContext {
	inv, a := *ic.Invoice, *ic.Agreement
	out := &repository.InvoiceContext{Invoice: &inv, Agreement: &a}
	if ic.Milestone != nil {
		ms := *ic.Milestone
		out.Milestone = &ms
	}
	return out
}

type invoiceFixture struct {
	*world
	svc      *InvoiceService
	repo     *memInvoices
	gateway  *mockGateway
	notifier *recordingNotifier
	now      time.Time
}

func newInvoiceFixture() *invoiceFixture {
	f := &invoiceFixture{
		world:    newWorld(),
		repo:     newMemInvoices(),
		gateway:  new(mockGateway),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewInvoiceService(f.repo, fakeAgreements{}, f.contractors, f.access, f.gateway, f.notifier, 0)
	f.svc.now = func() time.Time { return f.now }
	return f
}

// pending stores a pending invoice on a funded agreement, created at.
func (f *invoiceFixture) pending(created time.Time) *repository.InvoiceContext {
	a := signedAgreement(f.agreement())
	a.EscrowFunded = true
	ms := &models.Milestone{ID: uuid.New(), AgreementID: a.ID, OrderNum: 1, Title: "Demo", Amount: decimal.RequireFromString("500.00")}
	inv := &models.Invoice{
		ID:            uuid.New(),
		AgreementID:   a.ID,
		MilestoneID:   ms.ID,
		InvoiceNumber: "INV-20260601-01-1",
		Amount:        ms.Amount,
		Status:        "pending",
		CreatedAt:     created,
	}
	ic := &repository.InvoiceContext{Invoice: inv, Agreement: a, Milestone: ms}
	f.repo.put(ic)
	return ic
}

func TestInvoiceService_Approve_ReleasesEscrow(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	ic := f.pending(f.now.Add(-time.Hour))

	f.gateway.On("CreateTransfer", ctx, mock.MatchedBy(func(in payments.TransferInput) bool {
		return in.Destination == "acct_123" &&
			in.InvoiceID == ic.Invoice.ID &&
			in.Amount.Equal(decimal.RequireFromString("500")) &&
			in.TransferGroup == ic.Agreement.ID.String()
	})).Return("tr_1", nil).Once()

	inv, err := f.svc.Approve(ctx, f.asHomeowner(), ic.Invoice.ID)
	require.NoError(t, err)

	assert.Equal(t, "approved", inv.Status)
	assert.False(t, inv.AutoReleased)
	require.NotNil(t, inv.ApprovedAt)
	assert.Equal(t, "tr_1", inv.StripeTransferID)
	assert.Equal(t, "tr_1", f.repo.transfers[ic.Invoice.ID])
	assert.Equal(t, []string{EventInvoiceApproved}, f.notifier.events())
	f.gateway.AssertExpectations(t)
}

func TestInvoiceService_Approve_ByMagicLink(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	ic := f.pending(f.now)
	f.gateway.On("CreateTransfer", ctx, mock.Anything).Return("tr_2", nil)

	_, err := f.svc.Approve(ctx, TokenActor(uuid.New()), ic.Invoice.ID)
	assert.True(t, apperror.IsForbidden(err))

	inv, err := f.svc.Approve(ctx, TokenActor(ic.Agreement.HomeownerAccessToken), ic.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", inv.Status)
}

func TestInvoiceService_Approve_OnlyHomeowner(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	ic := f.pending(f.now)

	_, err := f.svc.Approve(ctx, f.asContractor(), ic.Invoice.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.svc.Approve(ctx, f.asStranger(), ic.Invoice.ID)
	assert.True(t, apperror.IsForbidden(err))

	assert.Equal(t, "pending", f.repo.invoice(ic.Invoice.ID).Status)
	f.gateway.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything)
}

func TestInvoiceService_Approve_FrozenEscrow(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	ic := f.pending(f.now)
	ic.Milestone.EscrowFrozen = true

	_, err := f.svc.Approve(ctx, f.asHomeowner(), ic.Invoice.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, "pending", f.repo.invoice(ic.Invoice.ID).Status)
	assert.Empty(t, f.notifier.events())
}

func TestInvoiceService_Approve_NotPending(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	ic := f.pending(f.now)
	ic.Invoice.Status = "disputed"

	_, err := f.svc.Approve(ctx, f.asHomeowner(), ic.Invoice.ID)
	assert.True(t, apperror.IsValidation(err))
}

func TestInvoiceService_Approve_PayoutsDisabledKeepsApproval(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	f.contractor.PayoutsEnabled = false
	ic := f.pending(f.now)

	inv, err := f.svc.Approve(ctx, f.asHomeowner(), ic.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", inv.Status)
	assert.Empty(t, inv.StripeTransferID)
	f.gateway.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything)
}

func TestInvoiceService_Approve_TransferFailureKeepsApproval(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	ic := f.pending(f.now)
	f.gateway.On("CreateTransfer", ctx, mock.Anything).Return("", errors.New("insufficient platform balance"))

	inv, err := f.svc.Approve(ctx, f.asHomeowner(), ic.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", f.repo.invoice(ic.Invoice.ID).Status)
	assert.Empty(t, inv.StripeTransferID)
	assert.Empty(t, f.repo.transfers)
}

func TestInvoiceService_Dispute(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	ic := f.pending(f.now)

	_, err := f.svc.Dispute(ctx, f.asHomeowner(), ic.Invoice.ID, "   ")
	assert.True(t, apperror.IsValidation(err))

	inv, err := f.svc.Dispute(ctx, f.asHomeowner(), ic.Invoice.ID, "Tiles are cracked")
	require.NoError(t, err)
	assert.Equal(t, "disputed", inv.Status)
	assert.Equal(t, models.DisputeByHomeowner, inv.DisputeBy)
	assert.Equal(t, "Tiles are cracked", inv.DisputeReason)
	assert.Equal(t, []string{EventInvoiceDisputed}, f.notifier.events())
}

func TestInvoiceService_MarkPaid(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	ic := f.pending(f.now)

	_, err := f.svc.MarkPaid(ctx, f.asContractor(), ic.Invoice.ID)
	assert.True(t, apperror.IsValidation(err), "pending invoices cannot be paid")

	ic.Invoice.Status = "approved"
	f.repo.put(ic)

	_, err = f.svc.MarkPaid(ctx, f.asHomeowner(), ic.Invoice.ID)
	assert.True(t, apperror.IsForbidden(err))

	inv, err := f.svc.MarkPaid(ctx, f.asContractor(), ic.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", inv.Status)
	assert.NotNil(t, inv.PaidAt)
}

func TestInvoiceService_ReleaseDue(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()

	due := f.pending(f.now.Add(-73 * time.Hour))
	fresh := f.pending(f.now.Add(-time.Hour))
	frozen := f.pending(f.now.Add(-100 * time.Hour))
	frozen.Agreement.EscrowFrozen = true

	f.gateway.On("CreateTransfer", ctx, mock.MatchedBy(func(in payments.TransferInput) bool {
		return in.InvoiceID == due.Invoice.ID
	})).Return("tr_auto", nil).Once()

	released, err := f.svc.ReleaseDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got := f.repo.invoice(due.Invoice.ID)
	assert.Equal(t, "approved", got.Status)
	assert.True(t, got.AutoReleased)
	assert.Equal(t, "tr_auto", got.StripeTransferID)
	assert.Equal(t, "pending", f.repo.invoice(fresh.Invoice.ID).Status)
	assert.Equal(t, "pending", f.repo.invoice(frozen.Invoice.ID).Status)
	assert.Equal(t, []string{EventInvoiceApproved}, f.notifier.events())
	f.gateway.AssertExpectations(t)

	// A second sweep finds nothing left to release.
	released, err = f.svc.ReleaseDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestInvoiceService_List_Scoping(t *testing.T) {
	f := newInvoiceFixture()
	ctx := context.Background()
	f.pending(f.now)

	spoofed := uuid.New()
	_, _, err := f.svc.List(ctx, f.asContractor(), repository.InvoiceFilter{ContractorID: &spoofed}, common.PageRequest{})
	require.NoError(t, err)
	require.NotNil(t, f.repo.lastList.ContractorID)
	assert.Equal(t, f.contractor.ID, *f.repo.lastList.ContractorID)

	items, total, err := f.svc.List(ctx, f.asStranger(), repository.InvoiceFilter{}, common.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}
