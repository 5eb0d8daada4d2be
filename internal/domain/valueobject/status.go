package valueobject

import "github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"

type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusSigned    ProjectStatus = "signed"
	ProjectStatusFunded    ProjectStatus = "funded"
	ProjectStatusCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusSigned, ProjectStatusFunded, ProjectStatusCompleted:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusCompleted InvoiceStatus = "completed"
	InvoiceStatusApproved  InvoiceStatus = "approved"
	InvoiceStatusDisputed  InvoiceStatus = "disputed"
	InvoiceStatusPaid      InvoiceStatus = "paid"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusPending:   {InvoiceStatusApproved, InvoiceStatusDisputed},
	InvoiceStatusCompleted: {},
	InvoiceStatusApproved:  {InvoiceStatusPaid},
	InvoiceStatusDisputed:  {},
	InvoiceStatusPaid:      {},
}

func (s InvoiceStatus) IsValid() bool {
	_, ok := invoiceTransitions[s]
	return ok
}

// CanTransitionTo reports whether the user-driven state machine allows s -> next.
// Disputed invoices leave that state only through dispute resolution.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return contains(invoiceTransitions[s], next)
}

func NewInvoiceStatus(status string) (InvoiceStatus, error) {
	s := InvoiceStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "invalid invoice status")
	}
	return s, nil
}

type DisputeStatus string

const (
	DisputeStatusInitiated          DisputeStatus = "initiated"
	DisputeStatusOpen               DisputeStatus = "open"
	DisputeStatusUnderReview        DisputeStatus = "under_review"
	DisputeStatusResolvedContractor DisputeStatus = "resolved_contractor"
	DisputeStatusResolvedHomeowner  DisputeStatus = "resolved_homeowner"
	DisputeStatusCanceled           DisputeStatus = "canceled"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusInitiated:          {DisputeStatusOpen, DisputeStatusCanceled},
	DisputeStatusOpen:               {DisputeStatusUnderReview, DisputeStatusResolvedContractor, DisputeStatusResolvedHomeowner, DisputeStatusCanceled},
	DisputeStatusUnderReview:        {DisputeStatusResolvedContractor, DisputeStatusResolvedHomeowner, DisputeStatusCanceled},
	DisputeStatusResolvedContractor: {},
	DisputeStatusResolvedHomeowner:  {},
	DisputeStatusCanceled:           {},
}

func (s DisputeStatus) IsValid() bool {
	_, ok := disputeTransitions[s]
	return ok
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	return contains(disputeTransitions[s], next)
}

// Active reports whether the dispute still freezes escrow.
func (s DisputeStatus) Active() bool {
	return s == DisputeStatusOpen || s == DisputeStatusUnderReview
}

// IsResolution reports whether s is one of the administrative outcomes.
func (s DisputeStatus) IsResolution() bool {
	return s == DisputeStatusResolvedContractor || s == DisputeStatusResolvedHomeowner || s == DisputeStatusCanceled
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "invalid dispute status")
	}
	return s, nil
}

type Role string

const (
	RoleContractor Role = "contractor"
	RoleHomeowner  Role = "homeowner"
	RoleAdmin      Role = "admin"
)

func (r Role) IsParty() bool {
	return r == RoleContractor || r == RoleHomeowner
}

func NewRole(role string) (Role, error) {
	r := Role(role)
	if !r.IsParty() && r != RoleAdmin {
		return "", apperror.New(apperror.ErrCodeValidation, "role must be contractor or homeowner")
	}
	return r, nil
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
