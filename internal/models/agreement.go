package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

// Agreement is the contract between a contractor and a homeowner for one project.
// ProjectSigned is computed by the database from the two signature flags.
type Agreement struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	ProjectID             uuid.UUID       `db:"project_id" json:"project_id"`
	ContractorID          uuid.UUID       `db:"contractor_id" json:"contractor_id"`
	HomeownerID           uuid.UUID       `db:"homeowner_id" json:"homeowner_id"`
	TotalCost             decimal.Decimal `db:"total_cost" json:"total_cost"`
	TotalTimeEstimateDays int             `db:"total_time_estimate_days" json:"total_time_estimate_days"`
	MilestoneCount        int             `db:"milestone_count" json:"milestone_count"`

	SignedByContractor      bool       `db:"signed_by_contractor" json:"signed_by_contractor"`
	ContractorSignatureName string     `db:"contractor_signature_name" json:"contractor_signature_name"`
	ContractorSignedIP      string     `db:"contractor_signed_ip" json:"-"`
	ContractorSignedAt      *time.Time `db:"contractor_signed_at" json:"contractor_signed_at,omitempty"`
	SignedByHomeowner       bool       `db:"signed_by_homeowner" json:"signed_by_homeowner"`
	HomeownerSignatureName  string     `db:"homeowner_signature_name" json:"homeowner_signature_name"`
	HomeownerSignedIP       string     `db:"homeowner_signed_ip" json:"-"`
	HomeownerSignedAt       *time.Time `db:"homeowner_signed_at" json:"homeowner_signed_at,omitempty"`
	ProjectSigned           bool       `db:"project_signed" json:"project_signed"`

	EscrowFunded    bool   `db:"escrow_funded" json:"escrow_funded"`
	EscrowFrozen    bool   `db:"escrow_frozen" json:"escrow_frozen"`
	PaymentIntentID string `db:"payment_intent_id" json:"-"`

	PDFVersion           int       `db:"pdf_version" json:"pdf_version"`
	PDFArchived          bool      `db:"pdf_archived" json:"pdf_archived"`
	HomeownerAccessToken uuid.UUID `db:"homeowner_access_token" json:"-"`

	GoverningState     string `db:"governing_state" json:"governing_state"`
	WarrantyType       string `db:"warranty_type" json:"warranty_type"`
	CustomWarrantyText string `db:"custom_warranty_text" json:"custom_warranty_text"`
	TermsSnapshot      string `db:"terms_snapshot" json:"-"`
	PrivacySnapshot    string `db:"privacy_snapshot" json:"-"`
	WarrantySnapshot   string `db:"warranty_snapshot" json:"-"`
	ClausesSnapshot    string `db:"clauses_snapshot" json:"-"`
	LegalVersion       string `db:"legal_version" json:"legal_version"`

	AmendmentNumber     int        `db:"amendment_number" json:"amendment_number"`
	OriginalAgreementID *uuid.UUID `db:"original_agreement_id" json:"original_agreement_id,omitempty"`
	IsArchived          bool       `db:"is_archived" json:"is_archived"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// IsFullySigned reports whether both parties have signed.
func (a *Agreement) IsFullySigned() bool {
	return a.SignedByContractor && a.SignedByHomeowner
}

// SignedBy reports whether role has already signed.
func (a *Agreement) SignedBy(role valueobject.Role) bool {
	switch role {
	case valueobject.RoleContractor:
		return a.SignedByContractor
	case valueobject.RoleHomeowner:
		return a.SignedByHomeowner
	}
	return false
}

// ApplySignature fills the signature slot of role. A second signature from the
// same role is rejected.
func (a *Agreement) ApplySignature(role valueobject.Role, typedName, ip string, at time.Time) error {
	if a.IsArchived {
		return apperror.BadRequest("archived agreements cannot be signed")
	}
	typedName = strings.TrimSpace(typedName)
	if typedName == "" {
		return apperror.Validation("signature name is required", map[string][]string{"signature_name": {"This field is required"}})
	}
	if a.SignedBy(role) {
		return apperror.BadRequest("agreement already signed by " + string(role))
	}

	signedAt := at.UTC()
	switch role {
	case valueobject.RoleContractor:
		a.SignedByContractor = true
		a.ContractorSignatureName = typedName
		a.ContractorSignedIP = ip
		a.ContractorSignedAt = &signedAt
	case valueobject.RoleHomeowner:
		a.SignedByHomeowner = true
		a.HomeownerSignatureName = typedName
		a.HomeownerSignedIP = ip
		a.HomeownerSignedAt = &signedAt
	default:
		return apperror.BadRequest("only the contractor or the homeowner can sign")
	}
	a.ProjectSigned = a.IsFullySigned()
	return nil
}

// CanFundEscrow checks the funding preconditions.
func (a *Agreement) CanFundEscrow() error {
	if a.IsArchived {
		return apperror.BadRequest("archived agreements cannot be funded")
	}
	if !a.IsFullySigned() {
		return apperror.BadRequest("both parties must sign before escrow can be funded")
	}
	if a.EscrowFunded {
		return apperror.BadRequest("escrow is already funded")
	}
	if !a.TotalCost.IsPositive() {
		return apperror.BadRequest("agreement total must be greater than zero")
	}
	return nil
}

// HasPendingEscrow reports an escrow PaymentIntent that Stripe has not
// confirmed yet. Such an agreement may still be charged.
func (a *Agreement) HasPendingEscrow() bool {
	return a.PaymentIntentID != "" && !a.EscrowFunded
}

// CanConfirmEscrow checks that a succeeded escrow payment may still be
// applied. Archived agreements were merged or amended away and get nothing.
func (a *Agreement) CanConfirmEscrow() error {
	if a.IsArchived {
		return apperror.Conflict("escrow payment arrived for archived agreement " + a.ID.String())
	}
	return nil
}

// NeedsLegalSnapshot reports whether legal text has not been frozen yet.
func (a *Agreement) NeedsLegalSnapshot() bool {
	return a.LegalVersion == ""
}

// TokenMatches compares a magic-link token with the agreement's access token.
func (a *Agreement) TokenMatches(token uuid.UUID) bool {
	return token != uuid.Nil && a.HomeownerAccessToken == token
}

// PDFFileName names the rendition of the given version.
func (a *Agreement) PDFFileName(version int) string {
	return fmt.Sprintf("agreement_%s_v%d.pdf", a.ID, version)
}

// AgreementAmendment links a merged or amended child agreement to its parent.
type AgreementAmendment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ParentID        uuid.UUID `db:"parent_id" json:"parent_id"`
	ChildID         uuid.UUID `db:"child_id" json:"child_id"`
	AmendmentNumber int       `db:"amendment_number" json:"amendment_number"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// AgreementPDF is one immutable rendition of an agreement.
type AgreementPDF struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AgreementID uuid.UUID `db:"agreement_id" json:"agreement_id"`
	Version     int       `db:"version" json:"version"`
	FilePath    string    `db:"file_path" json:"-"`
	IsFinal     bool      `db:"is_final" json:"is_final"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AgreementAttachment is a document appended to the agreement PDF.
type AgreementAttachment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AgreementID uuid.UUID `db:"agreement_id" json:"agreement_id"`
	UploadedBy  uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	Title       string    `db:"title" json:"title"`
	Category    string    `db:"category" json:"category"`
	FilePath    string    `db:"file_path" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
