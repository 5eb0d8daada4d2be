package models

// Stripe Connect onboarding states stored on contractors.onboarding_status.
const (
	OnboardingNotStarted = "not_started"
	OnboardingIncomplete = "incomplete"
	OnboardingPending    = "pending_verification"
	OnboardingComplete   = "complete"
)

// Warranty types.
const (
	WarrantyDefault = "default"
	WarrantyCustom  = "custom"
)

// Attachment categories shown in the agreement PDF.
const (
	AttachmentCategoryWarranty = "warranty"
	AttachmentCategoryPlans    = "plans"
	AttachmentCategoryPermit   = "permit"
	AttachmentCategoryOther    = "other"
)

// DisputeByHomeowner is written to invoices.dispute_by when the homeowner disputes.
const DisputeByHomeowner = "homeowner"

// Webhook event processing states.
const (
	WebhookStatusReceived  = "received"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
	WebhookStatusIgnored   = "ignored"
)

// ValidAttachmentCategories lists accepted agreement attachment categories.
var ValidAttachmentCategories = map[string]struct{}{
	AttachmentCategoryWarranty: {},
	AttachmentCategoryPlans:    {},
	AttachmentCategoryPermit:   {},
	AttachmentCategoryOther:    {},
}
