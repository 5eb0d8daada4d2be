package dto

import "github.com/google/uuid"

// SignRequest carries the typed signature of either party.
type SignRequest struct {
	TypedName string `json:"typed_name" binding:"required"`
}

type MergeAgreementsRequest struct {
	AgreementIDs []uuid.UUID `json:"agreement_ids" binding:"required,min=2"`
	PrimaryID    *uuid.UUID  `json:"primary_id"`
}

type DisputeInvoiceRequest struct {
	Reason string `json:"reason"`
}

type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type MessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type EmailConfirmRequest struct {
	Token string `json:"token" binding:"required"`
}
