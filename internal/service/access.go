package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

// Actor is whoever calls an operation: a logged-in user, or the holder of
// an agreement's magic-link token.
type Actor struct {
	UserID uuid.UUID
	Role   valueobject.Role
	Token  uuid.UUID
}

// SessionActor builds the actor of an authenticated request.
func SessionActor(userID uuid.UUID, role string) Actor {
	return Actor{UserID: userID, Role: valueobject.Role(role)}
}

// TokenActor builds the actor of a magic-link request.
func TokenActor(token uuid.UUID) Actor {
	return Actor{Role: valueobject.RoleHomeowner, Token: token}
}

func (a Actor) IsAdmin() bool {
	return a.Role == valueobject.RoleAdmin && a.UserID != uuid.Nil
}

func (a Actor) viaToken() bool {
	return a.Token != uuid.Nil
}

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ContractorLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Contractor, error)
}

type HomeownerLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Homeowner, error)
}

// HomeownerDirectory also finds homeowners by email.
type HomeownerDirectory interface {
	HomeownerLookup
	GetByEmail(ctx context.Context, email string) (*models.Homeowner, error)
}

// Access decides which side of an agreement an actor is on.
type Access struct {
	users       UserLookup
	contractors ContractorLookup
	homeowners  HomeownerDirectory
}

func NewAccess(users UserLookup, contractors ContractorLookup, homeowners HomeownerDirectory) *Access {
	return &Access{users: users, contractors: contractors, homeowners: homeowners}
}

// PartyOf returns the actor's role on a: contractor, homeowner or admin.
// Anyone else gets a forbidden error.
func (x *Access) PartyOf(ctx context.Context, actor Actor, a *models.Agreement) (valueobject.Role, error) {
	if actor.viaToken() {
		if a.TokenMatches(actor.Token) {
			return valueobject.RoleHomeowner, nil
		}
		return "", apperror.ErrForbidden
	}
	if actor.UserID == uuid.Nil {
		return "", apperror.ErrUnauthorized
	}
	if actor.IsAdmin() {
		return valueobject.RoleAdmin, nil
	}

	switch actor.Role {
	case valueobject.RoleContractor:
		c, err := x.contractors.GetByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrContractorNotFound) {
				return "", apperror.ErrForbidden
			}
			return "", fmt.Errorf("access: load contractor: %w", err)
		}
		if c.ID == a.ContractorID {
			return valueobject.RoleContractor, nil
		}
	case valueobject.RoleHomeowner:
		ok, err := x.isHomeowner(ctx, actor.UserID, a.HomeownerID)
		if err != nil {
			return "", err
		}
		if ok {
			return valueobject.RoleHomeowner, nil
		}
	}
	return "", apperror.ErrForbidden
}

// isHomeowner matches a session user to the homeowner row, by link or by email.
func (x *Access) isHomeowner(ctx context.Context, userID, homeownerID uuid.UUID) (bool, error) {
	h, err := x.homeowners.GetByID(ctx, homeownerID)
	if err != nil {
		if errors.Is(err, repository.ErrHomeownerNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("access: load homeowner: %w", err)
	}
	if h.UserID != nil && *h.UserID == userID {
		return true, nil
	}
	u, err := x.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("access: load user: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(u.Email), strings.TrimSpace(h.Email)), nil
}

// Require is PartyOf restricted to the given roles.
func (x *Access) Require(ctx context.Context, actor Actor, a *models.Agreement, roles ...valueobject.Role) (valueobject.Role, error) {
	role, err := x.PartyOf(ctx, actor, a)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if r == role {
			return role, nil
		}
	}
	return "", apperror.ErrForbidden
}

// ContractorOf returns the contractor profile of a contractor session.
func (x *Access) ContractorOf(ctx context.Context, actor Actor) (*models.Contractor, error) {
	if actor.UserID == uuid.Nil || actor.viaToken() {
		return nil, apperror.ErrUnauthorized
	}
	if actor.Role != valueobject.RoleContractor {
		return nil, apperror.Forbidden("only contractors can perform this action")
	}
	c, err := x.contractors.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, mapErr("access", err)
	}
	return c, nil
}

// HomeownerOf finds the homeowner record of a homeowner session by email.
// It returns nil when no contractor has addressed an agreement to them yet.
func (x *Access) HomeownerOf(ctx context.Context, actor Actor) (*models.Homeowner, error) {
	if actor.UserID == uuid.Nil || actor.viaToken() {
		return nil, apperror.ErrUnauthorized
	}
	u, err := x.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, mapErr("access: load user", err)
	}
	h, err := x.homeowners.GetByEmail(ctx, u.Email)
	if err != nil {
		if errors.Is(err, repository.ErrHomeownerNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("access: load homeowner: %w", err)
	}
	return h, nil
}

var notFound = map[error]*apperror.AppError{
	repository.ErrAgreementNotFound:    apperror.ErrAgreementNotFound,
	repository.ErrInvoiceNotFound:      apperror.ErrInvoiceNotFound,
	repository.ErrMilestoneNotFound:    apperror.ErrMilestoneNotFound,
	repository.ErrDisputeNotFound:      apperror.ErrDisputeNotFound,
	repository.ErrProjectNotFound:      apperror.NotFound("project not found"),
	repository.ErrUserNotFound:         apperror.NotFound("user not found"),
	repository.ErrContractorNotFound:   apperror.NotFound("contractor profile not found"),
	repository.ErrHomeownerNotFound:    apperror.NotFound("homeowner not found"),
	repository.ErrAttachmentNotFound:   apperror.NotFound("attachment not found"),
	repository.ErrExpenseNotFound:      apperror.NotFound("expense not found"),
	repository.ErrNotificationNotFound: apperror.NotFound("notification not found"),
	repository.ErrConversationNotFound: apperror.NotFound("conversation not found"),
	repository.ErrWebhookEventNotFound: apperror.NotFound("webhook event not found"),
	common.ErrNotFound:                 apperror.NotFound("not found"),
}

// mapErr turns repository sentinels into typed errors and wraps the rest with op.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	for sentinel, appErr := range notFound {
		if errors.Is(err, sentinel) {
			return apperror.Wrap(err, appErr.Code, appErr.Message)
		}
	}
	if errors.Is(err, repository.ErrEmailTaken) {
		return apperror.Wrap(err, apperror.ErrCodeConflict, "a user with this email already exists")
	}
	if errors.Is(err, repository.ErrProjectNumberExhausted) {
		return apperror.Wrap(err, apperror.ErrCodeConflict, "could not allocate a project number, retry")
	}
	return fmt.Errorf("%s: %w", op, err)
}
