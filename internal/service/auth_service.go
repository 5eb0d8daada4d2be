package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/mail"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/validation"
)

const (
	passwordResetTTL = time.Hour
	verifyEmailTTL   = 72 * time.Hour
)

// AuthRepository is what AuthService needs from the user store.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error
	MarkEmailVerified(ctx context.Context, userID uuid.UUID) error
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	DeleteAllSessions(ctx context.Context, userID uuid.UUID) error
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
}

// ProfileCreator attaches the role-specific profile of a new user.
type ProfileCreator interface {
	CreateContractor(ctx context.Context, c *models.Contractor) error
	LinkHomeowner(ctx context.Context, email string, userID uuid.UUID) error
}

// RepositoryProfiles adapts the contractor and homeowner repositories to ProfileCreator.
type RepositoryProfiles struct {
	Contractors interface {
		Create(ctx context.Context, c *models.Contractor) error
	}
	Homeowners interface {
		LinkUser(ctx context.Context, email string, userID uuid.UUID) error
	}
}

func (p RepositoryProfiles) CreateContractor(ctx context.Context, c *models.Contractor) error {
	return p.Contractors.Create(ctx, c)
}

func (p RepositoryProfiles) LinkHomeowner(ctx context.Context, email string, userID uuid.UUID) error {
	return p.Homeowners.LinkUser(ctx, email, userID)
}

// AuthService handles registration, login, sessions and emailed account tokens.
type AuthService struct {
	repo         AuthRepository
	profiles     ProfileCreator
	tokenManager *TokenManager
	mailer       mail.Mailer
	frontendURL  string
}

type RegisterInput struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	FirstName    string `json:"first_name" validate:"max=100"`
	LastName     string `json:"last_name" validate:"max=100"`
	Role         string `json:"role" validate:"required,oneof=contractor homeowner"`
	BusinessName string `json:"business_name" validate:"max=200"`
	Phone        string `json:"phone" validate:"max=30"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User      *models.User `json:"user"`
	TokenPair *TokenPair   `json:"tokens"`
}

func NewAuthService(repo AuthRepository, profiles ProfileCreator, tokenManager *TokenManager, mailer mail.Mailer, frontendURL string) *AuthService {
	return &AuthService{
		repo:         repo,
		profiles:     profiles,
		tokenManager: tokenManager,
		mailer:       mailer,
		frontendURL:  strings.TrimRight(frontendURL, "/"),
	}
}

// Register creates the user and its profile. Contractors get a contractor
// row; homeowners are linked to any homeowner record carrying their email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.Validation("invalid input", map[string][]string{"email": {err.Error()}})
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Validation("invalid input", map[string][]string{"password": {err.Error()}})
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperror.Conflict("a user with this email already exists")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("auth service: lookup email %w", err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(passHash),
		Role:         in.Role,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, mapErr("auth service: create user", err)
	}

	switch valueobject.Role(in.Role) {
	case valueobject.RoleContractor:
		c := &models.Contractor{UserID: user.ID, BusinessName: strings.TrimSpace(in.BusinessName), Phone: in.Phone}
		if err := s.profiles.CreateContractor(ctx, c); err != nil {
			return nil, mapErr("auth service: create contractor", err)
		}
	case valueobject.RoleHomeowner:
		if err := s.profiles.LinkHomeowner(ctx, user.Email, user.ID); err != nil {
			return nil, mapErr("auth service: link homeowner", err)
		}
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	if err := s.RequestEmailVerification(ctx, user.ID); err != nil {
		logger.L().WithError(err).WithField("user_id", user.ID).Warn("auth service: verification email not sent")
	}

	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Login checks credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth service: lookup email %w", err)
	}
	if !user.IsActive {
		return nil, apperror.Forbidden("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLoginAt(ctx, user.ID); err != nil {
		logger.L().WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("auth service: could not update last_login_at")
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Refresh rotates a refresh token. A token without a stored session (already
// rotated or logged out) is rejected.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta map[string]string) (*TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "invalid refresh token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "invalid refresh token")
	}

	session, err := s.repo.GetSession(ctx, oldToken)
	if err != nil || session.UserID != userID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "session expired")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapErr("auth service: refresh", err)
	}
	if err := s.repo.DeleteSession(ctx, oldToken); err != nil {
		return nil, fmt.Errorf("auth service: drop old session %w", err)
	}
	return s.openSession(ctx, user, meta)
}

// Logout drops the session of refreshToken.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return fmt.Errorf("auth service: logout %w", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	return u, mapErr("auth service: me", err)
}

func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	return sessions, mapErr("auth service: list sessions", err)
}

// RequestPasswordReset emails a reset link. Unknown emails succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("auth service: lookup email %w", err)
	}
	token, err := s.tokenManager.GeneratePurpose(user.ID, PurposePasswordReset, passwordResetTTL)
	if err != nil {
		return fmt.Errorf("auth service: reset token %w", err)
	}
	return s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Reset your MyHomeBro password",
		Body:    fmt.Sprintf("Use this link within one hour to choose a new password:\n%s/reset-password?token=%s\n", s.frontendURL, token),
	})
}

// ConfirmPasswordReset sets a new password and ends every session.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	userID, err := s.tokenManager.ParsePurpose(token, PurposePasswordReset)
	if err != nil {
		return apperror.BadRequest("reset link is invalid or expired")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return apperror.Validation("invalid input", map[string][]string{"password": {err.Error()}})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth service: hash password %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return mapErr("auth service: update password", err)
	}
	if err := s.repo.DeleteAllSessions(ctx, userID); err != nil {
		return fmt.Errorf("auth service: drop sessions %w", err)
	}
	return nil
}

// RequestEmailVerification emails a verification link to an unverified user.
func (s *AuthService) RequestEmailVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return mapErr("auth service: verification", err)
	}
	if user.EmailVerified {
		return nil
	}
	token, err := s.tokenManager.GeneratePurpose(user.ID, PurposeVerifyEmail, verifyEmailTTL)
	if err != nil {
		return fmt.Errorf("auth service: verify token %w", err)
	}
	return s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Confirm your MyHomeBro email",
		Body:    fmt.Sprintf("Confirm your email address:\n%s/verify-email?token=%s\n", s.frontendURL, token),
	})
}

func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	userID, err := s.tokenManager.ParsePurpose(token, PurposeVerifyEmail)
	if err != nil {
		return apperror.BadRequest("verification link is invalid or expired")
	}
	return mapErr("auth service: confirm email", s.repo.MarkEmailVerified(ctx, userID))
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, meta map[string]string) (*TokenPair, error) {
	pair, _, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue tokens %w", err)
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	if ua, ok := meta["user_agent"]; ok {
		session.UserAgent = &ua
	}
	if ip, ok := meta["ip"]; ok {
		session.IPAddress = &ip
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("auth service: create session %w", err)
	}
	return pair, nil
}
