package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/mail"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

// mockAuthRepository is an in-memory AuthRepository.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	sessions     map[string]*models.Session
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.IsActive = true
	user.CreatedAt = time.Now()
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error {
	user, ok := m.usersByID[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (m *mockAuthRepository) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	user, ok := m.usersByID[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.EmailVerified = true
	return nil
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) GetSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	if s, ok := m.sessions[refreshToken]; ok {
		return s, nil
	}
	return nil, common.ErrNotFound
}

func (m *mockAuthRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	delete(m.sessions, refreshToken)
	return nil
}

func (m *mockAuthRepository) DeleteAllSessions(ctx context.Context, userID uuid.UUID) error {
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *mockAuthRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	contractors []*models.Contractor
	linked      map[string]uuid.UUID
}

func (f *fakeProfiles) CreateContractor(ctx context.Context, c *models.Contractor) error {
	c.ID = uuid.New()
	f.contractors = append(f.contractors, c)
	return nil
}

func (f *fakeProfiles) LinkHomeowner(ctx context.Context, email string, userID uuid.UUID) error {
	if f.linked == nil {
		f.linked = map[string]uuid.UUID{}
	}
	f.linked[email] = userID
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Message(nil), f.sent...)
}

var tokenInLink = regexp.MustCompile(`token=(\S+)`)

func newAuthService() (*AuthService, *mockAuthRepository, *fakeProfiles, *fakeMailer) {
	repo := newMockAuthRepository()
	profiles := &fakeProfiles{}
	mailer := &fakeMailer{}
	tokens := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	return NewAuthService(repo, profiles, tokens, mailer, "https://app.myhomebro.com/"), repo, profiles, mailer
}

func TestAuthService_RegisterContractorAndLogin(t *testing.T) {
	svc, repo, profiles, mailer := newAuthService()
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{
		Email:        "Bob@Builder.com",
		Password:     "Passw0rdX",
		Role:         "contractor",
		BusinessName: "Bob Builds LLC",
	}, map[string]string{"ip": "127.0.0.1"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.User.ID)
	assert.Equal(t, "bob@builder.com", res.User.Email)
	require.Len(t, profiles.contractors, 1)
	assert.Equal(t, res.User.ID, profiles.contractors[0].UserID)
	assert.Len(t, repo.sessions, 1)
	require.Len(t, mailer.messages(), 1)
	assert.Contains(t, mailer.messages()[0].Body, "https://app.myhomebro.com/verify-email?token=")

	login, err := svc.Login(ctx, LoginInput{Email: "bob@builder.com", Password: "Passw0rdX"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, login.TokenPair.AccessToken)

	_, err = svc.Login(ctx, LoginInput{Email: "bob@builder.com", Password: "wrong"}, nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthService_RegisterHomeownerLinksRecord(t *testing.T) {
	svc, _, profiles, _ := newAuthService()

	res, err := svc.Register(context.Background(), RegisterInput{
		Email: "hannah@example.com", Password: "Passw0rdX", Role: "homeowner",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, profiles.linked["hannah@example.com"])
	assert.Empty(t, profiles.contractors)
}

func TestAuthService_RegisterRejects(t *testing.T) {
	svc, _, _, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "short", Role: "contractor"}, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "Passw0rdX", Role: "admin"}, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "Passw0rdX", Role: "contractor"}, nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "Passw0rdX", Role: "contractor"}, nil)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
}

func TestAuthService_RefreshRotatesSession(t *testing.T) {
	svc, repo, _, _ := newAuthService()
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Passw0rdX"), bcrypt.MinCost)
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: string(hash), Role: "contractor", IsActive: true}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	login, err := svc.Login(ctx, LoginInput{Email: user.Email, Password: "Passw0rdX"}, nil)
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, login.TokenPair.RefreshToken, nil)
	require.NoError(t, err)
	assert.NotEqual(t, login.TokenPair.RefreshToken, pair.RefreshToken)

	_, err = svc.Refresh(ctx, login.TokenPair.RefreshToken, nil)
	assert.Error(t, err, "a rotated refresh token cannot be reused")
}

func TestAuthService_PasswordReset(t *testing.T) {
	svc, repo, _, mailer := newAuthService()
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("OldPassw0rd"), bcrypt.MinCost)
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: string(hash), IsActive: true, EmailVerified: true}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user
	repo.sessions["old"] = &models.Session{UserID: user.ID, RefreshToken: "old"}

	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.messages())

	require.NoError(t, svc.RequestPasswordReset(ctx, user.Email))
	require.Len(t, mailer.messages(), 1)
	token := tokenInLink.FindStringSubmatch(mailer.messages()[0].Body)[1]

	assert.Error(t, svc.ConfirmEmail(ctx, token), "reset token must not verify email")
	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "NewPassw0rd"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("NewPassw0rd")))
	assert.Empty(t, repo.sessions)
}

func TestAuthService_ConfirmEmail(t *testing.T) {
	svc, repo, _, mailer := newAuthService()
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Email: "v@example.com", Password: "Passw0rdX", Role: "homeowner"}, nil)
	require.NoError(t, err)
	token := tokenInLink.FindStringSubmatch(mailer.messages()[0].Body)[1]

	require.NoError(t, svc.ConfirmEmail(ctx, token))
	assert.True(t, repo.usersByID[res.User.ID].EmailVerified)
}

func TestTokenManager_PurposeTokensAreNotAccessTokens(t *testing.T) {
	tm := NewTokenManager("a", "r", time.Minute, time.Hour)
	id := uuid.New()

	tok, err := tm.GeneratePurpose(id, PurposeVerifyEmail, time.Minute)
	require.NoError(t, err)

	_, _, err = tm.ParseAccess(tok)
	assert.Error(t, err)

	got, err := tm.ParsePurpose(tok, PurposeVerifyEmail)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
