package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/payments"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/storage"
)

var samplePDF = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

func newFileStore(t *testing.T) *storage.DocumentStorage {
	t.Helper()
	files, err := storage.NewDocumentStorage(t.TempDir(), 1)
	require.NoError(t, err)
	return files
}

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

type fakeContractors map[uuid.UUID]*models.Contractor

func (f fakeContractors) GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error) {
	if c, ok := f[id]; ok {
		return c, nil
	}
	return nil, repository.ErrContractorNotFound
}

func (f fakeContractors) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Contractor, error) {
	for _, c := range f {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, repository.ErrContractorNotFound
}

type fakeHomeowners map[uuid.UUID]*models.Homeowner

func (f fakeHomeowners) GetByID(ctx context.Context, id uuid.UUID) (*models.Homeowner, error) {
	if h, ok := f[id]; ok {
		return h, nil
	}
	return nil, repository.ErrHomeownerNotFound
}

func (f fakeHomeowners) GetByEmail(ctx context.Context, email string) (*models.Homeowner, error) {
	for _, h := range f {
		if strings.EqualFold(h.Email, email) {
			return h, nil
		}
	}
	return nil, repository.ErrHomeownerNotFound
}

// world is a contractor, a homeowner with an account, a stranger and staff.
type world struct {
	users       fakeUsers
	contractors fakeContractors
	homeowners  fakeHomeowners
	access      *Access

	contractorUser *models.User
	homeownerUser  *models.User
	strangerUser   *models.User
	adminUser      *models.User
	contractor     *models.Contractor
	homeowner      *models.Homeowner
}

func newWorld() *world {
	w := &world{
		users:       fakeUsers{},
		contractors: fakeContractors{},
		homeowners:  fakeHomeowners{},
	}
	add := func(email, role string) *models.User {
		u := &models.User{ID: uuid.New(), Email: email, Role: role, IsActive: true}
		w.users[u.ID] = u
		return u
	}
	w.contractorUser = add("bob@builder.com", "contractor")
	w.homeownerUser = add("hannah@example.com", "homeowner")
	w.strangerUser = add("eve@example.com", "homeowner")
	w.adminUser = add("staff@myhomebro.com", "admin")

	account := "acct_123"
	w.contractor = &models.Contractor{
		ID: uuid.New(), UserID: w.contractorUser.ID, BusinessName: "Bob Builds",
		StripeAccountID: &account, PayoutsEnabled: true, ChargesEnabled: true, DetailsSubmitted: true,
	}
	w.contractors[w.contractor.ID] = w.contractor

	w.homeowner = &models.Homeowner{ID: uuid.New(), FullName: "Hannah Home", Email: "Hannah@Example.com", State: "TX"}
	w.homeowners[w.homeowner.ID] = w.homeowner

	w.access = NewAccess(w.users, w.contractors, w.homeowners)
	return w
}

func (w *world) asContractor() Actor { return SessionActor(w.contractorUser.ID, "contractor") }
func (w *world) asHomeowner() Actor  { return SessionActor(w.homeownerUser.ID, "homeowner") }
func (w *world) asStranger() Actor   { return SessionActor(w.strangerUser.ID, "homeowner") }
func (w *world) asAdmin() Actor      { return SessionActor(w.adminUser.ID, "admin") }

func (w *world) agreement() *models.Agreement {
	return &models.Agreement{
		ID:                   uuid.New(),
		ProjectID:            uuid.New(),
		ContractorID:         w.contractor.ID,
		HomeownerID:          w.homeowner.ID,
		TotalCost:            decimal.RequireFromString("1500.00"),
		HomeownerAccessToken: uuid.New(),
		GoverningState:       "TX",
		WarrantyType:         models.WarrantyDefault,
	}
}

func signedAgreement(a *models.Agreement) *models.Agreement {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = a.ApplySignature("contractor", "Bob", "10.0.0.1", at)
	_ = a.ApplySignature("homeowner", "Hannah", "10.0.0.2", at)
	return a
}

// recordingNotifier keeps dispatched notes and runs background work inline.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []Note
	async int
}

func (r *recordingNotifier) Dispatch(ctx context.Context, a *models.Agreement, note Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
}

func (r *recordingNotifier) Go(ctx context.Context, fn func(ctx context.Context)) {
	r.mu.Lock()
	r.async++
	r.mu.Unlock()
	fn(ctx)
}

func (r *recordingNotifier) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Event
	}
	return out
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreatePaymentIntent(ctx context.Context, in payments.IntentInput) (*payments.Intent, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Intent), args.Error(1)
}

func (m *mockGateway) CreateExpressAccount(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	args := m.Called(ctx, accountID, refreshURL, returnURL)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) GetAccount(ctx context.Context, accountID string) (*payments.AccountState, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.AccountState), args.Error(1)
}

func (m *mockGateway) CreateTransfer(ctx context.Context, in payments.TransferInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

type fakeAgreements map[uuid.UUID]*models.Agreement

func (f fakeAgreements) GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, repository.ErrAgreementNotFound
}

func (f fakeAgreements) GetByToken(ctx context.Context, token uuid.UUID) (*models.Agreement, error) {
	for _, a := range f {
		if a.HomeownerAccessToken == token {
			return a, nil
		}
	}
	return nil, repository.ErrAgreementNotFound
}
