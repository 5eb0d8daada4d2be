//go:build integration

package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/db"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

// Run with: MYHOMEBRO_TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/repository/
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("MYHOMEBRO_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MYHOMEBRO_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = db.RunMigrations(ctx, conn, "../../migrations")
	require.NoError(t, err)
	return conn
}

type pgFixture struct {
	repo         *AgreementRepository
	conn         *sqlx.DB
	contractorID uuid.UUID
}

func newPGFixture(t *testing.T) *pgFixture {
	conn := openTestDB(t)
	ctx := context.Background()

	var userID, contractorID uuid.UUID
	require.NoError(t, conn.GetContext(ctx, &userID, `
		INSERT INTO users (email, password_hash, role) VALUES ($1, 'x', 'contractor') RETURNING id
	`, uuid.NewString()+"@builder.test"))
	require.NoError(t, conn.GetContext(ctx, &contractorID, `
		INSERT INTO contractors (user_id, business_name) VALUES ($1, 'Bob Builds') RETURNING id
	`, userID))

	return &pgFixture{repo: NewAgreementRepository(conn), conn: conn, contractorID: contractorID}
}

func (f *pgFixture) draft(t *testing.T, amounts ...int64) *AgreementDraft {
	t.Helper()
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	d := &AgreementDraft{
		Homeowner: &models.Homeowner{FullName: "Hana Homeowner", Email: uuid.NewString() + "@home.test", CreatedByContractorID: &f.contractorID},
		Project:   &models.Project{Title: "Kitchen remodel", ContractorID: f.contractorID},
		Agreement: &models.Agreement{GoverningState: "TX", TotalCost: decimal.Zero},
	}
	for i, amt := range amounts {
		d.Milestones = append(d.Milestones, models.Milestone{
			OrderNum:       i + 1,
			Title:          "Phase",
			Amount:         decimal.NewFromInt(amt),
			StartDate:      start,
			CompletionDate: start.AddDate(0, 0, 7),
			DurationDays:   7,
		})
		d.Agreement.TotalCost = d.Agreement.TotalCost.Add(decimal.NewFromInt(amt))
		d.Agreement.TotalTimeEstimateDays += 7
	}
	d.Agreement.MilestoneCount = len(d.Milestones)
	require.NoError(t, f.repo.CreateDraft(context.Background(), d))
	return d
}

func (f *pgFixture) signBoth(t *testing.T, id uuid.UUID) *models.Agreement {
	t.Helper()
	now := time.Now()
	a, err := f.repo.Sign(context.Background(), id, func(a *models.Agreement) error {
		if err := a.ApplySignature(valueobject.RoleContractor, "Bob Builder", "10.0.0.1", now); err != nil {
			return err
		}
		if err := a.ApplySignature(valueobject.RoleHomeowner, "Hana Homeowner", "10.0.0.2", now); err != nil {
			return err
		}
		a.ClausesSnapshot = `[{"title":"Right to cancel","body":"three days"}]`
		return nil
	})
	require.NoError(t, err)
	require.True(t, a.ProjectSigned)
	return a
}

func (f *pgFixture) invoiceCount(t *testing.T, agreementID uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, f.conn.GetContext(context.Background(), &n, `SELECT COUNT(*) FROM invoices WHERE agreement_id = $1`, agreementID))
	return n
}

func TestAgreementRepository_Sign_PersistsClausesSnapshot(t *testing.T) {
	f := newPGFixture(t)
	d := f.draft(t, 500)
	f.signBoth(t, d.Agreement.ID)

	got, err := f.repo.GetByID(context.Background(), d.Agreement.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"Right to cancel","body":"three days"}]`, got.ClausesSnapshot)
}

func TestAgreementRepository_FundEscrow_OnlyOnce(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	d := f.draft(t, 500, 700)
	f.signBoth(t, d.Agreement.ID)

	first, err := f.repo.FundEscrow(ctx, d.Agreement.ID, "pi_1")
	require.NoError(t, err)
	assert.False(t, first.AlreadyFunded)
	assert.Len(t, first.Invoices, 2)

	second, err := f.repo.FundEscrow(ctx, d.Agreement.ID, "pi_1")
	require.NoError(t, err)
	assert.True(t, second.AlreadyFunded)
	assert.Empty(t, second.Invoices)
	assert.Equal(t, 2, f.invoiceCount(t, d.Agreement.ID))

	p, err := f.repo.GetProject(ctx, d.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, string(valueobject.ProjectStatusFunded), p.Status)
}

func TestAgreementRepository_FundEscrow_ConcurrentDeliveries(t *testing.T) {
	f := newPGFixture(t)
	d := f.draft(t, 500, 700, 900)
	f.signBoth(t, d.Agreement.ID)

	var wg sync.WaitGroup
	results := make([]*FundingResult, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.repo.FundEscrow(context.Background(), d.Agreement.ID, "pi_1")
		}(i)
	}
	wg.Wait()

	funded := 0
	for i := range results {
		require.NoError(t, errs[i])
		if !results[i].AlreadyFunded {
			funded++
		}
	}
	assert.Equal(t, 1, funded)
	assert.Equal(t, 3, f.invoiceCount(t, d.Agreement.ID))
}

func TestAgreementRepository_FundEscrow_ArchivedAgreement(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	d := f.draft(t, 500)
	f.signBoth(t, d.Agreement.ID)
	_, err := f.repo.Amend(ctx, d.Agreement.ID)
	require.NoError(t, err)

	_, err = f.repo.FundEscrow(ctx, d.Agreement.ID, "pi_late")
	require.Error(t, err)

	got, err := f.repo.GetByID(ctx, d.Agreement.ID)
	require.NoError(t, err)
	assert.False(t, got.EscrowFunded)
	assert.Equal(t, 0, f.invoiceCount(t, d.Agreement.ID))
}

func TestAgreementRepository_Merge_ContinuesOrderAndIsIdempotent(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	primary := f.draft(t, 100, 200)
	child := f.draft(t, 300)
	ids := []uuid.UUID{primary.Agreement.ID, child.Agreement.ID}

	res, err := f.repo.Merge(ctx, ids, &primary.Agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Primary.MilestoneCount)
	assert.True(t, res.Primary.TotalCost.Equal(decimal.NewFromInt(600)))

	var orders []int
	require.NoError(t, f.conn.SelectContext(ctx, &orders, `
		SELECT order_num FROM milestones WHERE agreement_id = $1 ORDER BY order_num
	`, primary.Agreement.ID))
	assert.Equal(t, []int{1, 2, 3}, orders)

	again, err := f.repo.Merge(ctx, ids, &primary.Agreement.ID)
	require.NoError(t, err)
	assert.True(t, again.Plan.IsNoop())
	assert.Equal(t, 3, again.Primary.MilestoneCount)

	links, err := f.repo.ListAmendments(ctx, primary.Agreement.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 1, links[0].AmendmentNumber)
}

func TestAgreementRepository_AmendAfterMerge_NumbersLinksInSequence(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	primary := f.draft(t, 100)
	child := f.draft(t, 300)

	_, err := f.repo.Merge(ctx, []uuid.UUID{primary.Agreement.ID, child.Agreement.ID}, &primary.Agreement.ID)
	require.NoError(t, err)
	f.signBoth(t, primary.Agreement.ID)

	amended, err := f.repo.Amend(ctx, primary.Agreement.ID)
	require.NoError(t, err)

	links, err := f.repo.ListAmendments(ctx, primary.Agreement.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, child.Agreement.ID, links[0].ChildID)
	assert.Equal(t, 1, links[0].AmendmentNumber)
	assert.Equal(t, amended.ID, links[1].ChildID)
	assert.Equal(t, 2, links[1].AmendmentNumber)
}

func TestAgreementRepository_RecordFinalPDF_FailedWriteKeepsVersion(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	d := f.draft(t, 500)
	f.signBoth(t, d.Agreement.ID)

	_, err := f.repo.RecordFinalPDF(ctx, d.Agreement.ID, func(a *models.Agreement, version int) (string, error) {
		return "", errors.New("disk full")
	})
	require.Error(t, err)
	got, err := f.repo.GetByID(ctx, d.Agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PDFVersion)

	rec, err := f.repo.RecordFinalPDF(ctx, d.Agreement.ID, func(a *models.Agreement, version int) (string, error) {
		return a.PDFFileName(version), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)

	latest, err := f.repo.LatestPDF(ctx, d.Agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, latest.ID)
}

func TestAgreementRepository_CreateDraft_ConcurrentProjectNumbers(t *testing.T) {
	f := newPGFixture(t)

	const n = 4
	var wg sync.WaitGroup
	drafts := make([]*AgreementDraft, n)
	errs := make([]error, n)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		drafts[i] = &AgreementDraft{
			Homeowner:  &models.Homeowner{FullName: "Hana Homeowner", Email: uuid.NewString() + "@home.test"},
			Project:    &models.Project{Title: "Deck", ContractorID: f.contractorID},
			Agreement:  &models.Agreement{TotalCost: decimal.NewFromInt(100), MilestoneCount: 1},
			Milestones: []models.Milestone{{
				OrderNum: 1, Title: "Build", Amount: decimal.NewFromInt(100),
				StartDate: start, CompletionDate: start,
			}},
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.repo.CreateDraft(context.Background(), drafts[i])
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[drafts[i].Project.Number], "duplicate project number %s", drafts[i].Project.Number)
		seen[drafts[i].Project.Number] = true
	}
}
