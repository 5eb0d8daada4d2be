package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/lifecycle"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

var (
	ErrAgreementNotFound = errors.New("agreement not found")
	ErrProjectNotFound   = errors.New("project not found")
	// ErrProjectNumberExhausted means every retry collided with a concurrent insert.
	ErrProjectNumberExhausted = errors.New("could not allocate a project number")
)

const maxProjectNumberAttempts = 5

// AgreementRepository owns projects, agreements and amendment links. Every
// multi-row mutation runs in one transaction.
type AgreementRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewAgreementRepository(db *sqlx.DB) *AgreementRepository {
	return &AgreementRepository{db: db, now: time.Now}
}

// AgreementDraft is everything written when a contractor drafts an agreement.
type AgreementDraft struct {
	Homeowner  *models.Homeowner
	Project    *models.Project
	Agreement  *models.Agreement
	Milestones []models.Milestone
}

// AgreementFilter narrows List.
type AgreementFilter struct {
	ContractorID *uuid.UUID
	HomeownerID  *uuid.UUID
	Status       string
	Archived     *bool
	Search       string
}

// FundingResult reports the effect of a confirmed escrow payment.
type FundingResult struct {
	Agreement     *models.Agreement
	Invoices      []models.Invoice
	AlreadyFunded bool
}

// MergeResult is the primary after a merge and the plan that was applied.
type MergeResult struct {
	Primary *models.Agreement
	Plan    *lifecycle.MergePlan
}

// CreateDraft writes the homeowner, project, agreement and milestones atomically.
func (r *AgreementRepository) CreateDraft(ctx context.Context, d *AgreementDraft) error {
	now := r.now()
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := upsertHomeowner(ctx, tx, d.Homeowner); err != nil {
			return err
		}

		d.Project.HomeownerID = &d.Homeowner.ID
		if err := insertProject(ctx, tx, d.Project, now); err != nil {
			return err
		}

		d.Agreement.ProjectID = d.Project.ID
		d.Agreement.ContractorID = d.Project.ContractorID
		d.Agreement.HomeownerID = d.Homeowner.ID
		if err := insertAgreement(ctx, tx, d.Agreement); err != nil {
			return err
		}

		for i := range d.Milestones {
			d.Milestones[i].AgreementID = d.Agreement.ID
		}
		return insertMilestones(ctx, tx, d.Milestones)
	})
}

// insertProject allocates the next same-day number. A concurrent insert of the
// same number is retried behind a savepoint.
func insertProject(ctx context.Context, tx *sqlx.Tx, p *models.Project, now time.Time) error {
	if p.Status == "" {
		p.Status = string(valueobject.ProjectStatusDraft)
	}
	prefix := lifecycle.ProjectNumberPrefix(now)

	for attempt := 0; attempt < maxProjectNumberAttempts; attempt++ {
		var last string
		if err := tx.GetContext(ctx, &last, `SELECT COALESCE(MAX(number), '') FROM projects WHERE number LIKE $1`, prefix+"%"); err != nil {
			return fmt.Errorf("agreement repository: max project number %w", err)
		}
		p.Number = lifecycle.NextProjectNumber(now, last)

		err := common.WithSavepoint(ctx, tx, "project_number", func() error {
			return tx.QueryRowxContext(ctx, `
				INSERT INTO projects (number, title, description, status, contractor_id, homeowner_id)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id, created_at, updated_at
			`, p.Number, p.Title, p.Description, p.Status, p.ContractorID, p.HomeownerID).
				Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		})
		if err == nil {
			return nil
		}
		if !common.IsUniqueViolation(err) {
			return fmt.Errorf("agreement repository: insert project %w", err)
		}
	}
	return ErrProjectNumberExhausted
}

func insertAgreement(ctx context.Context, tx *sqlx.Tx, a *models.Agreement) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.HomeownerAccessToken == uuid.Nil {
		a.HomeownerAccessToken = uuid.New()
	}
	if a.WarrantyType == "" {
		a.WarrantyType = models.WarrantyDefault
	}
	query := `
		INSERT INTO agreements (
			id, project_id, contractor_id, homeowner_id, total_cost, total_time_estimate_days, milestone_count,
			homeowner_access_token, governing_state, warranty_type, custom_warranty_text,
			amendment_number, original_agreement_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING project_signed, created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		a.ID, a.ProjectID, a.ContractorID, a.HomeownerID, a.TotalCost, a.TotalTimeEstimateDays, a.MilestoneCount,
		a.HomeownerAccessToken, a.GoverningState, a.WarrantyType, a.CustomWarrantyText,
		a.AmendmentNumber, a.OriginalAgreementID,
	).Scan(&a.ProjectSigned, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("agreement repository: insert agreement %w", err)
	}
	return nil
}

func insertMilestones(ctx context.Context, tx *sqlx.Tx, ms []models.Milestone) error {
	bi := common.NewBatchInserter(tx, `
		INSERT INTO milestones (id, agreement_id, order_num, title, description, amount,
			start_date, completion_date, duration_days, duration_hours)`, 10, 50)
	for i := range ms {
		m := &ms[i]
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if err := bi.Add(ctx, m.ID, m.AgreementID, m.OrderNum, m.Title, m.Description, m.Amount,
			m.StartDate, m.CompletionDate, m.DurationDays, m.DurationHours); err != nil {
			return fmt.Errorf("agreement repository: insert milestones %w", err)
		}
	}
	if err := bi.Flush(ctx); err != nil {
		return fmt.Errorf("agreement repository: insert milestones %w", err)
	}
	return nil
}

func (r *AgreementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	return common.GetByID[models.Agreement](ctx, r.db, "agreements", id, ErrAgreementNotFound)
}

// GetByToken resolves a magic-link token.
func (r *AgreementRepository) GetByToken(ctx context.Context, token uuid.UUID) (*models.Agreement, error) {
	return common.GetByField[models.Agreement](ctx, r.db, "agreements", "homeowner_access_token", token, ErrAgreementNotFound)
}

func (r *AgreementRepository) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return common.GetByID[models.Project](ctx, r.db, "projects", id, ErrProjectNotFound)
}

// List returns a page of agreements matching f, newest first.
func (r *AgreementRepository) List(ctx context.Context, f AgreementFilter, page common.PageRequest) ([]models.Agreement, int, error) {
	ds := common.PG.From(goqu.T("agreements").As("a")).
		Join(goqu.T("projects").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("a.project_id")))).
		Join(goqu.T("homeowners").As("h"), goqu.On(goqu.I("h.id").Eq(goqu.I("a.homeowner_id")))).
		Select(goqu.I("a.*")).
		Order(goqu.I("a.created_at").Desc())

	if f.ContractorID != nil {
		ds = ds.Where(goqu.I("a.contractor_id").Eq(*f.ContractorID))
	}
	if f.HomeownerID != nil {
		ds = ds.Where(goqu.I("a.homeowner_id").Eq(*f.HomeownerID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.I("p.status").Eq(f.Status))
	}
	if f.Archived != nil {
		ds = ds.Where(goqu.I("a.is_archived").Eq(*f.Archived))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		ds = ds.Where(goqu.Or(
			goqu.I("p.title").ILike(pattern),
			goqu.I("p.number").ILike(pattern),
			goqu.I("h.full_name").ILike(pattern),
		))
	}

	return common.SelectPage[models.Agreement](ctx, r.db, ds, page)
}

// Sign locks the agreement, lets apply mutate the signature and snapshot
// fields, then writes them. The project moves to signed once both parties
// have signed.
func (r *AgreementRepository) Sign(ctx context.Context, id uuid.UUID, apply func(a *models.Agreement) error) (*models.Agreement, error) {
	var out *models.Agreement
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		a, err := common.LockByID[models.Agreement](ctx, tx, "agreements", id, ErrAgreementNotFound)
		if err != nil {
			return err
		}
		if err := apply(a); err != nil {
			return err
		}

		if err := tx.QueryRowxContext(ctx, `
			UPDATE agreements SET
				signed_by_contractor = $2, contractor_signature_name = $3, contractor_signed_ip = $4, contractor_signed_at = $5,
				signed_by_homeowner = $6, homeowner_signature_name = $7, homeowner_signed_ip = $8, homeowner_signed_at = $9,
				terms_snapshot = $10, privacy_snapshot = $11, warranty_snapshot = $12, legal_version = $13,
				clauses_snapshot = $14, updated_at = NOW()
			WHERE id = $1
			RETURNING project_signed, updated_at
		`, a.ID,
			a.SignedByContractor, a.ContractorSignatureName, a.ContractorSignedIP, a.ContractorSignedAt,
			a.SignedByHomeowner, a.HomeownerSignatureName, a.HomeownerSignedIP, a.HomeownerSignedAt,
			a.TermsSnapshot, a.PrivacySnapshot, a.WarrantySnapshot, a.LegalVersion,
			a.ClausesSnapshot,
		).Scan(&a.ProjectSigned, &a.UpdatedAt); err != nil {
			return fmt.Errorf("agreement repository: save signature %w", err)
		}

		if a.ProjectSigned {
			if err := setProjectStatus(ctx, tx, a.ProjectID, valueobject.ProjectStatusSigned); err != nil {
				return err
			}
		}
		out = a
		return nil
	})
	return out, err
}

func setProjectStatus(ctx context.Context, tx *sqlx.Tx, projectID uuid.UUID, status valueobject.ProjectStatus) error {
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1`, projectID, string(status)); err != nil {
		return fmt.Errorf("agreement repository: set project status %w", err)
	}
	return nil
}

// SetPaymentIntent stores the escrow PaymentIntent id.
func (r *AgreementRepository) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE agreements SET payment_intent_id = $2, updated_at = NOW() WHERE id = $1`, id, intentID)
	if err != nil {
		return fmt.Errorf("agreement repository: set payment intent %w", err)
	}
	return requireAffected(res, ErrAgreementNotFound)
}

// FundEscrow confirms an escrow payment. Under the agreement row lock it
// flips escrow_funded once, moves the project to funded and inserts one
// pending invoice per milestone. A second delivery finds the flag set and
// writes nothing.
func (r *AgreementRepository) FundEscrow(ctx context.Context, id uuid.UUID, intentID string) (*FundingResult, error) {
	now := r.now()
	result := &FundingResult{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		a, err := common.LockByID[models.Agreement](ctx, tx, "agreements", id, ErrAgreementNotFound)
		if err != nil {
			return err
		}
		result.Agreement = a
		if a.EscrowFunded {
			result.AlreadyFunded = true
			return nil
		}
		if err := a.CanConfirmEscrow(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE agreements
			SET escrow_funded = TRUE, payment_intent_id = COALESCE(NULLIF($2, ''), payment_intent_id), updated_at = NOW()
			WHERE id = $1
		`, a.ID, intentID); err != nil {
			return fmt.Errorf("agreement repository: mark funded %w", err)
		}
		a.EscrowFunded = true
		if intentID != "" {
			a.PaymentIntentID = intentID
		}
		if err := setProjectStatus(ctx, tx, a.ProjectID, valueobject.ProjectStatusFunded); err != nil {
			return err
		}

		var projectNumber string
		if err := tx.GetContext(ctx, &projectNumber, `SELECT number FROM projects WHERE id = $1`, a.ProjectID); err != nil {
			return fmt.Errorf("agreement repository: project number %w", err)
		}

		var milestones []models.Milestone
		if err := tx.SelectContext(ctx, &milestones, `
			SELECT * FROM milestones WHERE agreement_id = $1 ORDER BY order_num FOR UPDATE
		`, a.ID); err != nil {
			return fmt.Errorf("agreement repository: lock milestones %w", err)
		}

		for _, inv := range lifecycle.DeriveInvoices(a, projectNumber, milestones, now) {
			created, err := insertInvoice(ctx, tx, &inv)
			if err != nil {
				return err
			}
			if created {
				result.Invoices = append(result.Invoices, inv)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE milestones SET is_invoiced = TRUE, updated_at = NOW() WHERE agreement_id = $1 AND NOT is_invoiced
		`, a.ID); err != nil {
			return fmt.Errorf("agreement repository: mark milestones invoiced %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// insertInvoice writes inv unless the milestone already has one.
func insertInvoice(ctx context.Context, tx *sqlx.Tx, inv *models.Invoice) (bool, error) {
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO invoices (id, agreement_id, milestone_id, invoice_number, amount, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (milestone_id) DO NOTHING
		RETURNING created_at, updated_at
	`, inv.ID, inv.AgreementID, inv.MilestoneID, inv.InvoiceNumber, inv.Amount, inv.DueDate, inv.Status).
		Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("agreement repository: insert invoice %w", err)
	}
	return true, nil
}

// Merge folds the given agreements into one primary. Every involved row is
// locked before the primary's current maximum order is read, so concurrent
// merges onto the same primary serialize.
func (r *AgreementRepository) Merge(ctx context.Context, ids []uuid.UUID, hint *uuid.UUID) (*MergeResult, error) {
	var result *MergeResult
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked []models.Agreement
		if err := tx.SelectContext(ctx, &locked, `
			SELECT * FROM agreements WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE
		`, pq.Array(uuidStrings(ids))); err != nil {
			return fmt.Errorf("agreement repository: lock merge set %w", err)
		}

		byID := make(map[uuid.UUID]*models.Agreement, len(locked))
		for i := range locked {
			byID[locked[i].ID] = &locked[i]
		}
		ordered := make([]*models.Agreement, 0, len(ids))
		for _, id := range ids {
			a, ok := byID[id]
			if !ok {
				return ErrAgreementNotFound
			}
			ordered = append(ordered, a)
		}

		primary, err := lifecycle.PickPrimary(ordered, hint)
		if err != nil {
			return err
		}

		var maxOrder int
		if err := tx.GetContext(ctx, &maxOrder, `SELECT COALESCE(MAX(order_num), 0) FROM milestones WHERE agreement_id = $1`, primary.ID); err != nil {
			return fmt.Errorf("agreement repository: max order %w", err)
		}
		maxAmendment, err := maxAmendmentNumber(ctx, tx, primary.ID)
		if err != nil {
			return err
		}

		var linkedIDs []uuid.UUID
		if err := tx.SelectContext(ctx, &linkedIDs, `
			SELECT child_id FROM agreement_amendments WHERE parent_id = $1 AND child_id = ANY($2::uuid[])
		`, primary.ID, pq.Array(uuidStrings(ids))); err != nil {
			return fmt.Errorf("agreement repository: existing links %w", err)
		}
		linked := make(map[uuid.UUID]bool, len(linkedIDs))
		for _, id := range linkedIDs {
			linked[id] = true
		}

		children := make([]lifecycle.MergeChild, 0, len(ordered)-1)
		for _, a := range ordered {
			if a.ID == primary.ID {
				continue
			}
			child := lifecycle.MergeChild{Agreement: a, Linked: linked[a.ID]}
			if !(child.Linked && a.IsArchived) {
				if err := tx.SelectContext(ctx, &child.Milestones, `
					SELECT * FROM milestones WHERE agreement_id = $1 ORDER BY order_num FOR UPDATE
				`, a.ID); err != nil {
					return fmt.Errorf("agreement repository: child milestones %w", err)
				}
			}
			children = append(children, child)
		}

		plan, err := lifecycle.PlanMerge(primary, maxOrder, maxAmendment, children)
		if err != nil {
			return err
		}
		if err := applyMergePlan(ctx, tx, plan); err != nil {
			return err
		}

		merged, err := common.GetByID[models.Agreement](ctx, tx, "agreements", primary.ID, ErrAgreementNotFound)
		if err != nil {
			return err
		}
		result = &MergeResult{Primary: merged, Plan: plan}
		return nil
	})
	return result, err
}

func applyMergePlan(ctx context.Context, tx *sqlx.Tx, plan *lifecycle.MergePlan) error {
	for _, mv := range plan.Moves {
		if _, err := tx.ExecContext(ctx, `
			UPDATE milestones SET agreement_id = $2, order_num = $3, updated_at = NOW() WHERE id = $1
		`, mv.MilestoneID, plan.PrimaryID, mv.OrderNum); err != nil {
			return fmt.Errorf("agreement repository: move milestone %w", err)
		}
	}
	for _, link := range plan.Links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agreement_amendments (parent_id, child_id, amendment_number)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, plan.PrimaryID, link.ChildID, link.AmendmentNumber); err != nil {
			return fmt.Errorf("agreement repository: link child %w", err)
		}
	}
	if len(plan.ArchiveIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE agreements SET is_archived = TRUE, updated_at = NOW() WHERE id = ANY($1::uuid[])
		`, pq.Array(uuidStrings(plan.ArchiveIDs))); err != nil {
			return fmt.Errorf("agreement repository: archive children %w", err)
		}
	}
	if plan.IsNoop() {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE agreements
		SET total_cost = total_cost + $2,
			milestone_count = milestone_count + $3,
			total_time_estimate_days = total_time_estimate_days + $4,
			updated_at = NOW()
		WHERE id = $1
	`, plan.PrimaryID, plan.AddedCost, plan.AddedMilestones, plan.AddedDays); err != nil {
		return fmt.Errorf("agreement repository: update primary totals %w", err)
	}
	return nil
}

// Amend creates the copy-on-write successor of a fully signed agreement under
// a new project and archives the original.
func (r *AgreementRepository) Amend(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	now := r.now()
	var out *models.Agreement
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		original, err := common.LockByID[models.Agreement](ctx, tx, "agreements", id, ErrAgreementNotFound)
		if err != nil {
			return err
		}

		var milestones []models.Milestone
		if err := tx.SelectContext(ctx, &milestones, `SELECT * FROM milestones WHERE agreement_id = $1 ORDER BY order_num`, id); err != nil {
			return fmt.Errorf("agreement repository: load milestones %w", err)
		}

		am, err := lifecycle.CloneForAmendment(original, milestones, uuid.Nil, now)
		if err != nil {
			return err
		}

		origProject, err := common.GetByID[models.Project](ctx, tx, "projects", original.ProjectID, ErrProjectNotFound)
		if err != nil {
			return err
		}
		project := &models.Project{
			Title:        fmt.Sprintf("%s (Amendment %d)", stripAmendmentSuffix(origProject.Title), am.Agreement.AmendmentNumber),
			Description:  origProject.Description,
			ContractorID: origProject.ContractorID,
			HomeownerID:  origProject.HomeownerID,
		}
		if err := insertProject(ctx, tx, project, now); err != nil {
			return err
		}

		am.Agreement.ProjectID = project.ID
		if err := insertAgreement(ctx, tx, am.Agreement); err != nil {
			return err
		}
		if err := insertMilestones(ctx, tx, am.Milestones); err != nil {
			return err
		}

		// Merges link onto the same parent, so the link number follows the
		// parent's existing links rather than the agreement's own counter.
		maxAmendment, err := maxAmendmentNumber(ctx, tx, original.ID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agreement_amendments (parent_id, child_id, amendment_number)
			VALUES ($1, $2, $3)
		`, original.ID, am.Agreement.ID, maxAmendment+1); err != nil {
			return fmt.Errorf("agreement repository: link amendment %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE agreements SET is_archived = TRUE, updated_at = NOW() WHERE id = $1`, original.ID); err != nil {
			return fmt.Errorf("agreement repository: archive original %w", err)
		}

		out = am.Agreement
		return nil
	})
	return out, err
}

// maxAmendmentNumber reads the highest link number under parentID. Callers
// hold the parent's row lock.
func maxAmendmentNumber(ctx context.Context, tx *sqlx.Tx, parentID uuid.UUID) (int, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COALESCE(MAX(amendment_number), 0) FROM agreement_amendments WHERE parent_id = $1`, parentID); err != nil {
		return 0, fmt.Errorf("agreement repository: max amendment %w", err)
	}
	return n, nil
}

func stripAmendmentSuffix(title string) string {
	if i := strings.LastIndex(title, " (Amendment "); i > 0 && strings.HasSuffix(title, ")") {
		return title[:i]
	}
	return title
}

// ListAmendments returns the links where parentID is the parent.
func (r *AgreementRepository) ListAmendments(ctx context.Context, parentID uuid.UUID) ([]models.AgreementAmendment, error) {
	var links []models.AgreementAmendment
	if err := r.db.SelectContext(ctx, &links, `
		SELECT * FROM agreement_amendments WHERE parent_id = $1 ORDER BY amendment_number
	`, parentID); err != nil {
		return nil, fmt.Errorf("agreement repository: list amendments %w", err)
	}
	return links, nil
}

// RecordFinalPDF allocates the next pdf_version under lock, lets write store
// the file for that version and records it. The version counter only moves
// when the file was stored.
func (r *AgreementRepository) RecordFinalPDF(ctx context.Context, id uuid.UUID, write func(a *models.Agreement, version int) (string, error)) (*models.AgreementPDF, error) {
	var out *models.AgreementPDF
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		a, err := common.LockByID[models.Agreement](ctx, tx, "agreements", id, ErrAgreementNotFound)
		if err != nil {
			return err
		}
		version := a.PDFVersion + 1
		path, err := write(a, version)
		if err != nil {
			return err
		}

		pdf := &models.AgreementPDF{AgreementID: id, Version: version, FilePath: path, IsFinal: true}
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO agreement_pdfs (agreement_id, version, file_path, is_final)
			VALUES ($1, $2, $3, TRUE)
			RETURNING id, created_at
		`, id, version, path).Scan(&pdf.ID, &pdf.CreatedAt); err != nil {
			return fmt.Errorf("agreement repository: insert pdf %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE agreements SET pdf_version = $2, pdf_archived = TRUE, updated_at = NOW() WHERE id = $1
		`, id, version); err != nil {
			return fmt.Errorf("agreement repository: bump pdf version %w", err)
		}
		out = pdf
		return nil
	})
	return out, err
}

// LatestPDF returns the newest stored rendition.
func (r *AgreementRepository) LatestPDF(ctx context.Context, agreementID uuid.UUID) (*models.AgreementPDF, error) {
	var pdf models.AgreementPDF
	if err := r.db.GetContext(ctx, &pdf, `
		SELECT * FROM agreement_pdfs WHERE agreement_id = $1 ORDER BY version DESC LIMIT 1
	`, agreementID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("agreement repository: latest pdf %w", err)
	}
	return &pdf, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
