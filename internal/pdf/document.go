// Package pdf renders agreement documents and appends their attachments.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/domain/valueobject"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/legal"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

const (
	pageSize   = "Letter"
	marginMM   = 18.0
	lineHeight = 5.5
	dateLayout = "Jan 2, 2006"
)

// Document is everything the agreement rendition shows.
type Document struct {
	Agreement       *models.Agreement
	Project         *models.Project
	Contractor      *models.Contractor
	ContractorEmail string
	Homeowner       *models.Homeowner
	Milestones      []models.Milestone
	Attachments     []Attachment
}

// Attachment is an uploaded file appended after the table of contents.
type Attachment struct {
	Title       string
	Category    string
	ContentType string
	Data        []byte
}

type writer struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newWriter(title string, created time.Time) *writer {
	pdf := gofpdf.New("P", "mm", pageSize, "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)
	pdf.SetTitle(title, false)
	pdf.SetCreator("MyHomeBro", false)
	if !created.IsZero() {
		pdf.SetCreationDate(created)
	}
	return &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (w *writer) heading(text string) {
	w.pdf.SetFont("Helvetica", "B", 13)
	w.pdf.CellFormat(0, 8, w.tr(text), "", 1, "L", false, 0, "")
	w.pdf.SetFont("Helvetica", "", 10)
}

func (w *writer) paragraph(text string) {
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
	w.pdf.Ln(2)
}

func (w *writer) field(label, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	w.pdf.SetFont("Helvetica", "B", 10)
	w.pdf.CellFormat(45, lineHeight, w.tr(label), "", 0, "L", false, 0, "")
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.MultiCell(0, lineHeight, w.tr(value), "", "L", false)
}

func (w *writer) bytes() ([]byte, int, error) {
	if err := w.pdf.Error(); err != nil {
		return nil, 0, err
	}
	pages := w.pdf.PageNo()
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), pages, nil
}

// renderBase draws the agreement body: cover, parties, milestones, warranty,
// clauses and signatures.
func renderBase(doc *Document, catalog *legal.Catalog) ([]byte, int, error) {
	a := doc.Agreement
	w := newWriter("Agreement "+doc.Project.Number, a.UpdatedAt)
	w.pdf.SetFooterFunc(func() {
		w.pdf.SetY(-12)
		w.pdf.SetFont("Helvetica", "I", 8)
		w.pdf.CellFormat(0, 6, fmt.Sprintf("%s - page %d", doc.Project.Number, w.pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	w.pdf.AddPage()
	w.pdf.SetFont("Helvetica", "B", 20)
	w.pdf.CellFormat(0, 14, "Home Improvement Agreement", "", 1, "C", false, 0, "")
	w.pdf.SetFont("Helvetica", "", 12)
	w.pdf.CellFormat(0, 8, w.tr(doc.Project.Title), "", 1, "C", false, 0, "")
	w.pdf.Ln(6)
	w.field("Project number", doc.Project.Number)
	w.field("Agreement", a.ID.String())
	if a.AmendmentNumber > 0 {
		w.field("Amendment", fmt.Sprintf("No. %d", a.AmendmentNumber))
	}
	w.field("Governing state", a.GoverningState)
	w.field("Total", valueobject.FormatUSD(a.TotalCost))
	w.field("Estimated duration", fmt.Sprintf("%d days", a.TotalTimeEstimateDays))
	w.field("Created", a.CreatedAt.Format(dateLayout))
	if a.LegalVersion != "" {
		w.field("Legal version", a.LegalVersion)
	}
	w.pdf.Ln(4)
	if doc.Project.Description != "" {
		w.heading("Scope of work")
		w.paragraph(doc.Project.Description)
	}

	w.heading("Parties")
	if c := doc.Contractor; c != nil {
		w.field("Contractor", c.BusinessName)
		w.field("License", c.LicenseNumber)
		w.field("Phone", c.Phone)
		w.field("Email", doc.ContractorEmail)
		w.field("Address", c.Address)
	}
	w.pdf.Ln(2)
	if h := doc.Homeowner; h != nil {
		w.field("Homeowner", h.FullName)
		w.field("Email", h.Email)
		w.field("Phone", h.Phone)
		w.field("Address", strings.TrimSpace(fmt.Sprintf("%s, %s, %s %s", h.StreetAddress, h.City, h.State, h.ZipCode)))
	}
	w.pdf.Ln(4)

	w.heading("Milestones")
	milestoneTable(w, doc.Milestones, a)
	w.pdf.Ln(4)

	w.heading("Warranty")
	warranty := a.WarrantySnapshot
	if warranty == "" {
		warranty = catalog.WarrantyText(a.WarrantyType, a.CustomWarrantyText)
	}
	w.paragraph(warranty)

	w.heading("Terms")
	terms := a.TermsSnapshot
	if terms == "" {
		terms = strings.TrimSpace(catalog.Terms)
	}
	w.paragraph(terms)
	clauses, err := catalog.ClausesOf(a)
	if err != nil {
		return nil, 0, err
	}
	for _, cl := range clauses {
		w.pdf.SetFont("Helvetica", "B", 10)
		w.pdf.CellFormat(0, 6, w.tr(cl.Title), "", 1, "L", false, 0, "")
		w.paragraph(cl.Body)
	}

	w.heading("Signatures")
	signature(w, "Contractor", a.SignedByContractor, a.ContractorSignatureName, a.ContractorSignedIP, a.ContractorSignedAt)
	signature(w, "Homeowner", a.SignedByHomeowner, a.HomeownerSignatureName, a.HomeownerSignedIP, a.HomeownerSignedAt)

	return w.bytes()
}

func milestoneTable(w *writer, milestones []models.Milestone, a *models.Agreement) {
	cols := []struct {
		title string
		width float64
		align string
	}{
		{"#", 10, "C"},
		{"Milestone", 68, "L"},
		{"Start", 30, "C"},
		{"Completion", 30, "C"},
		{"Amount", 40, "R"},
	}

	w.pdf.SetFont("Helvetica", "B", 9)
	w.pdf.SetFillColor(230, 236, 245)
	for _, c := range cols {
		w.pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	w.pdf.Ln(-1)

	w.pdf.SetFont("Helvetica", "", 9)
	for _, m := range milestones {
		title := m.Title
		if r := []rune(title); len(r) > 45 {
			title = string(r[:42]) + "..."
		}
		values := []string{
			fmt.Sprintf("%d", m.OrderNum),
			w.tr(title),
			m.StartDate.Format(dateLayout),
			m.CompletionDate.Format(dateLayout),
			valueobject.FormatUSD(m.Amount),
		}
		for i, c := range cols {
			w.pdf.CellFormat(c.width, 6.5, values[i], "1", 0, c.align, false, 0, "")
		}
		w.pdf.Ln(-1)
	}

	w.pdf.SetFont("Helvetica", "B", 9)
	w.pdf.CellFormat(138, 7, "Total", "1", 0, "R", false, 0, "")
	w.pdf.CellFormat(40, 7, valueobject.FormatUSD(a.TotalCost), "1", 1, "R", false, 0, "")
}

func signature(w *writer, role string, signed bool, name, ip string, at *time.Time) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Helvetica", "B", 10)
	w.pdf.CellFormat(0, 6, role, "", 1, "L", false, 0, "")
	if !signed {
		w.field("Status", "Not signed")
		return
	}
	w.field("Signed by", name)
	if at != nil {
		w.field("Signed at", at.UTC().Format("Jan 2, 2006 15:04 MST"))
	}
	w.field("IP address", ip)
}
