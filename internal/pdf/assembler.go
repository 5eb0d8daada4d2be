package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/phpdave11/gofpdf"
	"github.com/sirupsen/logrus"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/legal"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/storage"
)

// tocEntriesPerPage bounds a table of contents page so its length is known
// before it is drawn.
const tocEntriesPerPage = 28

func init() {
	api.DisableConfigDir()
}

// TOCEntry maps an attachment letter to the page it starts on.
type TOCEntry struct {
	Letter    string
	Title     string
	StartPage int
	Pages     int
}

// Result is an assembled agreement PDF and its layout.
type Result struct {
	Data      []byte
	BasePages int
	TOCPages  int
	Entries   []TOCEntry
	Skipped   []string
}

// TotalPages is the page count of Data.
func (r *Result) TotalPages() int {
	n := r.BasePages + r.TOCPages
	for _, e := range r.Entries {
		n += e.Pages
	}
	return n
}

// Assembler builds full agreement PDFs.
type Assembler struct {
	catalog *legal.Catalog
	conf    *model.Configuration
}

func NewAssembler(catalog *legal.Catalog) *Assembler {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Assembler{catalog: catalog, conf: conf}
}

type part struct {
	title string
	data  []byte
	pages int
}

// Assemble renders the agreement, a table of contents and every usable
// attachment into one document. Attachments that are neither PDF nor a
// supported image, or that cannot be read, are skipped with a warning.
func (as *Assembler) Assemble(doc *Document) (*Result, error) {
	if doc == nil || doc.Agreement == nil || doc.Project == nil {
		return nil, errors.New("pdf: agreement and project are required")
	}

	base, basePages, err := renderBase(doc, as.catalog)
	if err != nil {
		return nil, fmt.Errorf("pdf: render agreement: %w", err)
	}

	res := &Result{BasePages: basePages}
	parts := make([]part, 0, len(doc.Attachments))
	for _, att := range doc.Attachments {
		p, err := as.normalize(att)
		if err != nil {
			logger.L().WithFields(logrus.Fields{
				"agreement_id": doc.Agreement.ID,
				"attachment":   att.Title,
				"content_type": att.ContentType,
			}).Warnf("pdf: skipping attachment: %v", err)
			res.Skipped = append(res.Skipped, att.Title)
			continue
		}
		parts = append(parts, p)
	}

	res.TOCPages = tocPageCount(len(parts))
	next := basePages + res.TOCPages + 1
	for i, p := range parts {
		res.Entries = append(res.Entries, TOCEntry{
			Letter:    Letter(i),
			Title:     p.title,
			StartPage: next,
			Pages:     p.pages,
		})
		next += p.pages
	}

	toc, tocPages, err := renderTOC(doc, res.Entries)
	if err != nil {
		return nil, fmt.Errorf("pdf: render table of contents: %w", err)
	}
	if tocPages != res.TOCPages {
		return nil, fmt.Errorf("pdf: table of contents has %d pages, expected %d", tocPages, res.TOCPages)
	}

	inputs := []io.ReadSeeker{bytes.NewReader(base), bytes.NewReader(toc)}
	for _, p := range parts {
		inputs = append(inputs, bytes.NewReader(p.data))
	}
	var out bytes.Buffer
	if err := api.MergeRaw(inputs, &out, false, as.conf); err != nil {
		return nil, fmt.Errorf("pdf: merge: %w", err)
	}
	res.Data = out.Bytes()
	return res, nil
}

// PageCount counts the pages of a PDF.
func (as *Assembler) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), as.conf)
	if err != nil {
		return 0, fmt.Errorf("pdf: page count: %w", err)
	}
	return n, nil
}

func (as *Assembler) normalize(att Attachment) (part, error) {
	contentType := att.ContentType
	if sniffed := storage.DetectContentType(att.Data); sniffed != "application/octet-stream" {
		contentType = sniffed
	}

	var data []byte
	switch contentType {
	case "application/pdf":
		data = att.Data
	case "image/jpeg", "image/png", "image/gif":
		img, err := imagePage(att.Title, contentType, att.Data)
		if err != nil {
			return part{}, err
		}
		data = img
	default:
		return part{}, fmt.Errorf("unsupported content type %s", contentType)
	}

	pages, err := as.PageCount(data)
	if err != nil {
		return part{}, err
	}
	if pages == 0 {
		return part{}, errors.New("document has no pages")
	}
	return part{title: att.Title, data: data, pages: pages}, nil
}

func tocPageCount(entries int) int {
	if entries == 0 {
		return 1
	}
	return (entries + tocEntriesPerPage - 1) / tocEntriesPerPage
}

func renderTOC(doc *Document, entries []TOCEntry) ([]byte, int, error) {
	w := newWriter("Attachments", doc.Agreement.UpdatedAt)
	w.pdf.SetAutoPageBreak(false, marginMM)

	header := func() {
		w.pdf.AddPage()
		w.heading("Table of attachments")
		w.pdf.Ln(2)
	}
	header()
	if len(entries) == 0 {
		w.paragraph("This agreement has no attachments.")
		return w.bytes()
	}

	for i, e := range entries {
		if i > 0 && i%tocEntriesPerPage == 0 {
			header()
		}
		title := e.Title
		if r := []rune(title); len(r) > 70 {
			title = string(r[:67]) + "..."
		}
		w.pdf.SetFont("Helvetica", "B", 10)
		w.pdf.CellFormat(20, 7, "Exhibit "+e.Letter, "", 0, "L", false, 0, "")
		w.pdf.SetFont("Helvetica", "", 10)
		w.pdf.CellFormat(130, 7, w.tr(title), "", 0, "L", false, 0, "")
		w.pdf.CellFormat(0, 7, fmt.Sprintf("page %d", e.StartPage), "", 1, "R", false, 0, "")
	}
	return w.bytes()
}

// imagePage places an image on a single page, scaled to fit.
func imagePage(title, contentType string, data []byte) ([]byte, error) {
	imageType := map[string]string{"image/jpeg": "JPG", "image/png": "PNG", "image/gif": "GIF"}[contentType]

	pdf := gofpdf.New("P", "mm", pageSize, "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(false, marginMM)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")

	opts := gofpdf.ImageOptions{ImageType: imageType}
	info := pdf.RegisterImageOptionsReader("attachment", opts, bytes.NewReader(data))
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	pageW, pageH := pdf.GetPageSize()
	maxW := pageW - 2*marginMM
	maxH := pageH - 2*marginMM - 10
	w, h := info.Width(), info.Height()
	if w <= 0 || h <= 0 {
		return nil, errors.New("image has no size")
	}
	scale := maxW / w
	if h*scale > maxH {
		scale = maxH / h
	}
	pdf.ImageOptions("attachment", marginMM, marginMM+10, w*scale, h*scale, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render image page: %w", err)
	}
	return buf.Bytes(), nil
}

// Letter returns the exhibit letter of the i-th attachment: A..Z, AA, AB...
func Letter(i int) string {
	s := ""
	for i >= 0 {
		s = string(rune('A'+i%26)) + s
		i = i/26 - 1
	}
	return s
}
