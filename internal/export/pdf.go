// Package export renders pets and adoption applications as PDF documents
// for download.
package export

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

const (
	labelWidth = 55.0
	lineHeight = 8.0
)

// document wraps an fpdf page with the helpers both exports share.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(title string, now time.Time) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("go-adoption-backend", true)
	pdf.SetCreationDate(now)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, d.tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 6, "Generated "+now.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
	return d
}

func (d *document) section(name string) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 13)
	d.pdf.CellFormat(0, 9, d.tr(name), "B", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

func (d *document) row(label, value string) {
	if value == "" {
		value = "-"
	}
	d.pdf.SetFont("Helvetica", "B", 11)
	d.pdf.CellFormat(labelWidth, lineHeight, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 11)
	d.pdf.MultiCell(0, lineHeight, d.tr(value), "", "L", false)
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func dateOf(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func money(v float64) string { return "$" + strconv.FormatFloat(v, 'f', 2, 64) }

func petRows(d *document, p *domain.Pet, now time.Time) {
	d.row("Name", p.Name)
	d.row("Species", p.Species)
	d.row("Breed", p.Breed)
	d.row("Gender", p.Gender)
	d.row("Color", p.Color)
	if p.Weight != nil {
		d.row("Weight", strconv.FormatFloat(*p.Weight, 'f', 2, 64)+" kg")
	}
	d.row("Date of birth", dateOf(p.DOB))
	if y, m, ok := p.Age(now); ok {
		d.row("Age", fmt.Sprintf("%d years, %d months", y, m))
	}
	d.row("Status", string(p.Status))
	d.row("Adoption fee", money(p.AdoptionFee))
}

// PetPDF renders the pet's details sheet.
func PetPDF(p *domain.Pet, now time.Time) ([]byte, error) {
	d := newDocument(p.Name+" - Pet Details", now)
	d.section("Pet")
	petRows(d, p, now)

	if len(p.Vaccines) > 0 {
		d.section("Vaccinations")
		for _, v := range p.Vaccines {
			d.row(v.Name, v.ProtectsAgainst)
		}
	}
	if strings.TrimSpace(p.Description) != "" {
		d.section("Description")
		d.pdf.SetFont("Helvetica", "", 11)
		d.pdf.MultiCell(0, lineHeight, d.tr(p.Description), "", "L", false)
	}
	return d.bytes()
}

// ApplicationPDF renders an adoption application together with the pet and
// the applicant's contact details.
func ApplicationPDF(a *domain.Application, p *domain.Pet, applicant *domain.User, now time.Time) ([]byte, error) {
	d := newDocument("Adoption Application", now)

	d.section("Application")
	d.row("Reference", a.ID)
	d.row("Status", string(a.Status))
	d.row("Submitted", a.SubmittedAt.Format("2006-01-02"))
	if a.ApprovedAt != nil {
		d.row("Approved", dateOf(a.ApprovedAt))
	}
	d.row("Requested date", dateOf(a.RequestedDate))
	d.row("Housing type", a.HousingType)
	d.row("Home ownership", a.HomeOwnership)
	d.row("Other pets", yesNo(a.HasOtherPets))
	if a.HasOtherPets {
		d.row("Other pets details", a.OtherPetsDetails)
	}
	d.row("Work schedule", a.WorkSchedule)
	d.row("Notes", a.Notes)

	if applicant != nil {
		d.section("Applicant")
		d.row("Name", strings.TrimSpace(applicant.FirstName+" "+applicant.LastName))
		d.row("Username", applicant.Username)
		d.row("Email", applicant.Email)
		d.row("Phone", applicant.PhoneNumber)
		d.row("Address", applicant.Address)
	}
	if p != nil {
		d.section("Pet")
		petRows(d, p, now)
	}
	return d.bytes()
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename returns a download name such as "Rex_details.pdf".
func Filename(name string) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if base == "" {
		base = "document"
	}
	return base + "_details.pdf"
}
