// Package slip renders the printable application slip.
package slip

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/kiuth/recruitment-api/internal/imaging"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/skip2/go-qrcode"
)

const (
	photoX    = 150.0
	photoY    = 75.0
	photoSize = 40.0
)

var (
	brandBlue = [3]int{30, 58, 95}
	brandTeal = [3]int{74, 157, 126}
	lightBG   = [3]int{248, 250, 252}
)

// Record is the part of an application printed on the slip
type Record struct {
	ReferenceNumber string
	FullName        string
	Position        string
	Department      string
	DateOfBirth     string
	StateOfOrigin   string
	AppliedAt       time.Time
	GeneratedAt     time.Time
}

func RecordFrom(a *model.Application) Record {
	return Record{
		ReferenceNumber: a.ReferenceNumber,
		FullName:        a.FullName,
		Position:        a.Position,
		Department:      a.Department,
		DateOfBirth:     a.DateOfBirth,
		StateOfOrigin:   a.StateOfOrigin,
		AppliedAt:       a.CreatedAt,
	}
}

// QRPayload is what the verification code encodes
func QRPayload(r Record) string {
	return fmt.Sprintf("REF:%s|NAME:%s|POS:%s", r.ReferenceNumber, r.FullName, r.Position)
}

// FileName is the download name of a slip
func FileName(reference string) string {
	return "KIUTH_Slip_" + reference + ".pdf"
}

// Generate lays out an A4 slip. A nil or undecodable photo renders a
// placeholder box; only layout or QR failures return an error.
func Generate(r Record, photo []byte) ([]byte, error) {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(true)
	pdf.SetTitle("Application Slip "+r.ReferenceNumber, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header band
	pdf.SetFillColor(brandBlue[0], brandBlue[1], brandBlue[2])
	pdf.Rect(0, 0, 210, 40, "F")
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(255, 255, 255)
	pdf.Text(20, 18, "Kashim Ibrahim University")
	pdf.SetFontSize(16)
	pdf.Text(20, 28, "Teaching Hospital")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(200, 200, 200)
	pdf.SetXY(115, 31)
	pdf.CellFormat(80, 6, "Recruitment Portal", "", 0, "R", false, 0, "")

	// Title
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(brandBlue[0], brandBlue[1], brandBlue[2])
	pdf.SetXY(0, 50)
	pdf.CellFormat(210, 12, "Application Slip", "", 0, "C", false, 0, "")
	pdf.SetDrawColor(brandTeal[0], brandTeal[1], brandTeal[2])
	pdf.SetLineWidth(1)
	pdf.Line(80, 65, 130, 65)

	drawPhoto(pdf, photo)

	// Field grid
	y := 80.0
	rows := [][2]string{
		{"Reference Number", r.ReferenceNumber},
		{"Full Name", r.FullName},
		{"Date of Birth", r.DateOfBirth},
		{"State of Origin", r.StateOfOrigin},
		{"Position Applied", r.Position},
		{"Department", r.Department},
		{"Date Applied", dateOrDash(r.AppliedAt)},
	}
	for i, row := range rows {
		if i%2 == 0 {
			pdf.SetFillColor(lightBG[0], lightBG[1], lightBG[2])
			pdf.Rect(18, y-8, 120, 12, "F")
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(100, 100, 100)
		pdf.Text(20, y, row[0])
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(0, 0, 0)
		value := row[1]
		if value == "" {
			value = "-"
		}
		pdf.Text(70, y, tr(value))
		y += 12
	}

	// Verification block
	qrY := y + 20
	png, err := qrcode.Encode(QRPayload(r), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}
	pdf.SetFillColor(lightBG[0], lightBG[1], lightBG[2])
	pdf.RoundedRect(20, qrY, 170, 50, 3, "1234", "F")
	qrOpts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", qrOpts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 25, qrY+5, 40, 40, false, qrOpts, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(brandBlue[0], brandBlue[1], brandBlue[2])
	pdf.Text(70, qrY+15, "Official Verification")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.Text(70, qrY+25, "This slip serves as proof of your application.")
	pdf.Text(70, qrY+32, "Please present this document at the screening venue.")
	pdf.Text(70, qrY+42, "Generated on: "+r.GeneratedAt.Format("02 Jan 2006 15:04"))

	// Footer
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.SetXY(0, 282)
	pdf.CellFormat(210, 5, "Kashim Ibrahim University Teaching Hospital Recruitment Portal", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering slip: %w", err)
	}
	return buf.Bytes(), nil
}

func drawPhoto(pdf *fpdf.Fpdf, photo []byte) {
	pdf.SetFillColor(240, 240, 240)
	pdf.Rect(photoX, photoY, photoSize, photoSize, "F")
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.2)
	pdf.Rect(photoX, photoY, photoSize, photoSize, "D")

	if len(photo) > 0 {
		// fpdf only embeds baseline JPEG/PNG, so everything is normalized first
		if jpg, err := imaging.Compress(photo, 480, 90); err == nil {
			opts := fpdf.ImageOptions{ImageType: "JPG"}
			pdf.RegisterImageOptionsReader("passport", opts, bytes.NewReader(jpg))
			if pdf.Ok() {
				pdf.ImageOptions("passport", photoX, photoY, photoSize, photoSize, false, opts, 0, "")
				return
			}
			pdf.ClearError()
		}
	}

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.SetXY(photoX, photoY+photoSize/2-3)
	pdf.CellFormat(photoSize, 6, "Photo unavailable", "", 0, "C", false, 0, "")
}

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006")
}
