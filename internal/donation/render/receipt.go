// Package render produces the donor-facing receipt documents: the PDF and
// the accompanying email text.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/jmerrifield20/donationcore/internal/donation/model"
)

// DateTimeLayout formats the donation timestamp on receipts, e.g. "04 Mar 2026, 04:00 PM".
const DateTimeLayout = "02 Jan 2006, 03:04 PM"

// ReceiptFilename is the download and attachment name for a payment's receipt.
func ReceiptFilename(paymentID string) string {
	return "receipt-" + paymentID + ".pdf"
}

// Receipts renders receipts in a fixed display time zone.
type Receipts struct {
	loc *time.Location
}

// NewReceipts returns a Receipts renderer. A nil loc selects UTC.
func NewReceipts(loc *time.Location) *Receipts {
	if loc == nil {
		loc = time.UTC
	}
	return &Receipts{loc: loc}
}

// Lines returns the body lines printed on the PDF, below the title. Empty
// strings are spacer lines.
func (r *Receipts) Lines(rec *model.Receipt) []string {
	return []string{
		"",
		"Donor Name: " + rec.DonorName,
		"Donor Email: " + rec.DonorEmail,
		"Donor Phone: " + rec.DonorPhone,
		"Donation Amount: " + r.amount(rec),
		"Payment ID: " + rec.PaymentID,
		"Order ID: " + rec.OrderID,
		"Donation Date & Time: " + r.issued(rec),
		"",
		"Thank you for supporting this campaign.",
	}
}

// Render returns rec as a single-page A4 PDF.
func (r *Receipts) Render(rec *model.Receipt) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Donation Receipt "+rec.PaymentID, false)
	pdf.SetAuthor("Donation Crowdfunding Platform", false)
	pdf.SetCreationDate(rec.IssuedAt)
	pdf.SetModificationDate(rec.IssuedAt)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// Core fonts are cp1252; translate so accented donor names survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Donation Receipt", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range r.Lines(rec) {
		if line == "" {
			pdf.Ln(6)
			continue
		}
		pdf.MultiCell(0, 7, tr(line), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Email returns the subject and plain-text body of the receipt email.
func (r *Receipts) Email(rec *model.Receipt) (subject, body string) {
	subject = "Donation Receipt - Payment " + rec.PaymentID

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", rec.DonorName)
	b.WriteString("Thank you for your donation.\n\n")
	b.WriteString("Receipt details:\n")
	fmt.Fprintf(&b, "- Amount: %s\n", r.amount(rec))
	fmt.Fprintf(&b, "- Payment ID: %s\n", rec.PaymentID)
	fmt.Fprintf(&b, "- Order ID: %s\n", rec.OrderID)
	fmt.Fprintf(&b, "- Donation Date & Time: %s\n\n", r.issued(rec))
	b.WriteString("Please find your PDF receipt attached.\n\n")
	b.WriteString("Regards,\n")
	b.WriteString("Donation Crowdfunding Platform")
	return subject, b.String()
}

func (r *Receipts) amount(rec *model.Receipt) string {
	currency := rec.Currency
	if currency == "" {
		currency = "INR"
	}
	return currency + " " + rec.Amount.StringFixed(2)
}

func (r *Receipts) issued(rec *model.Receipt) string {
	if rec.IssuedAt.IsZero() {
		return "N/A"
	}
	return rec.IssuedAt.In(r.loc).Format(DateTimeLayout)
}
