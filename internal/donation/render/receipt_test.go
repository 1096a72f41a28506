package render_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/donation/render"
	"github.com/shopspring/decimal"
)

func sampleReceipt() *model.Receipt {
	return &model.Receipt{
		ID:         "rcpt-1",
		PaymentID:  "pay_Nx91",
		OrderID:    "order_Ab12",
		DonorName:  "Asha Rao",
		DonorEmail: "asha@example.org",
		DonorPhone: "+919876543210",
		Amount:     decimal.RequireFromString("1500.5"),
		Currency:   "INR",
		IssuedAt:   time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	}
}

func TestReceiptFilename(t *testing.T) {
	if got := render.ReceiptFilename("pay_1"); got != "receipt-pay_1.pdf" {
		t.Errorf("got %q", got)
	}
}

func TestLines_layout(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	lines := render.NewReceipts(ist).Lines(sampleReceipt())

	want := []string{
		"",
		"Donor Name: Asha Rao",
		"Donor Email: asha@example.org",
		"Donor Phone: +919876543210",
		"Donation Amount: INR 1500.50",
		"Payment ID: pay_Nx91",
		"Order ID: order_Ab12",
		"Donation Date & Time: 04 Mar 2026, 04:00 PM",
		"",
		"Thank you for supporting this campaign.",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLines_missingTimestamp(t *testing.T) {
	rec := sampleReceipt()
	rec.IssuedAt = time.Time{}
	lines := render.NewReceipts(nil).Lines(rec)
	if lines[7] != "Donation Date & Time: N/A" {
		t.Errorf("got %q", lines[7])
	}
}

func TestEmail(t *testing.T) {
	subject, body := render.NewReceipts(time.UTC).Email(sampleReceipt())

	if subject != "Donation Receipt - Payment pay_Nx91" {
		t.Errorf("subject: %q", subject)
	}
	want := "Dear Asha Rao,\n\n" +
		"Thank you for your donation.\n\n" +
		"Receipt details:\n" +
		"- Amount: INR 1500.50\n" +
		"- Payment ID: pay_Nx91\n" +
		"- Order ID: order_Ab12\n" +
		"- Donation Date & Time: 04 Mar 2026, 10:30 AM\n\n" +
		"Please find your PDF receipt attached.\n\n" +
		"Regards,\n" +
		"Donation Crowdfunding Platform"
	if body != want {
		t.Errorf("body mismatch:\ngot:\n%s\nwant:\n%s", body, want)
	}
}

func TestRender_producesPDF(t *testing.T) {
	rec := sampleReceipt()
	rec.DonorName = "Zoë Müller"

	out, err := render.NewReceipts(time.UTC).Render(rec)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", out[:min(16, len(out))])
	}
	if !strings.Contains(string(out), "Donation Receipt pay_Nx91") {
		t.Error("PDF metadata should carry the payment ID in its title")
	}
	if !bytes.HasSuffix(bytes.TrimSpace(out), []byte("%%EOF")) {
		t.Error("PDF is truncated")
	}
}

func TestRender_isDeterministic(t *testing.T) {
	r := render.NewReceipts(time.UTC)
	a, err := r.Render(sampleReceipt())
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Render(sampleReceipt())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("rendering the same receipt twice should produce identical bytes")
	}
}
