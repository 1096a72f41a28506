package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/donation/render"
	"github.com/jmerrifield20/donationcore/internal/donation/repository"
	"github.com/jmerrifield20/donationcore/internal/donation/service"
	"github.com/jmerrifield20/donationcore/internal/email"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testSecret = "rzp_secret_XyZ"

type stubMailer struct {
	mu   sync.Mutex
	sent []email.Message
	fail error
}

func (m *stubMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *stubMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type failingRenderer struct{ *render.Receipts }

func (failingRenderer) Render(*model.Receipt) ([]byte, error) {
	return nil, errors.New("font missing")
}

func newIssuer(t *testing.T, mailer email.Sender) (*service.ReceiptIssuer, *repository.MemoryReceiptStore) {
	t.Helper()
	store := repository.NewMemoryReceiptStore()
	iss := service.NewReceiptIssuer(service.NewSignatureVerifier(testSecret), store, render.NewReceipts(time.UTC), mailer, "", zap.NewNop())
	iss.SetClock(func() time.Time { return time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC) })
	return iss, store
}

func signedRequest(orderID, paymentID string) model.VerifyPaymentRequest {
	return model.VerifyPaymentRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: service.NewSignatureVerifier(testSecret).Sign(orderID, paymentID),
		Donor: model.DonorDetails{
			CampaignID: "cmp_1",
			UserID:     "usr_1",
			Name:       "Asha Rao",
			Email:      "asha@example.org",
			Phone:      "+919876543210",
		},
		Amount: decimal.NewFromInt(500),
	}
}

func TestReceiptIssuer_firstVerification(t *testing.T) {
	mailer := &stubMailer{}
	iss, store := newIssuer(t, mailer)

	res, err := iss.Verify(context.Background(), signedRequest("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Message != service.MsgReceiptEmailed {
		t.Errorf("Message: %q", res.Message)
	}
	if !res.EmailSent || res.AlreadyProcessed {
		t.Errorf("flags: emailSent=%v alreadyProcessed=%v", res.EmailSent, res.AlreadyProcessed)
	}
	if res.DownloadReference != "/api/receipt/download/pay_1" {
		t.Errorf("DownloadReference: %q", res.DownloadReference)
	}
	if res.ReceiptID == "" || res.OrderID != "order_1" {
		t.Errorf("unexpected result: %+v", res)
	}

	rec, err := store.GetByPaymentID(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("stored receipt: %v", err)
	}
	if rec.Currency != "INR" || !rec.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("stored receipt: %+v", rec)
	}

	if mailer.count() != 1 {
		t.Fatalf("emails sent: %d", mailer.count())
	}
	msg := mailer.sent[0]
	if msg.To != "asha@example.org" || msg.Subject != "Donation Receipt - Payment pay_1" {
		t.Errorf("email: to=%q subject=%q", msg.To, msg.Subject)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Filename != "receipt-pay_1.pdf" {
		t.Errorf("attachments: %+v", msg.Attachments)
	}
}

func TestReceiptIssuer_replayReturnsExistingReceipt(t *testing.T) {
	mailer := &stubMailer{}
	iss, store := newIssuer(t, mailer)
	ctx := context.Background()

	first, err := iss.Verify(ctx, signedRequest("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}

	req := signedRequest("order_1", "pay_1")
	req.Amount = decimal.NewFromInt(9999)
	second, err := iss.Verify(ctx, req)
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if second.Message != service.MsgReceiptReplayed {
		t.Errorf("Message: %q", second.Message)
	}
	if !second.AlreadyProcessed || second.EmailSent {
		t.Errorf("flags: %+v", second)
	}
	if second.ReceiptID != first.ReceiptID {
		t.Errorf("replay returned a different receipt: %q vs %q", second.ReceiptID, first.ReceiptID)
	}
	if store.Len() != 1 {
		t.Errorf("receipts stored: %d", store.Len())
	}
	if mailer.count() != 1 {
		t.Errorf("replay must not re-send email; sent %d", mailer.count())
	}

	rec, _ := store.GetByPaymentID(ctx, "pay_1")
	if !rec.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("replay overwrote the stored amount: %s", rec.Amount)
	}
}

func TestReceiptIssuer_invalidSignature(t *testing.T) {
	mailer := &stubMailer{}
	iss, store := newIssuer(t, mailer)

	req := signedRequest("order_1", "pay_1")
	req.Signature = service.NewSignatureVerifier("other-secret").Sign("order_1", "pay_1")

	_, err := iss.Verify(context.Background(), req)
	if !errors.Is(err, fault.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
	if fault.MessageOf(err) != service.MsgInvalidSignature {
		t.Errorf("message: %q", fault.MessageOf(err))
	}
	if store.Len() != 0 || mailer.count() != 0 {
		t.Error("nothing may be stored or sent for a bad signature")
	}
}

func TestReceiptIssuer_blankGatewayFieldsAreSignatureFailures(t *testing.T) {
	iss, _ := newIssuer(t, &stubMailer{})

	for name, mutate := range map[string]func(*model.VerifyPaymentRequest){
		"order":     func(r *model.VerifyPaymentRequest) { r.OrderID = "" },
		"payment":   func(r *model.VerifyPaymentRequest) { r.PaymentID = "  " },
		"signature": func(r *model.VerifyPaymentRequest) { r.Signature = "" },
	} {
		req := signedRequest("order_1", "pay_1")
		mutate(&req)
		if _, err := iss.Verify(context.Background(), req); !errors.Is(err, fault.ErrSignatureMismatch) {
			t.Errorf("%s blank: expected ErrSignatureMismatch, got %v", name, err)
		}
	}
}

func TestReceiptIssuer_unconfiguredSecretRejectsEverything(t *testing.T) {
	store := repository.NewMemoryReceiptStore()
	iss := service.NewReceiptIssuer(service.NewSignatureVerifier("  "), store, render.NewReceipts(nil), &stubMailer{}, "INR", zap.NewNop())

	req := signedRequest("order_1", "pay_1")
	req.Signature = service.NewSignatureVerifier("").Sign("order_1", "pay_1")
	if _, err := iss.Verify(context.Background(), req); !errors.Is(err, fault.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestReceiptIssuer_donorValidation(t *testing.T) {
	iss, _ := newIssuer(t, &stubMailer{})

	cases := map[string]func(*model.VerifyPaymentRequest){
		"campaign":    func(r *model.VerifyPaymentRequest) { r.Donor.CampaignID = "" },
		"user":        func(r *model.VerifyPaymentRequest) { r.Donor.UserID = "" },
		"name":        func(r *model.VerifyPaymentRequest) { r.Donor.Name = " " },
		"email":       func(r *model.VerifyPaymentRequest) { r.Donor.Email = "" },
		"phone":       func(r *model.VerifyPaymentRequest) { r.Donor.Phone = "" },
		"zero amount": func(r *model.VerifyPaymentRequest) { r.Amount = decimal.Zero },
		"fractional":  func(r *model.VerifyPaymentRequest) { r.Amount = decimal.RequireFromString("0.99") },
		"sub-paise":   func(r *model.VerifyPaymentRequest) { r.Amount = decimal.RequireFromString("500.005") },
	}
	for name, mutate := range cases {
		req := signedRequest("order_1", "pay_1")
		mutate(&req)
		if _, err := iss.Verify(context.Background(), req); !errors.Is(err, fault.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestReceiptIssuer_amountScale(t *testing.T) {
	iss, store := newIssuer(t, &stubMailer{})

	req := signedRequest("order_1", "pay_1")
	req.Amount = decimal.RequireFromString("500.500")
	if _, err := iss.Verify(context.Background(), req); err != nil {
		t.Fatalf("trailing zeros must be accepted: %v", err)
	}
	rec, err := store.GetByPaymentID(context.Background(), "pay_1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Amount.StringFixed(2) != "500.50" {
		t.Errorf("amount: %s", rec.Amount)
	}
}

func TestReceiptIssuer_signatureCheckedBeforeDonorFields(t *testing.T) {
	iss, store := newIssuer(t, &stubMailer{})

	req := signedRequest("order_1", "pay_1")
	req.Signature = "deadbeef"
	req.Donor.Email = ""
	if _, err := iss.Verify(context.Background(), req); !errors.Is(err, fault.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("nothing may be stored for a bad signature")
	}
}

func TestReceiptIssuer_emailFailureStillIssues(t *testing.T) {
	iss, store := newIssuer(t, &stubMailer{fail: errors.New("smtp: 451")})

	res, err := iss.Verify(context.Background(), signedRequest("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.EmailSent || res.Message != service.MsgReceiptEmailError {
		t.Errorf("result: %+v", res)
	}
	if store.Len() != 1 {
		t.Error("receipt must be kept when email fails")
	}
}

func TestReceiptIssuer_renderFailureStillIssues(t *testing.T) {
	store := repository.NewMemoryReceiptStore()
	mailer := &stubMailer{}
	iss := service.NewReceiptIssuer(service.NewSignatureVerifier(testSecret), store,
		failingRenderer{render.NewReceipts(nil)}, mailer, "INR", zap.NewNop())

	res, err := iss.Verify(context.Background(), signedRequest("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.EmailSent || mailer.count() != 0 {
		t.Error("no email should go out without a PDF")
	}
	if store.Len() != 1 {
		t.Error("receipt must be kept when rendering fails")
	}
}

func TestReceiptIssuer_concurrentVerificationIssuesOnce(t *testing.T) {
	mailer := &stubMailer{}
	iss, store := newIssuer(t, mailer)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan *model.VerifyPaymentResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := iss.Verify(ctx, signedRequest("order_1", "pay_race"))
			if err != nil {
				t.Errorf("Verify: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	fresh := 0
	ids := make(map[string]bool)
	for res := range results {
		if !res.AlreadyProcessed {
			fresh++
		}
		ids[res.ReceiptID] = true
	}
	if fresh != 1 {
		t.Errorf("fresh issues: %d, want 1", fresh)
	}
	if len(ids) != 1 {
		t.Errorf("distinct receipt IDs: %d, want 1", len(ids))
	}
	if store.Len() != 1 || mailer.count() != 1 {
		t.Errorf("stored=%d emailed=%d, want 1 and 1", store.Len(), mailer.count())
	}
}

func TestReceiptIssuer_renderReceipt(t *testing.T) {
	iss, _ := newIssuer(t, &stubMailer{})
	ctx := context.Background()

	if _, err := iss.RenderReceipt(ctx, "pay_missing"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("missing receipt: expected ErrNotFound, got %v", err)
	}

	if _, err := iss.Verify(ctx, signedRequest("order_1", "pay_1")); err != nil {
		t.Fatal(err)
	}
	pdf, err := iss.RenderReceipt(ctx, "pay_1")
	if err != nil {
		t.Fatalf("RenderReceipt: %v", err)
	}
	if len(pdf) < 5 || string(pdf[:5]) != "%PDF-" {
		t.Error("expected PDF bytes")
	}
}
