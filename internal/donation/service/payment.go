package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/donation/render"
	"github.com/jmerrifield20/donationcore/internal/donation/repository"
	"github.com/jmerrifield20/donationcore/internal/email"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result messages returned by ReceiptIssuer.Verify.
const (
	MsgReceiptReplayed   = "Payment already verified. Existing receipt returned."
	MsgReceiptEmailed    = "Payment verified, receipt saved, and email sent."
	MsgReceiptEmailError = "Payment verified and receipt saved, but email sending failed."
	MsgInvalidSignature  = "Invalid Razorpay signature. Payment verification failed."
)

// DownloadPathPrefix is prepended to a payment ID to form the receipt download reference.
const DownloadPathPrefix = "/api/receipt/download/"

var minAmount = decimal.NewFromInt(1)

// ReceiptStore is the storage interface required by ReceiptIssuer. Create
// must insert only when no receipt exists for the payment ID.
type ReceiptStore interface {
	GetByPaymentID(ctx context.Context, paymentID string) (*model.Receipt, error)
	Create(ctx context.Context, rec *model.Receipt) (*model.Receipt, bool, error)
}

// Renderer produces the receipt PDF and email text. *render.Receipts satisfies it.
type Renderer interface {
	Render(rec *model.Receipt) ([]byte, error)
	Email(rec *model.Receipt) (subject, body string)
}

// ReceiptIssuer verifies gateway callbacks and issues exactly one receipt per payment.
type ReceiptIssuer struct {
	verifier     *SignatureVerifier
	store        ReceiptStore
	renderer     Renderer
	mailer       email.Sender
	currency     string
	emailTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewReceiptIssuer creates a ReceiptIssuer. An empty currency defaults to INR.
func NewReceiptIssuer(verifier *SignatureVerifier, store ReceiptStore, renderer Renderer, mailer email.Sender, currency string, logger *zap.Logger) *ReceiptIssuer {
	if currency == "" {
		currency = "INR"
	}
	return &ReceiptIssuer{
		verifier:     verifier,
		store:        store,
		renderer:     renderer,
		mailer:       mailer,
		currency:     currency,
		emailTimeout: 30 * time.Second,
		now:          time.Now,
		logger:       logger,
	}
}

// SetEmailTimeout bounds each receipt email delivery.
func (s *ReceiptIssuer) SetEmailTimeout(d time.Duration) {
	if d > 0 {
		s.emailTimeout = d
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *ReceiptIssuer) SetClock(now func() time.Time) {
	s.now = now
}

// Verify authenticates the payment, then returns the receipt for its
// payment ID, creating it on first sight. Replays never re-send the email.
// The signature is checked before anything else; donor fields are only
// validated when a new receipt has to be written.
func (s *ReceiptIssuer) Verify(ctx context.Context, req model.VerifyPaymentRequest) (*model.VerifyPaymentResult, error) {
	if !s.verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		if !s.verifier.Configured() {
			s.logger.Error("payment secret not configured; every signature is rejected")
		}
		return nil, fault.New(fault.CodeSignatureMismatch, MsgInvalidSignature)
	}

	existing, err := s.store.GetByPaymentID(ctx, req.PaymentID)
	switch {
	case err == nil:
		return s.replayed(existing), nil
	case !errors.Is(err, repository.ErrReceiptNotFound):
		return nil, fault.Wrap(fault.CodeInternal, "failed to look up receipt", err)
	}
	if err := validateDonor(req); err != nil {
		return nil, err
	}

	rec := &model.Receipt{
		ID:         uuid.NewString(),
		PaymentID:  req.PaymentID,
		OrderID:    req.OrderID,
		CampaignID: req.Donor.CampaignID,
		UserID:     req.Donor.UserID,
		DonorName:  strings.TrimSpace(req.Donor.Name),
		DonorEmail: strings.TrimSpace(req.Donor.Email),
		DonorPhone: strings.TrimSpace(req.Donor.Phone),
		Amount:     req.Amount,
		Currency:   s.currency,
		IssuedAt:   s.now().UTC(),
	}

	// Once the insert is attempted the request runs to completion even if
	// the caller disconnects.
	ctx = context.WithoutCancel(ctx)

	saved, created, err := s.store.Create(ctx, rec)
	if err != nil {
		return nil, fault.Wrap(fault.CodeInternal, "failed to save receipt", err)
	}
	if !created {
		// Lost a race with a concurrent verification of the same payment.
		return s.replayed(saved), nil
	}

	s.logger.Info("receipt issued",
		zap.String("receipt_id", saved.ID),
		zap.String("payment_id", saved.PaymentID),
		zap.String("amount", saved.Amount.StringFixed(2)),
	)

	sent := s.deliver(ctx, saved)
	msg := MsgReceiptEmailed
	if !sent {
		msg = MsgReceiptEmailError
	}
	return resultFor(saved, msg, sent, false), nil
}

// GetReceipt returns the receipt for paymentID.
func (s *ReceiptIssuer) GetReceipt(ctx context.Context, paymentID string) (*model.Receipt, error) {
	if isBlank(paymentID) {
		return nil, fault.New(fault.CodeInvalidInput, "paymentId is required")
	}
	rec, err := s.store.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrReceiptNotFound) {
			return nil, fault.New(fault.CodeNotFound, "Receipt not found for paymentId: "+paymentID)
		}
		return nil, fault.Wrap(fault.CodeInternal, "failed to look up receipt", err)
	}
	return rec, nil
}

// RenderReceipt returns the PDF for paymentID's receipt.
func (s *ReceiptIssuer) RenderReceipt(ctx context.Context, paymentID string) ([]byte, error) {
	rec, err := s.GetReceipt(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.Render(rec)
	if err != nil {
		return nil, fault.Wrap(fault.CodeInternal, "failed to render receipt", err)
	}
	return pdf, nil
}

// deliver renders and emails rec. Failures are logged and reported as false;
// the receipt stays issued either way.
func (s *ReceiptIssuer) deliver(ctx context.Context, rec *model.Receipt) bool {
	log := s.logger.With(zap.String("payment_id", rec.PaymentID))

	pdf, err := s.renderer.Render(rec)
	if err != nil {
		log.Error("receipt created but PDF rendering failed", zap.Error(err))
		return false
	}

	subject, body := s.renderer.Email(rec)
	ectx, cancel := context.WithTimeout(ctx, s.emailTimeout)
	defer cancel()

	err = s.mailer.Send(ectx, email.Message{
		To:      rec.DonorEmail,
		Subject: subject,
		Body:    body,
		Attachments: []email.Attachment{{
			Filename:    render.ReceiptFilename(rec.PaymentID),
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	})
	if err != nil {
		log.Error("receipt created but email failed", zap.Error(err))
		return false
	}
	return true
}

func (s *ReceiptIssuer) replayed(rec *model.Receipt) *model.VerifyPaymentResult {
	s.logger.Info("payment already verified", zap.String("payment_id", rec.PaymentID))
	return resultFor(rec, MsgReceiptReplayed, false, true)
}

func resultFor(rec *model.Receipt, msg string, emailSent, replay bool) *model.VerifyPaymentResult {
	return &model.VerifyPaymentResult{
		Message:           msg,
		ReceiptID:         rec.ID,
		PaymentID:         rec.PaymentID,
		OrderID:           rec.OrderID,
		DownloadReference: DownloadPathPrefix + rec.PaymentID,
		EmailSent:         emailSent,
		AlreadyProcessed:  replay,
	}
}

// validateDonor checks the donor-supplied fields. Gateway identifiers are
// left to the signature check so that any incomplete callback is reported
// uniformly as a signature failure.
func validateDonor(req model.VerifyPaymentRequest) error {
	required := []struct{ name, value string }{
		{"campaignId", req.Donor.CampaignID},
		{"userId", req.Donor.UserID},
		{"donorName", req.Donor.Name},
		{"donorEmail", req.Donor.Email},
		{"donorPhone", req.Donor.Phone},
	}
	for _, f := range required {
		if isBlank(f.value) {
			return fault.New(fault.CodeInvalidInput, fmt.Sprintf("%s is required", f.name))
		}
	}
	if req.Amount.LessThan(minAmount) {
		return fault.New(fault.CodeInvalidInput, "amount must be at least 1")
	}
	// Receipts store amounts with two decimal places.
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return fault.New(fault.CodeInvalidInput, "amount must have at most 2 decimal places")
	}
	return nil
}
