package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the immutable record of one completed payment. PaymentID is
// unique across the lifetime of the system.
type Receipt struct {
	ID         string          `json:"id"`
	PaymentID  string          `json:"payment_id"`
	OrderID    string          `json:"order_id"`
	CampaignID string          `json:"campaign_id"`
	UserID     string          `json:"user_id"`
	DonorName  string          `json:"donor_name"`
	DonorEmail string          `json:"donor_email"`
	DonorPhone string          `json:"donor_phone"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	IssuedAt   time.Time       `json:"issued_at"`
}

// DonorDetails are the donor-supplied fields copied onto a new receipt.
type DonorDetails struct {
	CampaignID string
	UserID     string
	Name       string
	Email      string
	Phone      string
}

// VerifyPaymentRequest is the input to payment verification.
type VerifyPaymentRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	Donor     DonorDetails
	Amount    decimal.Decimal
}

// VerifyPaymentResult describes the receipt produced (or found) for a payment.
type VerifyPaymentResult struct {
	Message           string `json:"message"`
	ReceiptID         string `json:"receiptId"`
	PaymentID         string `json:"paymentId"`
	OrderID           string `json:"orderId"`
	DownloadReference string `json:"downloadReference"`
	EmailSent         bool   `json:"emailSent"`
	AlreadyProcessed  bool   `json:"alreadyProcessed"`
}
