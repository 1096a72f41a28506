package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/shopspring/decimal"
)

// PostgresReceiptStore persists receipts in the receipts table. The UNIQUE
// constraint on payment_id is what guarantees one receipt per payment.
type PostgresReceiptStore struct {
	db *pgxpool.Pool
}

// NewPostgresReceiptStore creates a PostgresReceiptStore.
func NewPostgresReceiptStore(db *pgxpool.Pool) *PostgresReceiptStore {
	return &PostgresReceiptStore{db: db}
}

// GetByPaymentID returns the receipt for paymentID or ErrReceiptNotFound.
func (r *PostgresReceiptStore) GetByPaymentID(ctx context.Context, paymentID string) (*model.Receipt, error) {
	rec := &model.Receipt{}
	var amount string
	err := r.db.QueryRow(ctx,
		`SELECT id, payment_id, order_id, campaign_id, user_id, donor_name,
		        donor_email, donor_phone, amount::text, currency, issued_at
		 FROM receipts WHERE payment_id = $1`, paymentID,
	).Scan(&rec.ID, &rec.PaymentID, &rec.OrderID, &rec.CampaignID, &rec.UserID, &rec.DonorName,
		&rec.DonorEmail, &rec.DonorPhone, &amount, &rec.Currency, &rec.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse receipt amount: %w", err)
	}
	return rec, nil
}

// Create inserts rec if no receipt exists for its payment ID. When another
// writer got there first the stored receipt is returned with created=false.
func (r *PostgresReceiptStore) Create(ctx context.Context, rec *model.Receipt) (*model.Receipt, bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO receipts (id, payment_id, order_id, campaign_id, user_id, donor_name,
		                       donor_email, donor_phone, amount, currency, issued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11)
		 ON CONFLICT (payment_id) DO NOTHING`,
		rec.ID, rec.PaymentID, rec.OrderID, rec.CampaignID, rec.UserID, rec.DonorName,
		rec.DonorEmail, rec.DonorPhone, rec.Amount.String(), rec.Currency, rec.IssuedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert receipt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.GetByPaymentID(ctx, rec.PaymentID)
		if err != nil {
			return nil, false, fmt.Errorf("load existing receipt: %w", err)
		}
		return existing, false, nil
	}
	cp := *rec
	return &cp, true, nil
}
