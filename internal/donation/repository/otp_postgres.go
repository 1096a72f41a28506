package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/donationcore/internal/donation/model"
)

// PostgresOTPStore persists OTP challenges in the otp_challenges table,
// one row per phone number.
type PostgresOTPStore struct {
	db *pgxpool.Pool
}

// NewPostgresOTPStore creates a PostgresOTPStore.
func NewPostgresOTPStore(db *pgxpool.Pool) *PostgresOTPStore {
	return &PostgresOTPStore{db: db}
}

// Get returns the challenge for phoneNumber or ErrChallengeNotFound.
func (r *PostgresOTPStore) Get(ctx context.Context, phoneNumber string) (*model.OTPChallenge, error) {
	ch := &model.OTPChallenge{}
	err := r.db.QueryRow(ctx,
		`SELECT phone_number, COALESCE(code_hash, ''), expires_at, verified,
		        verify_attempts, send_count, window_start, last_sent_at
		 FROM otp_challenges WHERE phone_number = $1`, phoneNumber,
	).Scan(&ch.PhoneNumber, &ch.CodeHash, &ch.ExpiresAt, &ch.Verified,
		&ch.VerifyAttempts, &ch.SendCount, &ch.WindowStart, &ch.LastSentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get otp challenge: %w", err)
	}
	return ch, nil
}

// Save upserts the challenge in a single statement.
func (r *PostgresOTPStore) Save(ctx context.Context, ch *model.OTPChallenge) error {
	var codeHash *string
	if ch.CodeHash != "" {
		codeHash = &ch.CodeHash
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO otp_challenges
		     (phone_number, code_hash, expires_at, verified, verify_attempts,
		      send_count, window_start, last_sent_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (phone_number) DO UPDATE SET
		     code_hash       = EXCLUDED.code_hash,
		     expires_at      = EXCLUDED.expires_at,
		     verified        = EXCLUDED.verified,
		     verify_attempts = EXCLUDED.verify_attempts,
		     send_count      = EXCLUDED.send_count,
		     window_start    = EXCLUDED.window_start,
		     last_sent_at    = EXCLUDED.last_sent_at,
		     updated_at      = EXCLUDED.updated_at`,
		ch.PhoneNumber, codeHash, ch.ExpiresAt, ch.Verified, ch.VerifyAttempts,
		ch.SendCount, ch.WindowStart, ch.LastSentAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save otp challenge: %w", err)
	}
	return nil
}

// Delete removes the challenge for phoneNumber.
func (r *PostgresOTPStore) Delete(ctx context.Context, phoneNumber string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM otp_challenges WHERE phone_number = $1`, phoneNumber,
	); err != nil {
		return fmt.Errorf("delete otp challenge: %w", err)
	}
	return nil
}

// DeleteStale removes challenges whose code has expired and whose send
// window is closed. Returns the number of rows deleted.
func (r *PostgresOTPStore) DeleteStale(ctx context.Context, expiredBefore, windowBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM otp_challenges
		 WHERE (expires_at IS NULL OR expires_at < $1)
		   AND (window_start IS NULL OR window_start < $2)`,
		expiredBefore, windowBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale otp challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}
