package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a user lookup finds no matching record.
var ErrNotFound = errors.New("user not found")

// ErrDuplicatePhone is returned when an account already uses the phone number.
var ErrDuplicatePhone = errors.New("phone number already registered")

// ErrDuplicateEmail is returned when an account already uses the email address.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository reads and writes accounts in PostgreSQL.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. Sets ID, CreatedAt and UpdatedAt on u.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.UserType == "" {
		u.UserType = TypeDonor
	}

	q := `
		INSERT INTO users (id, name, email, phone_number, user_type, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, q,
		u.ID, u.Name, u.Email, u.PhoneNumber, u.UserType, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "users_email_key" {
				return ErrDuplicateEmail
			}
			return ErrDuplicatePhone
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByPhone retrieves a user by normalized E.164 phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phoneNumber string) (*User, error) {
	if phoneNumber == "" {
		return nil, ErrNotFound
	}
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phoneNumber)
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

const userColumns = `id, name, email, COALESCE(phone_number, ''), user_type, password_hash, created_at, updated_at`

func (r *UserRepository) scanOne(ctx context.Context, q string, args ...any) (*User, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	var u User
	if err := rows.Scan(
		&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.UserType, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, rows.Err()
}
