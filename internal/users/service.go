package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/jmerrifield20/donationcore/internal/phone"
	"go.uber.org/zap"
)

// MinPasswordLen is the shortest password Register accepts.
const MinPasswordLen = 8

// Store is the account storage consumed by UserService and the OTP login.
// *UserRepository and *MemoryRepository satisfy it.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPhone(ctx context.Context, phoneNumber string) (*User, error)
}

// passwordHasher is satisfied by *security.Hasher.
type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// RegisterInput carries the fields of a new email/password account.
// PhoneNumber is optional; when set it enables OTP login as well.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	PhoneNumber string
	UserType    UserType
}

// UserService implements account registration and password login.
type UserService struct {
	repo   Store
	hasher passwordHasher
	logger *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo Store, hasher passwordHasher, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, hasher: hasher, logger: logger}
}

// Register creates an account with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	name := strings.TrimSpace(in.Name)
	addr := NormalizeEmail(in.Email)
	switch {
	case name == "":
		return nil, fault.New(fault.CodeInvalidInput, "name is required")
	case addr == "":
		return nil, fault.New(fault.CodeInvalidInput, "email is required")
	case !validEmail(addr):
		return nil, fault.New(fault.CodeInvalidInput, "email is invalid")
	case len(in.Password) < MinPasswordLen:
		return nil, fault.New(fault.CodeInvalidInput, "password must be at least 8 characters")
	}

	userType := UserType(strings.ToLower(strings.TrimSpace(string(in.UserType))))
	if userType == "" {
		userType = TypeDonor
	}
	if !userType.Valid() {
		return nil, fault.New(fault.CodeInvalidInput, `userType must be "donor" or "ngo"`)
	}

	var num string
	if strings.TrimSpace(in.PhoneNumber) != "" {
		n, err := phone.Normalize(in.PhoneNumber)
		if err != nil {
			return nil, fault.Wrap(fault.CodeInvalidInput, err.Error(), err)
		}
		num = n
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fault.Wrap(fault.CodeInternal, "failed to hash password", err)
	}

	u := &User{
		Name:         name,
		Email:        addr,
		PhoneNumber:  num,
		UserType:     userType,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return nil, fault.Wrap(fault.CodeConflict, "User with this email already exists", err)
		case errors.Is(err, ErrDuplicatePhone):
			return nil, fault.Wrap(fault.CodeConflict, "User with this phone number already exists", err)
		}
		return nil, fault.Wrap(fault.CodeInternal, "failed to create account", err)
	}

	s.logger.Info("account registered",
		zap.String("user_id", u.ID.String()),
		zap.String("user_type", string(u.UserType)),
	)
	return u, nil
}

// Login verifies email/password credentials and returns the user on success.
// Unknown emails, wrong passwords and OTP-only accounts fail identically.
func (s *UserService) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.New(fault.CodeBadCredentials, "Invalid credentials")
		}
		return nil, fault.Wrap(fault.CodeInternal, "failed to look up account", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.logger.Info("password login rejected", zap.String("user_id", u.ID.String()))
		return nil, fault.New(fault.CodeBadCredentials, "Invalid credentials")
	}
	return u, nil
}

// Get returns the account whose ID is the string form of a UUID.
func (s *UserService) Get(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fault.New(fault.CodeNotFound, "account not found")
	}
	u, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.New(fault.CodeNotFound, "account not found")
		}
		return nil, fault.Wrap(fault.CodeInternal, "failed to look up account", err)
	}
	return u, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}
