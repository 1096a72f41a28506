package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process account directory for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byPhone map[string]uuid.UUID
	byEmail map[string]uuid.UUID
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]*User),
		byPhone: make(map[string]uuid.UUID),
		byEmail: make(map[string]uuid.UUID),
	}
}

// Create stores u, enforcing unique phone number and email.
func (r *MemoryRepository) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.PhoneNumber != "" {
		if _, ok := r.byPhone[u.PhoneNumber]; ok {
			return ErrDuplicatePhone
		}
	}
	if u.Email != "" {
		if _, ok := r.byEmail[u.Email]; ok {
			return ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.UserType == "" {
		u.UserType = TypeDonor
	}
	cp := *u
	r.byID[u.ID] = &cp
	if u.PhoneNumber != "" {
		r.byPhone[u.PhoneNumber] = u.ID
	}
	if u.Email != "" {
		r.byEmail[u.Email] = u.ID
	}
	return nil
}

// GetByID returns a copy of the user with id.
func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByPhone returns a copy of the user registered with phoneNumber.
func (r *MemoryRepository) GetByPhone(ctx context.Context, phoneNumber string) (*User, error) {
	r.mu.RLock()
	id, ok := r.byPhone[phoneNumber]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// GetByEmail returns a copy of the user registered with email.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
