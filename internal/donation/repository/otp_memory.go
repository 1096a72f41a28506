package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jmerrifield20/donationcore/internal/donation/model"
)

// MemoryOTPStore keeps OTP challenges in process memory. Suitable for
// development and single-replica deployments.
type MemoryOTPStore struct {
	mu   sync.RWMutex
	rows map[string]*model.OTPChallenge
}

// NewMemoryOTPStore creates an empty MemoryOTPStore.
func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{rows: make(map[string]*model.OTPChallenge)}
}

// Get returns a copy of the challenge for phoneNumber.
func (s *MemoryOTPStore) Get(_ context.Context, phoneNumber string) (*model.OTPChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.rows[phoneNumber]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return cloneChallenge(ch), nil
}

// Save upserts the challenge keyed by its phone number.
func (s *MemoryOTPStore) Save(_ context.Context, ch *model.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ch.PhoneNumber] = cloneChallenge(ch)
	return nil
}

// Delete removes the challenge for phoneNumber. Deleting a missing record is not an error.
func (s *MemoryOTPStore) Delete(_ context.Context, phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, phoneNumber)
	return nil
}

// DeleteStale removes challenges whose code expired before expiredBefore and
// whose send window opened before windowBefore.
func (s *MemoryOTPStore) DeleteStale(_ context.Context, expiredBefore, windowBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, ch := range s.rows {
		if ch.ExpiresAt != nil && !ch.ExpiresAt.Before(expiredBefore) {
			continue
		}
		if ch.WindowStart != nil && !ch.WindowStart.Before(windowBefore) {
			continue
		}
		delete(s.rows, k)
		n++
	}
	return n, nil
}

// Len returns the number of stored challenges.
func (s *MemoryOTPStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func cloneChallenge(ch *model.OTPChallenge) *model.OTPChallenge {
	cp := *ch
	cp.ExpiresAt = cloneTime(ch.ExpiresAt)
	cp.WindowStart = cloneTime(ch.WindowStart)
	cp.LastSentAt = cloneTime(ch.LastSentAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
