package repository

import (
	"context"
	"sync"

	"github.com/jmerrifield20/donationcore/internal/donation/model"
)

// MemoryReceiptStore is an in-process receipt store keyed by payment ID.
type MemoryReceiptStore struct {
	mu   sync.RWMutex
	rows map[string]*model.Receipt
}

// NewMemoryReceiptStore creates an empty MemoryReceiptStore.
func NewMemoryReceiptStore() *MemoryReceiptStore {
	return &MemoryReceiptStore{rows: make(map[string]*model.Receipt)}
}

// GetByPaymentID returns a copy of the receipt for paymentID.
func (s *MemoryReceiptStore) GetByPaymentID(_ context.Context, paymentID string) (*model.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[paymentID]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	cp := *r
	return &cp, nil
}

// Create stores rec unless a receipt for the same payment ID exists, in
// which case the existing receipt is returned with created=false.
func (s *MemoryReceiptStore) Create(_ context.Context, rec *model.Receipt) (*model.Receipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[rec.PaymentID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *rec
	s.rows[rec.PaymentID] = &cp
	out := cp
	return &out, true, nil
}

// Len returns the number of stored receipts.
func (s *MemoryReceiptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
