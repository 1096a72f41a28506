package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmerrifield20/donationcore/internal/donation/model"
)

var receiptsBucket = []byte("receipts")

// BoltReceiptStore keeps receipts in an embedded BoltDB file, keyed by
// payment ID. Bolt allows one writer at a time, so the existence check and
// the put inside Create cannot interleave with another Create.
type BoltReceiptStore struct {
	db *bolt.DB
}

// OpenBoltReceiptStore opens (or creates) the database at path.
func OpenBoltReceiptStore(path string) (*BoltReceiptStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(receiptsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create receipts bucket: %w", err)
	}
	return &BoltReceiptStore{db: db}, nil
}

// Close releases the database file lock.
func (s *BoltReceiptStore) Close() error {
	return s.db.Close()
}

// GetByPaymentID returns the receipt for paymentID or ErrReceiptNotFound.
func (s *BoltReceiptStore) GetByPaymentID(_ context.Context, paymentID string) (*model.Receipt, error) {
	var rec model.Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(receiptsBucket).Get([]byte(paymentID))
		if v == nil {
			return ErrReceiptNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create stores rec unless a receipt for its payment ID already exists.
func (s *BoltReceiptStore) Create(_ context.Context, rec *model.Receipt) (*model.Receipt, bool, error) {
	var result model.Receipt
	created := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(receiptsBucket)
		if existing := b.Get([]byte(rec.PaymentID)); existing != nil {
			return json.Unmarshal(existing, &result)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		result = *rec
		created = true
		return b.Put([]byte(rec.PaymentID), data)
	})
	if err != nil {
		return nil, false, fmt.Errorf("create receipt: %w", err)
	}
	return &result, created, nil
}
