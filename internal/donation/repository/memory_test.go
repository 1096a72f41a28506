package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/donation/repository"
	"github.com/shopspring/decimal"
)

func ptr(t time.Time) *time.Time { return &t }

func TestMemoryOTPStore_saveGetDelete(t *testing.T) {
	s := repository.NewMemoryOTPStore()
	ctx := context.Background()
	now := time.Now()

	if _, err := s.Get(ctx, "+919876543210"); !errors.Is(err, repository.ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}

	ch := &model.OTPChallenge{PhoneNumber: "+919876543210", CodeHash: "h", ExpiresAt: ptr(now), SendCount: 1}
	if err := s.Save(ctx, ch); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	ch.SendCount = 99
	*ch.ExpiresAt = now.Add(time.Hour)

	got, err := s.Get(ctx, "+919876543210")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SendCount != 1 {
		t.Errorf("SendCount: got %d, want 1", got.SendCount)
	}
	if !got.ExpiresAt.Equal(now) {
		t.Errorf("ExpiresAt aliased caller memory: %v", got.ExpiresAt)
	}

	if err := s.Delete(ctx, "+919876543210"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len after delete: %d", s.Len())
	}
	if err := s.Delete(ctx, "+919876543210"); err != nil {
		t.Errorf("deleting a missing record should not fail: %v", err)
	}
}

func TestMemoryOTPStore_deleteStale(t *testing.T) {
	s := repository.NewMemoryOTPStore()
	ctx := context.Background()
	now := time.Now()

	// Expired code and closed window: stale.
	_ = s.Save(ctx, &model.OTPChallenge{PhoneNumber: "+910000000001",
		ExpiresAt: ptr(now.Add(-2 * time.Hour)), WindowStart: ptr(now.Add(-3 * time.Hour))})
	// Expired code but window still open: keep, it carries the send count.
	_ = s.Save(ctx, &model.OTPChallenge{PhoneNumber: "+910000000002",
		ExpiresAt: ptr(now.Add(-time.Minute)), WindowStart: ptr(now.Add(-10 * time.Minute))})
	// Live code: keep.
	_ = s.Save(ctx, &model.OTPChallenge{PhoneNumber: "+910000000003",
		ExpiresAt: ptr(now.Add(time.Minute)), WindowStart: ptr(now.Add(-2 * time.Hour))})

	n, err := s.DeleteStale(ctx, now, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := s.Get(ctx, "+910000000001"); !errors.Is(err, repository.ErrChallengeNotFound) {
		t.Error("stale challenge should be gone")
	}
	if s.Len() != 2 {
		t.Errorf("Len: got %d, want 2", s.Len())
	}
}

func TestMemoryReceiptStore_createIsInsertIfAbsent(t *testing.T) {
	s := repository.NewMemoryReceiptStore()
	ctx := context.Background()

	first := &model.Receipt{ID: "r1", PaymentID: "pay_123", Amount: decimal.NewFromInt(500)}
	got, created, err := s.Create(ctx, first)
	if err != nil || !created {
		t.Fatalf("first Create: created=%v err=%v", created, err)
	}
	if got.ID != "r1" {
		t.Errorf("ID: got %q", got.ID)
	}

	second := &model.Receipt{ID: "r2", PaymentID: "pay_123", Amount: decimal.NewFromInt(500)}
	got, created, err = s.Create(ctx, second)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if created {
		t.Error("second Create must not insert")
	}
	if got.ID != "r1" {
		t.Errorf("expected existing receipt r1, got %q", got.ID)
	}
}

func TestMemoryReceiptStore_concurrentCreate(t *testing.T) {
	s := repository.NewMemoryReceiptStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	ids := make(map[string]bool)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := &model.Receipt{ID: string(rune('a' + i)), PaymentID: "pay_race"}
			got, created, err := s.Create(ctx, rec)
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if created {
				createdCount++
			}
			ids[got.ID] = true
		}(i)
	}
	wg.Wait()

	if createdCount != 1 {
		t.Errorf("created %d receipts, want exactly 1", createdCount)
	}
	if len(ids) != 1 {
		t.Errorf("callers saw %d different receipts, want 1", len(ids))
	}
	if s.Len() != 1 {
		t.Errorf("Len: %d", s.Len())
	}
}
