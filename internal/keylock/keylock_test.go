package keylock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmerrifield20/donationcore/internal/keylock"
)

func TestLock_serializesSameKey(t *testing.T) {
	m := keylock.New()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "+919876543210")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most one holder at a time, saw %d", maxInside)
	}
	if m.Len() != 0 {
		t.Errorf("expected map to be empty after release, got %d", m.Len())
	}
}

func TestLock_differentKeysDoNotBlock(t *testing.T) {
	m := keylock.New()
	unlockA, err := m.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lock a: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("Lock b should not wait on a: %v", err)
	}
	unlockB()
}

func TestLock_contextCancelled(t *testing.T) {
	m := keylock.New()
	unlock, _ := m.Lock(context.Background(), "k")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("waiter must release its reference, Len = %d", m.Len())
	}
}

func TestUnlock_idempotent(t *testing.T) {
	m := keylock.New()
	unlock, _ := m.Lock(context.Background(), "k")
	unlock()
	unlock()
	if m.Len() != 0 {
		t.Errorf("Len = %d after double unlock", m.Len())
	}
}
