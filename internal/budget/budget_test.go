package budget

import (
	"errors"
	"sync"
	"testing"
)

func TestReserveStopsAtLimit(t *testing.T) {
	b := New(3)
	for i := 0; i < 3; i++ {
		if !b.Reserve() {
			t.Fatalf("reserve %d failed, want success", i)
		}
	}
	if b.Reserve() {
		t.Fatal("reserve beyond limit succeeded")
	}
	if b.Spent() != 3 {
		t.Errorf("spent = %d, want 3", b.Spent())
	}
	if b.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", b.Remaining())
	}
	if !b.Exhausted() {
		t.Error("expected budget to be exhausted")
	}
}

func TestSpendReturnsErrExhausted(t *testing.T) {
	b := New(1)
	if err := b.Spend(); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if err := b.Spend(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("second spend error = %v, want ErrExhausted", err)
	}
}

func TestNonPositiveLimit(t *testing.T) {
	for _, limit := range []int{0, -4} {
		b := New(limit)
		if b.Limit() != 0 {
			t.Errorf("New(%d).Limit() = %d, want 0", limit, b.Limit())
		}
		if b.Reserve() {
			t.Errorf("New(%d).Reserve() succeeded", limit)
		}
	}
}

// TestConcurrentReserveNeverExceedsLimit hammers one budget from many
// goroutines and checks the number of granted reservations.
func TestConcurrentReserveNeverExceedsLimit(t *testing.T) {
	const limit = 50
	b := New(limit)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Reserve() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != limit {
		t.Errorf("granted = %d, want %d", granted, limit)
	}
	if b.Spent() != limit {
		t.Errorf("spent = %d, want %d", b.Spent(), limit)
	}
}
