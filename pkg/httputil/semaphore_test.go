package httputil

import (
	"context"
	"testing"
	"time"
)

func TestSemaphoreLimitsConcurrency(t *testing.T) {
	sem := NewSemaphore(2)
	ctx := context.Background()

	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("First Acquire failed: %v", err)
	}
	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Second Acquire failed: %v", err)
	}

	// Third should block until the deadline expires
	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sem.Acquire(short); err == nil {
		t.Error("Acquire at capacity should fail once the deadline expires")
	}

	sem.Release()
	if err := sem.Acquire(ctx); err != nil {
		t.Errorf("Acquire after Release failed: %v", err)
	}
}

func TestSemaphoreAcquireHonorsDeadline(t *testing.T) {
	sem := NewSemaphore(1)

	ctx := context.Background()
	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("First Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := sem.Acquire(ctx); err == nil {
		t.Error("Acquire at capacity should fail once the deadline expires")
	}
}

func TestSemaphoreDefaultCapacity(t *testing.T) {
	sem := NewSemaphore(0)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := sem.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d should succeed with default capacity: %v", i, err)
		}
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sem.Acquire(short); err == nil {
		t.Error("Acquire beyond default capacity should block until the deadline")
	}
}
