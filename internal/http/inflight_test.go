package http

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInFlightTracker_Count(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()
	tracker.Increment()
	tracker.Decrement()
	if got := tracker.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestInFlightTracker_WaitForZero(t *testing.T) {
	tracker := &InFlightTracker{}
	if err := tracker.WaitForZero(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("WaitForZero() with nothing in flight error = %v", err)
	}

	tracker.Increment()
	go func() {
		time.Sleep(10 * time.Millisecond)
		tracker.Decrement()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tracker.WaitForZero(ctx, time.Millisecond); err != nil {
		t.Fatalf("WaitForZero() error = %v", err)
	}
}

func TestInFlightTracker_WaitForZero_Deadline(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tracker.WaitForZero(ctx, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForZero() error = %v, want deadline exceeded", err)
	}
}
