package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Component: "test_open", FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() #%d error = %v, want errBoom", i, err)
		}
	}
	if got := b.State(); got != "open" {
		t.Fatalf("State() = %q, want open", got)
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Execute() while open error = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn called while breaker open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(Config{Component: "test_reset", FailureThreshold: 2, Timeout: time.Minute})

	_ = b.Execute(func() error { return errBoom })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errBoom })

	if got := b.State(); got != "closed" {
		t.Errorf("State() = %q, want closed", got)
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New(Config{Component: "test_halfopen", FailureThreshold: 1, Timeout: 20 * time.Millisecond})

	_ = b.Execute(func() error { return errBoom })
	if got := b.State(); got != "open" {
		t.Fatalf("State() = %q, want open", got)
	}

	time.Sleep(40 * time.Millisecond)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe Execute() error = %v", err)
	}
	if got := b.State(); got != "closed" {
		t.Errorf("State() after probe = %q, want closed", got)
	}
}

func TestBreaker_IsSuccessfulIgnoresClientErrors(t *testing.T) {
	errNotFound := errors.New("not found")
	b := New(Config{
		Component:        "test_ignore",
		FailureThreshold: 1,
		Timeout:          time.Minute,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
	})

	for i := 0; i < 5; i++ {
		if err := b.Execute(func() error { return errNotFound }); !errors.Is(err, errNotFound) {
			t.Fatalf("Execute() error = %v, want errNotFound", err)
		}
	}
	if got := b.State(); got != "closed" {
		t.Errorf("State() = %q, want closed", got)
	}
}
