package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/attire-decider/internal/models"
)

func TestRequestCoalescer_SingleCaller(t *testing.T) {
	rc := newRequestCoalescer()
	got, shared, err := rc.Do(context.Background(), "08544", func() (models.WeatherReading, error) {
		return models.WeatherReading{Zip: "08544"}, nil
	})
	if err != nil || shared || got.Zip != "08544" {
		t.Fatalf("Do() = %+v, %v, %v", got, shared, err)
	}
	if rc.inFlightCount() != 0 {
		t.Error("in-flight entry not cleaned up")
	}
}

func TestRequestCoalescer_SharesResultAndError(t *testing.T) {
	rc := newRequestCoalescer()
	release := make(chan struct{})
	var runs atomic.Int32
	boom := errors.New("boom")
	fn := func() (models.WeatherReading, error) {
		runs.Add(1)
		<-release
		return models.WeatherReading{}, boom
	}

	var wg sync.WaitGroup
	var sharedCount atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, shared, err := rc.Do(context.Background(), "98101", fn)
			if !errors.Is(err, boom) {
				t.Errorf("Do() error = %v, want boom", err)
			}
			if shared {
				sharedCount.Add(1)
			}
		}()
	}
	time.Sleep(30 * time.Millisecond)
	close(release)
	wg.Wait()

	if runs.Load() != 1 {
		t.Errorf("fn runs = %d, want 1", runs.Load())
	}
	if sharedCount.Load() != 4 {
		t.Errorf("shared callers = %d, want 4", sharedCount.Load())
	}
}

func TestRequestCoalescer_CallerCancelDoesNotAbortFetch(t *testing.T) {
	rc := newRequestCoalescer()
	release := make(chan struct{})
	done := make(chan struct{})
	fn := func() (models.WeatherReading, error) {
		<-release
		defer close(done)
		return models.WeatherReading{Zip: "33101"}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := rc.Do(ctx, "33101", fn); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want deadline exceeded", err)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fetch did not complete after caller gave up")
	}
}

func TestRequestCoalescer_DistinctKeysRunIndependently(t *testing.T) {
	rc := newRequestCoalescer()
	var runs atomic.Int32
	fn := func() (models.WeatherReading, error) {
		runs.Add(1)
		return models.WeatherReading{}, nil
	}
	_, _, _ = rc.Do(context.Background(), "08544", fn)
	_, _, _ = rc.Do(context.Background(), "98101", fn)
	if runs.Load() != 2 {
		t.Errorf("fn runs = %d, want 2", runs.Load())
	}
}
