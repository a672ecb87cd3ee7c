package traffic

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTracker_Counts(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr := NewTracker(clock.Now)

	tr.RecordSuccess()
	tr.RecordSuccess()
	tr.RecordError()
	tr.RecordDenied()

	if got := tr.RequestCount(time.Minute); got != 4 {
		t.Errorf("RequestCount() = %d, want 4", got)
	}
	if got := tr.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount() = %d, want 1", got)
	}
	errs, total := tr.ErrorRate(time.Minute)
	if errs != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errs, total)
	}
}

func TestTracker_WindowExcludesOldOutcomes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr := NewTracker(clock.Now)

	tr.RecordError()
	clock.Advance(2 * time.Minute)
	tr.RecordSuccess()

	errs, total := tr.ErrorRate(time.Minute)
	if errs != 0 || total != 1 {
		t.Errorf("ErrorRate(1m) = (%d, %d), want (0, 1)", errs, total)
	}
	if got := tr.RequestCount(5 * time.Minute); got != 2 {
		t.Errorf("RequestCount(5m) = %d, want 2", got)
	}
}

func TestTracker_PrunesPastMaxAge(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr := NewTracker(clock.Now)

	tr.RecordSuccess()
	clock.Advance(maxAge + time.Second)
	tr.RecordSuccess()

	tr.mu.Lock()
	n := len(tr.successes)
	tr.mu.Unlock()
	if n != 1 {
		t.Errorf("retained successes = %d, want 1", n)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(time.Now)
	tr.RecordError()
	tr.Reset()
	if got := tr.RequestCount(time.Hour); got != 0 {
		t.Errorf("RequestCount() after Reset = %d, want 0", got)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(time.Now)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordSuccess()
			tr.RecordError()
			_ = tr.RequestCount(time.Minute)
		}()
	}
	wg.Wait()
	if got := tr.RequestCount(time.Minute); got != 100 {
		t.Errorf("RequestCount() = %d, want 100", got)
	}
}

func TestDefaultTracker(t *testing.T) {
	Reset()
	defer Reset()
	RecordSuccess()
	RecordDenied()
	if got := RequestCount(time.Minute); got != 2 {
		t.Errorf("RequestCount() = %d, want 2", got)
	}
	if got := DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount() = %d, want 1", got)
	}
}
