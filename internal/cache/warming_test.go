package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/robfig/cron/v3"

	"github.com/kjstillabower/attire-decider/internal/models"
)

type mockFetcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (m *mockFetcher) Resolve(ctx context.Context, zip string) (models.WeatherReading, error) {
	m.mu.Lock()
	m.calls = append(m.calls, zip)
	m.mu.Unlock()
	if err := m.fail[zip]; err != nil {
		return models.WeatherReading{}, err
	}
	return models.WeatherReading{Zip: zip}, nil
}

func TestWarmer_Warm_Success(t *testing.T) {
	fetcher := &mockFetcher{}
	w := NewWarmer(fetcher, []string{"08544", "98101"}, 0, nil)

	if err := w.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if len(fetcher.calls) != 2 {
		t.Errorf("Resolve calls = %v, want 2", fetcher.calls)
	}
}

func TestWarmer_Warm_NoZips(t *testing.T) {
	if err := NewWarmer(&mockFetcher{}, nil, 0, nil).Warm(context.Background()); err != nil {
		t.Fatalf("Warm() with no zips error = %v", err)
	}
}

func TestWarmer_Warm_JoinsFailures(t *testing.T) {
	down := errors.New("upstream down")
	fetcher := &mockFetcher{fail: map[string]error{"98101": down}}
	w := NewWarmer(fetcher, []string{"08544", "98101"}, 0, nil)

	err := w.Warm(context.Background())
	if !errors.Is(err, down) {
		t.Fatalf("Warm() error = %v, want wrapped upstream error", err)
	}
	if !strings.Contains(err.Error(), "warm 98101") {
		t.Errorf("Warm() error = %q, want zip named", err)
	}
}

func TestWarmer_Schedule(t *testing.T) {
	w := NewWarmer(&mockFetcher{}, []string{"08544"}, 0, nil)
	c := cron.New()

	for _, spec := range []string{"5m", "@every 10m", "*/15 * * * *"} {
		if _, err := w.Schedule(c, spec); err != nil {
			t.Errorf("Schedule(%q) error = %v", spec, err)
		}
	}
	if got := len(c.Entries()); got != 3 {
		t.Errorf("Entries() = %d, want 3", got)
	}
	for _, spec := range []string{"", "not a schedule"} {
		if _, err := w.Schedule(c, spec); err == nil {
			t.Errorf("Schedule(%q) expected error", spec)
		}
	}
}
