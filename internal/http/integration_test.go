//go:build integration
// +build integration

package http

import (
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/attire-decider/internal/attire"
	"github.com/kjstillabower/attire-decider/internal/testhelpers"
	"github.com/kjstillabower/attire-decider/internal/validation"
)

func newLiveHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := testhelpers.GetLiveConfig(t)
	res := testhelpers.NewLiveResolver(t, cfg)
	return NewHandler(res, validation.DefaultThresholds, attire.Options{WindLayersMph: 15}, &HealthConfig{}, zap.NewNop())
}

func TestIntegration_LiveRecommendation(t *testing.T) {
	router := newTestRouter(newLiveHandler(t))

	for _, zip := range []string{"08544", "98101"} {
		w := get(t, router, "/?format=text&zip="+zip)
		body := w.Body.String()
		if !strings.HasPrefix(body, "Consider wearing: ") {
			t.Errorf("zip %s: body = %q", zip, body)
		}
		if !strings.Contains(body, "Temperature: ") {
			t.Errorf("zip %s: missing temperature line: %q", zip, body)
		}
	}
}

func TestIntegration_RemoteGeocoderZip(t *testing.T) {
	router := newTestRouter(newLiveHandler(t))

	// Missoula is not in the built-in table.
	w := get(t, router, "/?format=text&zip=59801")
	if !strings.Contains(w.Body.String(), "Missoula") {
		t.Errorf("body = %q, want Missoula", w.Body.String())
	}
}

func TestIntegration_ConcurrentLookups(t *testing.T) {
	router := newTestRouter(newLiveHandler(t))

	var wg sync.WaitGroup
	bodies := make([]string, 8)
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bodies[i] = get(t, router, "/?format=text&zip=10001").Body.String()
		}(i)
	}
	wg.Wait()
	for i, b := range bodies[1:] {
		if b != bodies[0] {
			t.Errorf("response %d differs from first:\n%s\nvs\n%s", i+1, b, bodies[0])
		}
	}
}
