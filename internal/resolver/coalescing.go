package resolver

import (
	"context"
	"sync"

	"github.com/kjstillabower/attire-decider/internal/models"
)

// call is one upstream fetch that several resolves for the same zip may wait on.
type call struct {
	done   chan struct{}
	result models.WeatherReading
	err    error
}

// requestCoalescer runs at most one fetch per key at a time.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*call
}

func newRequestCoalescer() *requestCoalescer {
	return &requestCoalescer{inFlight: make(map[string]*call)}
}

// Do runs fn for key unless a fetch for key is already running, in which case it waits for
// that one. shared reports whether the result came from another caller's fetch. fn runs in
// its own goroutine so a caller that gives up (ctx done) does not cancel it for the others.
func (rc *requestCoalescer) Do(ctx context.Context, key string, fn func() (models.WeatherReading, error)) (reading models.WeatherReading, shared bool, err error) {
	rc.mu.Lock()
	c, exists := rc.inFlight[key]
	if !exists {
		c = &call{done: make(chan struct{})}
		rc.inFlight[key] = c
		go rc.run(key, c, fn)
	}
	rc.mu.Unlock()

	select {
	case <-c.done:
		return c.result, exists, c.err
	case <-ctx.Done():
		return models.WeatherReading{}, exists, ctx.Err()
	}
}

func (rc *requestCoalescer) run(key string, c *call, fn func() (models.WeatherReading, error)) {
	c.result, c.err = fn()

	rc.mu.Lock()
	delete(rc.inFlight, key)
	rc.mu.Unlock()
	close(c.done)
}

// inFlightCount reports how many keys have a fetch running.
func (rc *requestCoalescer) inFlightCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.inFlight)
}
