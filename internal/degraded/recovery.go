// Package degraded runs upstream recovery probes while the service reports degraded health.
package degraded

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/attire-decider/internal/observability"
)

// DefaultAttemptTimeout bounds a single probe call.
const DefaultAttemptTimeout = 10 * time.Second

// ProbeFunc makes one live upstream call. Returns nil when the upstream answers.
type ProbeFunc func(ctx context.Context) error

// Options configures a Recovery.
type Options struct {
	// Initial is the first delay; later delays follow the Fibonacci sequence up to Max.
	Initial time.Duration
	Max     time.Duration
	// AttemptTimeout bounds each probe. Zero means DefaultAttemptTimeout.
	AttemptTimeout time.Duration
	Probe          ProbeFunc
	// OnRecovered runs after the first successful probe.
	OnRecovered func()
	// OnExhausted runs when every attempt failed.
	OnExhausted func()
	Logger      *zap.Logger
}

// Recovery serializes recovery runs: at most one is in progress at a time.
type Recovery struct {
	opts    Options
	notify  chan struct{}
	running atomic.Bool
}

// New returns a Recovery. Start must be called before Notify has any effect.
func New(opts Options) *Recovery {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OnRecovered == nil {
		opts.OnRecovered = func() {}
	}
	if opts.OnExhausted == nil {
		opts.OnExhausted = func() {}
	}
	return &Recovery{opts: opts, notify: make(chan struct{}, 1)}
}

// Notify signals that the service is degraded. Non-blocking; safe from handlers.
func (r *Recovery) Notify() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Start listens for notifications until ctx is done.
func (r *Recovery) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.notify:
				if r.running.Swap(true) {
					continue
				}
				go func() {
					defer r.running.Store(false)
					r.Run(ctx)
				}()
			}
		}
	}()
}

// Running reports whether a recovery run is in progress.
func (r *Recovery) Running() bool {
	return r.running.Load()
}

// Run probes after each backoff delay and reports whether the upstream recovered.
func (r *Recovery) Run(ctx context.Context) bool {
	delays := fibDelays(r.opts.Initial, r.opts.Max)
	if len(delays) == 0 || r.opts.Probe == nil {
		return false
	}
	for i, d := range delays {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
		err := r.opts.Probe(attemptCtx)
		cancel()
		if err == nil {
			observability.RecoveryProbesTotal.WithLabelValues("success").Inc()
			r.opts.Logger.Info("upstream recovered", zap.Int("attempt", i+1))
			r.opts.OnRecovered()
			return true
		}
		observability.RecoveryProbesTotal.WithLabelValues("failure").Inc()
		r.opts.Logger.Warn("recovery probe failed",
			zap.Int("attempt", i+1),
			zap.Int("attempts", len(delays)),
			zap.Error(err))
	}
	r.opts.Logger.Error("upstream recovery exhausted", zap.Int("attempts", len(delays)))
	r.opts.OnExhausted()
	return false
}

// fibDelays returns initial scaled by 1, 2, 3, 5, 8 ... while the delay stays within max.
func fibDelays(initial, max time.Duration) []time.Duration {
	if initial <= 0 || max < initial {
		return nil
	}
	var out []time.Duration
	for a, b := time.Duration(1), time.Duration(2); a*initial <= max; a, b = b, a+b {
		out = append(out, a*initial)
	}
	return out
}
