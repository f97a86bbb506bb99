// Package ratelimit implements the blanket request pacing policy: every
// outbound registry request is preceded by a fixed delay.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request pacing.
var (
	pacingWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "registry_pacing_wait_seconds",
		Help:    "Time spent waiting for the request pacer",
		Buckets: []float64{0.01, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	pacedRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registry_paced_requests_total",
		Help: "Total number of requests that passed the pacer",
	})
)

// Pacer holds every request back by a fixed delay. It is not a per-endpoint
// budget: listing, profile and registration calls all share one Pacer.
type Pacer struct {
	delay  time.Duration
	logger zerolog.Logger
}

// NewPacer creates a pacer with the given inter-request delay.
// A delay <= 0 disables pacing.
func NewPacer(delay time.Duration, logger zerolog.Logger) *Pacer {
	return &Pacer{
		delay:  delay,
		logger: logger.With().Str("component", "pacer").Logger(),
	}
}

// Wait sleeps for the full delay before the caller's request, however long
// the previous request took. It returns early with an error when ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}

	start := time.Now()

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return fmt.Errorf("pacer wait: %w", ctx.Err())
		case <-timer.C:
		}
	}

	waited := time.Since(start)
	pacingWaitSeconds.Observe(waited.Seconds())
	pacedRequestsTotal.Inc()

	p.logger.Debug().
		Dur("waited", waited).
		Dur("delay", p.delay).
		Msg("Request paced")

	return nil
}

// Delay returns the configured inter-request delay.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}
