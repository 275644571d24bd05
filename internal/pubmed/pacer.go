package pubmed

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDelay is the spacing NCBI asks clients without an API key to keep
// between E-utilities requests.
const DefaultDelay = 300 * time.Millisecond

// Pacer spaces outbound requests at least interval apart. Every request made
// through a Client waits on the same Pacer, so the spacing also holds across
// concurrent searches.
type Pacer struct {
	interval time.Duration
	lim      *rate.Limiter
}

// NewPacer returns a Pacer with a burst of one. A non-positive interval
// disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{interval: interval, lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}

// Interval reports the configured spacing.
func (p *Pacer) Interval() time.Duration { return p.interval }
