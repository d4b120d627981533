package providers

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultSpacing is the minimum gap between two requests to one source.
const DefaultSpacing = 100 * time.Millisecond

// Pacer enforces a minimum spacing between requests to one source. A single
// Pacer is shared by every adapter instance talking to the same target.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer returns a pacer allowing one request per spacing. spacing <= 0 disables pacing.
func NewPacer(spacing time.Duration) *Pacer {
	if spacing <= 0 {
		return &Pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(spacing), 1)}
}

// Acquire blocks until the spacing is satisfied or ctx is done.
func (p *Pacer) Acquire(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.lim.Wait(ctx)
}
