// Package oracle provides price quotes for the pairs the quote engine
// needs, with a short-TTL cache in front of whatever upstream source is
// configured. A cache stampede on expiry is an acceptable tradeoff for the
// simplicity it buys.
package oracle

import (
	"context"
	"time"
)

// Price is a single rate observation with its confidence interval.
type Price struct {
	Rate        float64
	ConfidencePct float64
	PublishTime time.Time
}

// Stale reports whether this price is older than the given staleness bound.
func (p Price) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.PublishTime) > maxAge
}

// Source is the pluggable upstream oracle. Concrete sources are external
// collaborators; this package only defines the contract and the cache in
// front of it.
type Source interface {
	GetPrice(ctx context.Context, base, quote string) (Price, error)
}

// Oracle wraps a Source with caching.
type Oracle interface {
	GetPrice(ctx context.Context, base, quote string) (Price, error)
}
