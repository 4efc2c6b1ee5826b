// Package oracle supplies the asset-B-per-asset-A exchange rate used to
// value collateral. Rates arrive from an external feed; the ledger only ever
// reads the latest one and refuses to price anything off a stale value.
package oracle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrStaleRate is returned when no rate update has arrived within the
// adapter's freshness window.
var ErrStaleRate = errors.New("oracle: rate is stale")

// Source yields the current exchange rate, fixed-point at
// math.RateConfig.Scale.
type Source interface {
	CurrentRate() (int64, error)
}

// FeedAdapter caches the most recent rate pushed by a feed subscriber and
// serves it until maxAge elapses without an update.
type FeedAdapter struct {
	mu        sync.RWMutex
	rate      int64
	updatedAt time.Time
	maxAge    time.Duration
	nowFn     func() time.Time
	log       zerolog.Logger
}

func NewFeedAdapter(maxAge time.Duration, log zerolog.Logger) *FeedAdapter {
	return &FeedAdapter{
		maxAge: maxAge,
		nowFn:  time.Now,
		log:    log.With().Str("component", "oracle").Logger(),
	}
}

// Update records a fresh rate. Non-positive rates are dropped, not cached.
func (a *FeedAdapter) Update(rate int64) error {
	if rate <= 0 {
		return fmt.Errorf("oracle: rejected rate %d", rate)
	}
	a.mu.Lock()
	a.rate = rate
	a.updatedAt = a.nowFn()
	a.mu.Unlock()

	a.log.Debug().Int64("rate", rate).Msg("rate updated")
	return nil
}

// CurrentRate returns the cached rate, or ErrStaleRate when none has been
// seen within maxAge.
func (a *FeedAdapter) CurrentRate() (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.rate == 0 {
		return 0, fmt.Errorf("%w: no rate received yet", ErrStaleRate)
	}
	if age := a.nowFn().Sub(a.updatedAt); age > a.maxAge {
		return 0, fmt.Errorf("%w: last update %s ago", ErrStaleRate, age.Truncate(time.Second))
	}
	return a.rate, nil
}

// FixedSource serves a constant rate. Test use.
type FixedSource struct {
	Rate int64
	Err  error
}

func (s *FixedSource) CurrentRate() (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Rate, nil
}
