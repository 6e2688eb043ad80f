package prices

import (
	"context"
	"sync"
	"time"

	"github.com/homebatt/homebatt/core/model"
)

// Fetcher retrieves the upcoming price horizon.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.PriceInterval, error)
}

// Store holds the current price horizon. It refreshes from a Fetcher and
// drops elapsed slots so the scheduler only ever sees future intervals.
type Store struct {
	mu      sync.RWMutex
	fetcher Fetcher
	series  []model.PriceInterval
	updated time.Time
}

// NewStore creates a store backed by the given fetcher.
func NewStore(f Fetcher) *Store {
	return &Store{fetcher: f}
}

// Refresh replaces the horizon with freshly fetched prices. On error the
// previous horizon is kept.
func (s *Store) Refresh(ctx context.Context) error {
	series, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.series = series
	s.updated = time.Now()
	s.mu.Unlock()
	return nil
}

// Current returns the horizon with slots that ended before now removed.
func (s *Store) Current(now time.Time) []model.PriceInterval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	remaining := model.PruneElapsed(s.series, now)
	out := make([]model.PriceInterval, len(remaining))
	copy(out, remaining)
	return out
}

// Prune discards slots that ended before now.
func (s *Store) Prune(now time.Time) {
	s.mu.Lock()
	s.series = model.PruneElapsed(s.series, now)
	s.mu.Unlock()
}

// LastUpdated reports when the horizon was last replaced.
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}
