// Package throttle suppresses repeated identical advice per symbol inside a
// cooldown window, backed by the shared cache so replicas agree.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/domain/repository"
	"FlowRadar/pkg/cache"
)

const keyPrefix = "flowradar:advice"

// AdviceThrottle implements repository.Throttle on a cache.Service.
type AdviceThrottle struct {
	cache  cache.Service
	window time.Duration
}

// New creates an advice throttle with the given cooldown window.
func New(c cache.Service, window time.Duration) repository.Throttle {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &AdviceThrottle{cache: c, window: window}
}

// Allow reports whether this advice may be published for the symbol. The
// same advice inside the window is denied; a changed advice always passes
// and restarts the window.
func (t *AdviceThrottle) Allow(ctx context.Context, symbol string, advice models.Advice) (bool, error) {
	key := cache.GenerateKey(keyPrefix, symbol)

	var last string
	err := t.cache.Get(ctx, key, &last)
	switch {
	case err == nil:
		if last == string(advice) {
			return false, nil
		}
	case errors.Is(err, cache.ErrCacheMiss):
		// first advice for this symbol in the window
	default:
		return false, fmt.Errorf("throttle get %s: %w", symbol, err)
	}

	if err := t.cache.Set(ctx, key, string(advice), t.window); err != nil {
		return false, fmt.Errorf("throttle set %s: %w", symbol, err)
	}
	return true, nil
}
