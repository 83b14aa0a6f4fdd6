package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterRegistry holds one token bucket per tenant so a single tenant's
// burst cannot starve the others.
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
}

func newLimiterRegistry(perSec float64, burst int) *limiterRegistry {
	return &limiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(perSec),
		burst:    burst,
	}
}

func (r *limiterRegistry) get(tenantID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.limiters[tenantID]
	if !ok {
		lim = rate.NewLimiter(r.perSec, r.burst)
		r.limiters[tenantID] = lim
	}
	return lim
}
