package browser

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter throttles navigation per-host so a crawl against one target
// application doesn't hammer it from every worker at once, while leaving
// unrelated hosts unaffected. Shared across all workers in a pool.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewHostLimiter builds a limiter allowing rps requests per second per host,
// with the given burst allowance.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until target's host may be navigated to, or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, target string) error {
	return h.limiterFor(hostOf(target)).Wait(ctx)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.rps, h.burst)
		h.limiters[host] = l
	}
	return l
}
