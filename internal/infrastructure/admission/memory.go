package admission

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

// Quota grants Points units per Window for each key.
type Quota struct {
	Points int
	Window time.Duration
}

func (q Quota) normalize() Quota {
	if q.Points <= 0 {
		q.Points = 100
	}
	if q.Window <= 0 {
		q.Window = time.Second
	}
	return q
}

// idleSweepInterval is how often buckets that have refilled are dropped.
const idleSweepInterval = time.Minute

// MemoryGate is an in-process token bucket per key. A bucket that has
// refilled completely is indistinguishable from a new one and is evicted.
type MemoryGate struct {
	quota Quota
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	lastSweep time.Time
}

func NewMemoryGate(quota Quota) *MemoryGate {
	return &MemoryGate{
		quota:    quota.normalize(),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (g *MemoryGate) Admit(_ context.Context, key string, cost int) error {
	if cost <= 0 {
		cost = 1
	}
	now := g.now()
	limiter := g.limiter(key, now)

	reservation := limiter.ReserveN(now, cost)
	if !reservation.OK() {
		return &domain.AdmissionError{Key: key, RetryAfter: retryAfterSeconds(g.quota.Window)}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &domain.AdmissionError{Key: key, RetryAfter: retryAfterSeconds(delay)}
	}
	return nil
}

func (g *MemoryGate) limiter(key string, now time.Time) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastSweep.IsZero() {
		g.lastSweep = now
	} else if now.Sub(g.lastSweep) >= idleSweepInterval {
		g.sweepLocked(now)
	}

	limiter, ok := g.limiters[key]
	if !ok {
		every := rate.Limit(float64(g.quota.Points) / g.quota.Window.Seconds())
		limiter = rate.NewLimiter(every, g.quota.Points)
		g.limiters[key] = limiter
	}
	return limiter
}

func (g *MemoryGate) sweepLocked(now time.Time) {
	burst := float64(g.quota.Points)
	for key, limiter := range g.limiters {
		if limiter.TokensAt(now) >= burst {
			delete(g.limiters, key)
		}
	}
	g.lastSweep = now
}

// Size reports the number of tracked keys.
func (g *MemoryGate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
