package github

import (
	"context"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/time/rate"
)

const (
	// defaultRate spreads the authenticated hourly quota of 5000 calls.
	defaultRate = 1.2

	// quotaReserve is the remaining quota below which calls wait for the
	// reset.
	quotaReserve = 100
)

// Quota is the call quota GitHub last reported.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// throttle paces calls with a token bucket and holds them back once the
// reported quota runs low.
type throttle struct {
	bucket *rate.Limiter

	mu    sync.Mutex
	quota Quota
}

func newThrottle(perSecond float64) *throttle {
	if perSecond <= 0 {
		perSecond = defaultRate
	}
	return &throttle{
		bucket: rate.NewLimiter(rate.Limit(perSecond), 1),
		quota:  Quota{Limit: 5000, Remaining: 5000},
	}
}

func (t *throttle) wait(ctx context.Context) error {
	if err := t.bucket.Wait(ctx); err != nil {
		return err
	}

	q := t.current()
	if q.Remaining >= quotaReserve || !time.Now().Before(q.Reset) {
		return nil
	}
	timer := time.NewTimer(time.Until(q.Reset))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// observe records the quota of a response. Responses without rate headers
// are ignored.
func (t *throttle) observe(resp *gh.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quota = Quota{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Reset:     resp.Rate.Reset.Time,
	}
}

func (t *throttle) current() Quota {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quota
}
