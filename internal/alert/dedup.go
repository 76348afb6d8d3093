package alert

import (
	"fmt"
	"math"
	"sync"
	"time"

	"confluence-screener/internal/confluence"
)

// Deduper suppresses re-alerts caused by score jitter. The key buckets
// the score to the nearest 5 points so a signal oscillating around the
// same level maps to the same entry. It is independent of the rate
// limiter.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewDeduper creates a deduper with the given suppression window
func NewDeduper(ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Deduper{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetClock replaces the time source, for tests
func (d *Deduper) SetClock(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
}

// Key builds the coarse dedup key for a decision
func Key(symbol string, label confluence.Label, score float64) string {
	bucket := int(math.Round(score/5)) * 5
	return fmt.Sprintf("%s:%s:%d", symbol, label, bucket)
}

// Seen reports whether the key fired inside the TTL window and marks it
// as seen when it had not. Expired entries are pruned on the way.
func (d *Deduper) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return true
	}
	for k, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, k)
		}
	}
	d.seen[key] = now
	return false
}
