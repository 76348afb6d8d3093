package alert

import (
	"sync"
	"time"

	"confluence-screener/internal/signal"
)

// RateLimiterConfig bounds how often alerts may fire
type RateLimiterConfig struct {
	PerSymbolCooldown time.Duration `json:"per_symbol_cooldown"`
	MaxPerMinute      int           `json:"max_per_minute"`
	MaxPerHour        int           `json:"max_per_hour"`
}

// DefaultRateLimiterConfig returns sensible alerting limits
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		PerSymbolCooldown: 30 * time.Minute,
		MaxPerMinute:      5,
		MaxPerHour:        30,
	}
}

// RateLimiter is the process-lifetime alert throttle: a per-symbol
// cooldown map plus a rolling global alert history. It is owned by the
// serving layer and injected where needed, never a package global, so
// tests can build isolated instances.
type RateLimiter struct {
	mu         sync.Mutex
	cfg        RateLimiterConfig
	lastAlert  map[string]time.Time
	history    []time.Time
	suppressed int64
	now        func() time.Time
}

// NewRateLimiter creates a limiter with the given config
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.MaxPerMinute <= 0 {
		cfg.MaxPerMinute = DefaultRateLimiterConfig().MaxPerMinute
	}
	if cfg.MaxPerHour <= 0 {
		cfg.MaxPerHour = DefaultRateLimiterConfig().MaxPerHour
	}
	return &RateLimiter{
		cfg:       cfg,
		lastAlert: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetClock replaces the time source, for tests
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	rl.now = now
	rl.mu.Unlock()
}

// ShouldAllow reports whether an alert for the symbol may fire now.
// High priority bypasses the per-symbol cooldown but never the global
// per-minute or per-hour ceilings.
func (rl *RateLimiter) ShouldAllow(symbol string, priority signal.Priority) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	// Global ceilings apply to every priority
	if rl.countSince(now.Add(-time.Minute)) >= rl.cfg.MaxPerMinute {
		rl.suppressed++
		return false
	}
	if rl.countSince(now.Add(-time.Hour)) >= rl.cfg.MaxPerHour {
		rl.suppressed++
		return false
	}

	if priority != signal.PriorityHigh && rl.cfg.PerSymbolCooldown > 0 {
		if last, ok := rl.lastAlert[symbol]; ok && now.Sub(last) < rl.cfg.PerSymbolCooldown {
			rl.suppressed++
			return false
		}
	}
	return true
}

// Record timestamps an alert for the symbol and appends it to the
// rolling global history
func (rl *RateLimiter) Record(symbol string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.lastAlert[symbol] = now
	rl.history = append(rl.history, now)
}

// Cleanup drops rolling history older than one hour and symbol
// timestamps older than 24 hours to bound memory. Call it periodically
// from the owner.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	cutoff := now.Add(-time.Hour)
	kept := rl.history[:0]
	for _, t := range rl.history {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.history = kept

	symbolCutoff := now.Add(-24 * time.Hour)
	for sym, t := range rl.lastAlert {
		if t.Before(symbolCutoff) {
			delete(rl.lastAlert, sym)
		}
	}
}

// Stats reports current limiter occupancy
type Stats struct {
	AlertsLastMinute int   `json:"alerts_last_minute"`
	AlertsLastHour   int   `json:"alerts_last_hour"`
	TrackedSymbols   int   `json:"tracked_symbols"`
	Suppressed       int64 `json:"suppressed"`
}

// GetStats returns a snapshot of the limiter state
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	return Stats{
		AlertsLastMinute: rl.countSince(now.Add(-time.Minute)),
		AlertsLastHour:   rl.countSince(now.Add(-time.Hour)),
		TrackedSymbols:   len(rl.lastAlert),
		Suppressed:       rl.suppressed,
	}
}

// countSince assumes the caller holds the lock
func (rl *RateLimiter) countSince(cutoff time.Time) int {
	count := 0
	for _, t := range rl.history {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}
