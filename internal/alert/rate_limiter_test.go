package alert

import (
	"fmt"
	"testing"
	"time"

	"confluence-screener/internal/signal"
)

// fakeClock advances manually so cooldown windows are exact
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiter_CooldownMonotonicity(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(RateLimiterConfig{
		PerSymbolCooldown: 30 * time.Minute,
		MaxPerMinute:      100,
		MaxPerHour:        1000,
	})
	rl.SetClock(clock.now)

	if !rl.ShouldAllow("BTCUSDT", signal.PriorityMedium) {
		t.Fatal("Fresh limiter should allow")
	}
	rl.Record("BTCUSDT")

	// Inside the window: blocked at T, T+1m, T+29m59s
	for _, d := range []time.Duration{0, time.Minute, 30*time.Minute - time.Second} {
		clock.t = newFakeClock().t.Add(d)
		if rl.ShouldAllow("BTCUSDT", signal.PriorityMedium) {
			t.Errorf("Expected block at T+%v inside cooldown", d)
		}
	}

	// Just past the window: allowed again
	clock.t = newFakeClock().t.Add(30*time.Minute + time.Second)
	if !rl.ShouldAllow("BTCUSDT", signal.PriorityMedium) {
		t.Error("Expected allow just past the cooldown window")
	}
}

func TestRateLimiter_CooldownIsPerSymbol(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(RateLimiterConfig{PerSymbolCooldown: 30 * time.Minute, MaxPerMinute: 100, MaxPerHour: 1000})
	rl.SetClock(clock.now)

	rl.Record("BTCUSDT")
	if rl.ShouldAllow("BTCUSDT", signal.PriorityMedium) {
		t.Error("Recorded symbol should be in cooldown")
	}
	if !rl.ShouldAllow("ETHUSDT", signal.PriorityMedium) {
		t.Error("Other symbols should be unaffected")
	}
}

func TestRateLimiter_HighPriorityBypassesCooldownOnly(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(RateLimiterConfig{
		PerSymbolCooldown: 30 * time.Minute,
		MaxPerMinute:      3,
		MaxPerHour:        1000,
	})
	rl.SetClock(clock.now)

	rl.Record("BTCUSDT")

	// Cooldown bypass
	if !rl.ShouldAllow("BTCUSDT", signal.PriorityHigh) {
		t.Error("High priority should bypass the per-symbol cooldown")
	}

	// Fill the per-minute ceiling
	rl.Record("A")
	rl.Record("B")
	if rl.ShouldAllow("NEWSYM", signal.PriorityHigh) {
		t.Error("High priority must not bypass the per-minute ceiling")
	}
}

func TestRateLimiter_HourlyCeiling(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(RateLimiterConfig{
		PerSymbolCooldown: time.Minute,
		MaxPerMinute:      100,
		MaxPerHour:        5,
	})
	rl.SetClock(clock.now)

	for i := 0; i < 5; i++ {
		rl.Record(fmt.Sprintf("SYM%d", i))
		clock.advance(2 * time.Minute)
	}

	if rl.ShouldAllow("FRESH", signal.PriorityHigh) {
		t.Error("Hourly ceiling reached, even high priority must be blocked")
	}

	// An hour past the first alert the window rolls and frees capacity
	clock.advance(time.Hour)
	if !rl.ShouldAllow("FRESH", signal.PriorityHigh) {
		t.Error("Expected allow after the hourly window rolled")
	}
}

func TestRateLimiter_CleanupBoundsState(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.SetClock(clock.now)

	rl.Record("OLD")
	clock.advance(25 * time.Hour)
	rl.Record("FRESH")

	rl.Cleanup()

	stats := rl.GetStats()
	if stats.TrackedSymbols != 1 {
		t.Errorf("Expected 1 tracked symbol after cleanup, got %d", stats.TrackedSymbols)
	}
	if stats.AlertsLastHour != 1 {
		t.Errorf("Expected 1 alert in rolling history, got %d", stats.AlertsLastHour)
	}
}

func TestRateLimiter_StatsCountSuppressed(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(RateLimiterConfig{PerSymbolCooldown: 30 * time.Minute, MaxPerMinute: 100, MaxPerHour: 1000})
	rl.SetClock(clock.now)

	rl.Record("BTCUSDT")
	rl.ShouldAllow("BTCUSDT", signal.PriorityMedium)
	rl.ShouldAllow("BTCUSDT", signal.PriorityMedium)

	stats := rl.GetStats()
	if stats.Suppressed != 2 {
		t.Errorf("Expected 2 suppressed, got %d", stats.Suppressed)
	}
	if stats.AlertsLastMinute != 1 {
		t.Errorf("Expected 1 alert last minute, got %d", stats.AlertsLastMinute)
	}
}
