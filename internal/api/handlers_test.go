package api

import (
	"testing"
	"time"

	"confluence-screener/internal/alert"
	"confluence-screener/internal/confluence"
	"confluence-screener/internal/market"
	"confluence-screener/internal/mtf"
	"confluence-screener/internal/regime"
	"confluence-screener/internal/signal"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func alertableSignal(symbol string) signal.TradableSignal {
	return signal.TradableSignal{
		Symbol: symbol,
		Confluence: confluence.Result{
			Score:      70,
			Label:      confluence.LabelBuy,
			Confidence: 60,
			RiskTier:   confluence.TierMedium,
		},
		Regime:     regime.Neutral("test"),
		Modulation: mtf.ModulationOutcome{AdjustedScore: 70, Reason: "neutral bias on one side, no tilt"},
		Side:       market.SideBuy,
	}
}

// a signal blocked by the rate limiter must stay eligible for dedup
// once limiter capacity frees up
func TestGateAndNotify_LimiterBlockDoesNotMarkDedup(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	limiter := alert.NewRateLimiter(alert.RateLimiterConfig{
		PerSymbolCooldown: 30 * time.Minute,
		MaxPerMinute:      1,
		MaxPerHour:        10,
	})
	limiter.SetClock(clock.now)
	deduper := alert.NewDeduper(time.Hour)
	deduper.SetClock(clock.now)

	srv := &Server{
		gate:    alert.NewGate(alert.DefaultGateConfig()),
		limiter: limiter,
		deduper: deduper,
	}

	if resp := srv.gateAndNotify(alertableSignal("BTCUSDT")); !resp.Alerted {
		t.Fatalf("Expected the first alert through, got: %s", resp.Decision.Reason)
	}

	// same minute, distinct symbol: blocked by the global ceiling
	if resp := srv.gateAndNotify(alertableSignal("ETHUSDT")); resp.Alerted {
		t.Fatal("Expected the per-minute ceiling to block the second alert")
	}

	clock.advance(2 * time.Minute)
	if resp := srv.gateAndNotify(alertableSignal("ETHUSDT")); !resp.Alerted {
		t.Errorf("Expected the retried alert through after the ceiling cleared, got: %s", resp.Decision.Reason)
	}
}

func TestGateAndNotify_DedupSuppressesRepeat(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	limiter := alert.NewRateLimiter(alert.RateLimiterConfig{MaxPerMinute: 10, MaxPerHour: 100})
	limiter.SetClock(clock.now)
	deduper := alert.NewDeduper(time.Hour)
	deduper.SetClock(clock.now)

	srv := &Server{
		gate:    alert.NewGate(alert.DefaultGateConfig()),
		limiter: limiter,
		deduper: deduper,
	}

	sig := alertableSignal("BTCUSDT")

	first := srv.gateAndNotify(sig)
	if !first.Alerted {
		t.Fatalf("Expected the first alert through, got: %s", first.Decision.Reason)
	}

	// zero cooldown leaves only the deduper to catch the repeat
	if resp := srv.gateAndNotify(sig); resp.Alerted {
		t.Error("Expected the same score bucket to be suppressed by dedup")
	}
}

func TestGateAndNotify_HoldNeverAlerts(t *testing.T) {
	srv := &Server{
		gate:    alert.NewGate(alert.DefaultGateConfig()),
		limiter: alert.NewRateLimiter(alert.DefaultRateLimiterConfig()),
		deduper: alert.NewDeduper(time.Hour),
	}

	sig := alertableSignal("BTCUSDT")
	sig.Confluence.Label = confluence.LabelHold

	resp := srv.gateAndNotify(sig)
	if resp.Alerted || resp.Decision.ShouldAlert {
		t.Error("Expected a HOLD label to never alert")
	}
}
