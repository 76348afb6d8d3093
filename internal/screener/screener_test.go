package screener

import (
	"context"
	"errors"
	"testing"
	"time"

	"confluence-screener/internal/confluence"
	"confluence-screener/internal/market"
	"confluence-screener/internal/risk"
	"confluence-screener/internal/signal"
	"confluence-screener/internal/structure"
)

type failingProvider struct{}

func (failingProvider) GetCandles(_ context.Context, _ string, _ market.Timeframe, _ int) ([]market.Candle, error) {
	return nil, errors.New("exchange unreachable")
}

func (failingProvider) GetDerivatives(_ context.Context, _ string) (market.DerivativesSnapshot, error) {
	return market.DerivativesSnapshot{}, errors.New("exchange unreachable")
}

func newTestEngine(provider market.Provider, cache Cache) *Engine {
	return NewEngine(provider, risk.DefaultConfig(), risk.DefaultExchangeParams(), cache)
}

func TestEvaluateWindow_EmptyInputsDegradeToNeutral(t *testing.T) {
	eval := EvaluateWindow(nil, nil, nil, nil, structure.NewAnalyzer(), confluence.NewScorer())

	if eval.Confluence.Score != 50 {
		t.Errorf("Expected neutral score 50, got %f", eval.Confluence.Score)
	}
	if eval.Confluence.Label != confluence.LabelHold {
		t.Errorf("Expected HOLD, got %s", eval.Confluence.Label)
	}
	if eval.Modulation.AdjustedScore != 50 {
		t.Errorf("Expected unmodified adjusted score, got %f", eval.Modulation.AdjustedScore)
	}
}

func TestEvaluateWindow_SyntheticDataBounded(t *testing.T) {
	provider := market.NewSyntheticProvider()
	ctx := context.Background()

	ltf, _ := provider.GetCandles(ctx, "BTCUSDT", market.TF1h, 200)
	h4, _ := provider.GetCandles(ctx, "BTCUSDT", market.TF4h, 120)
	h1, _ := provider.GetCandles(ctx, "BTCUSDT", market.TF1h, 120)
	derivs, _ := provider.GetDerivatives(ctx, "BTCUSDT")

	eval := EvaluateWindow(ltf, h4, h1, &derivs, structure.NewAnalyzer(), confluence.NewScorer())

	if eval.Confluence.Score < 0 || eval.Confluence.Score > 100 {
		t.Errorf("Score out of range: %f", eval.Confluence.Score)
	}
	if eval.Confluence.Confidence < 0 || eval.Confluence.Confidence > 100 {
		t.Errorf("Confidence out of range: %f", eval.Confluence.Confidence)
	}
	if eval.HTF.CombinedStrength < 0 || eval.HTF.CombinedStrength > 10 {
		t.Errorf("Combined strength out of range: %d", eval.HTF.CombinedStrength)
	}
}

func TestScreenOne_ProviderFailureReturnsNeutralHold(t *testing.T) {
	engine := newTestEngine(failingProvider{}, nil)

	sig := engine.ScreenOne(context.Background(), "BTCUSDT", market.TF1h, 100)

	if sig.Symbol != "BTCUSDT" {
		t.Errorf("Expected symbol preserved, got %q", sig.Symbol)
	}
	if sig.Confluence.Label != confluence.LabelHold {
		t.Errorf("Expected HOLD on data failure, got %s", sig.Confluence.Label)
	}
	if sig.Side != market.SideNone {
		t.Errorf("Expected non-tradable side, got %s", sig.Side)
	}
	if sig.ID == "" {
		t.Error("Expected a signal ID even on degraded paths")
	}
}

func TestScreenOne_CacheHitReturnsSameRecord(t *testing.T) {
	engine := newTestEngine(market.NewSyntheticProvider(), NewMemoryCache(time.Minute))

	first := engine.ScreenOne(context.Background(), "ETHUSDT", market.TF1h, 200)
	second := engine.ScreenOne(context.Background(), "ETHUSDT", market.TF1h, 200)

	if first.ID != second.ID {
		t.Errorf("Expected cached record on second call, got IDs %s and %s", first.ID, second.ID)
	}
}

func TestScreenOne_DistinctLimitsMissCache(t *testing.T) {
	engine := newTestEngine(market.NewSyntheticProvider(), NewMemoryCache(time.Minute))

	a := engine.ScreenOne(context.Background(), "ETHUSDT", market.TF1h, 200)
	b := engine.ScreenOne(context.Background(), "ETHUSDT", market.TF1h, 150)

	if a.ID == b.ID {
		t.Error("Different window sizes must not share a cache entry")
	}
}

func TestScreenBatch_OneRecordPerSymbolInOrder(t *testing.T) {
	engine := newTestEngine(market.NewSyntheticProvider(), nil)
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

	results := engine.ScreenBatch(context.Background(), symbols, market.TF1h, 200)

	if len(results) != len(symbols) {
		t.Fatalf("Expected %d results, got %d", len(symbols), len(results))
	}
	for i, sig := range results {
		if sig.Symbol != symbols[i] {
			t.Errorf("Result %d: expected %s, got %s", i, symbols[i], sig.Symbol)
		}
		if sig.Confluence.Score < 0 || sig.Confluence.Score > 100 {
			t.Errorf("Result %d: score out of range: %f", i, sig.Confluence.Score)
		}
	}
}

func TestScreenBatch_FailureIsolatedPerSymbol(t *testing.T) {
	engine := newTestEngine(failingProvider{}, nil)

	results := engine.ScreenBatch(context.Background(), []string{"AAAUSDT", "BBBUSDT"}, market.TF1h, 100)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, sig := range results {
		if sig.Confluence.Label != confluence.LabelHold {
			t.Errorf("Expected HOLD for failed symbol %s, got %s", sig.Symbol, sig.Confluence.Label)
		}
	}
}

func TestMemoryCache_TTLAndCleanup(t *testing.T) {
	cache := NewMemoryCache(10 * time.Millisecond)
	sig := signal.TradableSignal{ID: "abc", Symbol: "BTCUSDT"}

	cache.Set("k", sig)
	if got, ok := cache.Get("k"); !ok || got.ID != "abc" {
		t.Fatal("Expected fresh entry to be returned")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get("k"); ok {
		t.Error("Expected expired entry to miss")
	}

	cache.CleanupExpired()
	cache.mu.RLock()
	remaining := len(cache.entries)
	cache.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("Expected cleanup to drop expired entries, got %d left", remaining)
	}
}
