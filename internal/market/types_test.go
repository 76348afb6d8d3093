package market

import (
	"context"
	"testing"
)

func seq(n int) []Candle {
	candles := make([]Candle, n)
	for i := 0; i < n; i++ {
		base := float64(100 + i)
		candles[i] = Candle{
			OpenTime:  int64(i) * 3600_000,
			CloseTime: int64(i+1)*3600_000 - 1,
			Open:      base,
			High:      base + 2,
			Low:       base - 2,
			Close:     base + 1,
			Volume:    10,
		}
	}
	return candles
}

func TestAggregate_MergesChunks(t *testing.T) {
	candles := seq(8)
	out := Aggregate(candles, 4)

	if len(out) != 2 {
		t.Fatalf("Expected 2 aggregated bars, got %d", len(out))
	}

	first := out[0]
	if first.Open != candles[0].Open {
		t.Errorf("Expected open from first candle, got %f", first.Open)
	}
	if first.Close != candles[3].Close {
		t.Errorf("Expected close from last candle in chunk, got %f", first.Close)
	}
	if first.High != candles[3].High {
		t.Errorf("Expected chunk max high %f, got %f", candles[3].High, first.High)
	}
	if first.Low != candles[0].Low {
		t.Errorf("Expected chunk min low %f, got %f", candles[0].Low, first.Low)
	}
	if first.Volume != 40 {
		t.Errorf("Expected summed volume 40, got %f", first.Volume)
	}
}

func TestAggregate_PartialTailKept(t *testing.T) {
	candles := seq(10)
	out := Aggregate(candles, 4)

	if len(out) != 3 {
		t.Fatalf("Expected 3 bars (2 full + partial), got %d", len(out))
	}
	tail := out[2]
	if tail.Close != candles[9].Close {
		t.Errorf("Partial tail must carry the latest close, got %f", tail.Close)
	}
}

func TestAggregate_FactorOneIsIdentity(t *testing.T) {
	candles := seq(5)
	out := Aggregate(candles, 1)
	if len(out) != 5 {
		t.Errorf("Factor 1 should return the input unchanged, got %d bars", len(out))
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(seq(10)); err != nil {
		t.Errorf("Well-formed series should validate, got %v", err)
	}

	bad := seq(10)
	bad[3].High = bad[3].Low - 1
	if err := Validate(bad); err == nil {
		t.Error("Expected error for high below low")
	}

	unordered := seq(10)
	unordered[5].OpenTime = 0
	if err := Validate(unordered); err == nil {
		t.Error("Expected error for out of order candles")
	}
}

func TestTimeframeDuration(t *testing.T) {
	if TF4h.Duration() != 4*TF1h.Duration() {
		t.Error("4h must be four 1h intervals")
	}
	if TF1d.Duration() != 24*TF1h.Duration() {
		t.Error("1d must be twenty-four 1h intervals")
	}
}

func TestSyntheticProvider_Deterministic(t *testing.T) {
	p := NewSyntheticProvider()
	ctx := context.Background()

	a, err := p.GetCandles(ctx, "BTCUSDT", TF1h, 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, err := p.GetCandles(ctx, "BTCUSDT", TF1h, 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(a) != 100 || len(b) != 100 {
		t.Fatalf("Expected 100 candles, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Candle %d differs between identical requests", i)
		}
	}
	if err := Validate(a); err != nil {
		t.Errorf("Synthetic series should validate, got %v", err)
	}
}

func TestSyntheticProvider_SymbolsDiffer(t *testing.T) {
	p := NewSyntheticProvider()
	ctx := context.Background()

	a, _ := p.GetCandles(ctx, "BTCUSDT", TF1h, 50)
	b, _ := p.GetCandles(ctx, "ETHUSDT", TF1h, 50)

	same := true
	for i := range a {
		if a[i].Close != b[i].Close {
			same = false
			break
		}
	}
	if same {
		t.Error("Different symbols should produce different series")
	}
}
