package indicators

import (
	"math"
	"testing"

	"confluence-screener/internal/market"
)

func waveCandles(n int, base, amplitude float64) []market.Candle {
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		close := base + amplitude*math.Sin(float64(i)/6.0) + float64(i)*0.2
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 3600_000,
			CloseTime: int64(i+1)*3600_000 - 1,
			Open:      close - 0.1,
			High:      close + 1,
			Low:       close - 1,
			Close:     close,
			Volume:    100,
		}
	}
	return candles
}

func steadyCandles(n int, price float64) []market.Candle {
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 3600_000,
			CloseTime: int64(i+1)*3600_000 - 1,
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    100,
		}
	}
	return candles
}

func TestCompute_InsufficientHistory(t *testing.T) {
	_, err := Compute(waveCandles(MinBars-1, 100, 5))
	if err == nil {
		t.Fatal("Expected error below the minimum bar count")
	}
}

func TestCompute_AllValuesFinite(t *testing.T) {
	snap, err := Compute(waveCandles(120, 100, 5))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	values := map[string]float64{
		"rsi":         snap.RSI,
		"ema_fast":    snap.EMAFast,
		"ema_slow":    snap.EMASlow,
		"macd_hist":   snap.MACDHist,
		"atr":         snap.ATR,
		"atr_pct":     snap.ATRPct,
		"adx":         snap.ADX,
		"boll_upper":  snap.BollUpper,
		"boll_middle": snap.BollMiddle,
		"boll_lower":  snap.BollLower,
		"stoch_k":     snap.StochK,
		"cci":         snap.CCI,
		"sar":         snap.SAR,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite: %f", name, v)
		}
	}

	if snap.RSI < 0 || snap.RSI > 100 {
		t.Errorf("RSI out of range: %f", snap.RSI)
	}
	if snap.ATR <= 0 {
		t.Errorf("Expected positive ATR, got %f", snap.ATR)
	}
	if snap.BollUpper < snap.BollMiddle || snap.BollMiddle < snap.BollLower {
		t.Errorf("Band ordering broken: %f %f %f", snap.BollUpper, snap.BollMiddle, snap.BollLower)
	}
}

func TestCompute_UptrendEMAOrdering(t *testing.T) {
	candles := make([]market.Candle, 120)
	for i := range candles {
		close := 100 + float64(i)
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 3600_000,
			CloseTime: int64(i+1)*3600_000 - 1,
			Open:      close - 1,
			High:      close + 1,
			Low:       close - 2,
			Close:     close,
			Volume:    100,
		}
	}

	snap, err := Compute(candles)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if snap.EMAFast <= snap.EMASlow {
		t.Errorf("Expected fast EMA above slow in an uptrend, got %f vs %f", snap.EMAFast, snap.EMASlow)
	}
	if snap.EMATrend != market.BiasBullish {
		t.Errorf("Expected bullish EMA trend, got %s", snap.EMATrend)
	}
}

func TestATR_Helper(t *testing.T) {
	atr := ATR(steadyCandles(50, 100), 14)
	if math.Abs(atr-1.0) > 1e-9 {
		t.Errorf("Expected ATR 1.0 on steady candles, got %f", atr)
	}

	if got := ATR(steadyCandles(10, 100), 14); got != 0 {
		t.Errorf("Expected 0 for short history, got %f", got)
	}
}

func TestEmaTrend(t *testing.T) {
	tests := []struct {
		name string
		fast float64
		slow float64
		want market.Bias
	}{
		{"fast above slow", 101, 100, market.BiasBullish},
		{"fast below slow", 99, 100, market.BiasBearish},
		{"near equal", 100.01, 100, market.BiasNeutral},
		{"unset", 0, 100, market.BiasNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := emaTrend(tt.fast, tt.slow); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
