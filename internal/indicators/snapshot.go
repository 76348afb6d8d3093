// Package indicators adapts the go-talib indicator library into the
// single snapshot consumed by the scoring pipeline. Formula arithmetic
// lives in the library; this package only extracts latest values.
package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"confluence-screener/internal/market"
)

// MinBars is the minimum candle history required for a full snapshot.
// Below this the slow EMA and ADX have no settled values.
const MinBars = 60

// Snapshot holds the latest value of each indicator the pipeline reads
type Snapshot struct {
	Close float64 `json:"close"`

	RSI      float64     `json:"rsi"`
	EMAFast  float64     `json:"ema_fast"`
	EMASlow  float64     `json:"ema_slow"`
	EMATrend market.Bias `json:"ema_trend"`

	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`

	ATR    float64 `json:"atr"`
	ATRPct float64 `json:"atr_pct"` // ATR as percent of close
	ADX    float64 `json:"adx"`

	BollUpper    float64 `json:"boll_upper"`
	BollMiddle   float64 `json:"boll_middle"`
	BollLower    float64 `json:"boll_lower"`
	BollWidthPct float64 `json:"boll_width_pct"` // band width as percent of middle

	StochK float64 `json:"stoch_k"`
	StochD float64 `json:"stoch_d"`
	CCI    float64 `json:"cci"`
	SAR    float64 `json:"sar"`
}

// Config holds indicator periods. Zero values fall back to defaults.
type Config struct {
	EMAFastPeriod int
	EMASlowPeriod int
	RSIPeriod     int
	ATRPeriod     int
	ADXPeriod     int
	BollPeriod    int
}

func (c Config) withDefaults() Config {
	if c.EMAFastPeriod <= 0 {
		c.EMAFastPeriod = 20
	}
	if c.EMASlowPeriod <= 0 {
		c.EMASlowPeriod = 50
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.ADXPeriod <= 0 {
		c.ADXPeriod = 14
	}
	if c.BollPeriod <= 0 {
		c.BollPeriod = 20
	}
	return c
}

// Compute builds a snapshot from candle history using default periods
func Compute(candles []market.Candle) (*Snapshot, error) {
	return ComputeWith(candles, Config{})
}

// ComputeWith builds a snapshot using the given periods
func ComputeWith(candles []market.Candle, cfg Config) (*Snapshot, error) {
	if len(candles) < MinBars {
		return nil, fmt.Errorf("insufficient candle history: got %d, need %d", len(candles), MinBars)
	}
	cfg = cfg.withDefaults()

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	snap := &Snapshot{Close: closes[len(closes)-1]}

	snap.RSI = last(talib.Rsi(closes, cfg.RSIPeriod))
	snap.EMAFast = last(talib.Ema(closes, cfg.EMAFastPeriod))
	snap.EMASlow = last(talib.Ema(closes, cfg.EMASlowPeriod))
	snap.EMATrend = emaTrend(snap.EMAFast, snap.EMASlow)

	macd, macdSignal, macdHist := talib.Macd(closes, 12, 26, 9)
	snap.MACD = last(macd)
	snap.MACDSignal = last(macdSignal)
	snap.MACDHist = last(macdHist)

	snap.ATR = last(talib.Atr(highs, lows, closes, cfg.ATRPeriod))
	if snap.Close > 0 {
		snap.ATRPct = snap.ATR / snap.Close * 100
	}
	snap.ADX = last(talib.Adx(highs, lows, closes, cfg.ADXPeriod))

	upper, middle, lower := talib.BBands(closes, cfg.BollPeriod, 2.0, 2.0, talib.SMA)
	snap.BollUpper = last(upper)
	snap.BollMiddle = last(middle)
	snap.BollLower = last(lower)
	if snap.BollMiddle > 0 {
		snap.BollWidthPct = (snap.BollUpper - snap.BollLower) / snap.BollMiddle * 100
	}

	stochK, stochD := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	snap.StochK = last(stochK)
	snap.StochD = last(stochD)
	snap.CCI = last(talib.Cci(highs, lows, closes, 20))
	snap.SAR = last(talib.Sar(highs, lows, 0.02, 0.2))

	return snap, nil
}

// ATR returns the latest ATR value for the candles, 0 when history is
// too short. Used by the risk engine without requiring a full snapshot.
func ATR(candles []market.Candle, period int) float64 {
	if period <= 0 {
		period = 14
	}
	if len(candles) < period+1 {
		return 0
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return last(talib.Atr(highs, lows, closes, period))
}

func emaTrend(fast, slow float64) market.Bias {
	if fast == 0 || slow == 0 {
		return market.BiasNeutral
	}
	diff := (fast - slow) / slow
	switch {
	case diff > 0.0005:
		return market.BiasBullish
	case diff < -0.0005:
		return market.BiasBearish
	default:
		return market.BiasNeutral
	}
}

// last returns the final finite value of a talib output series
func last(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}
