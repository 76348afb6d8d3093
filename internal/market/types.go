package market

import (
	"fmt"
	"time"
)

// Candle represents a single OHLCV candlestick
type Candle struct {
	OpenTime  int64   `json:"openTime"` // Unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"` // Unix milliseconds
}

// CloseAt returns the candle close time as time.Time
func (c Candle) CloseAt() time.Time {
	return time.Unix(0, c.CloseTime*int64(time.Millisecond))
}

// DerivativesSnapshot holds derivative-market metrics for a symbol.
// All fields are best-effort; a zero snapshot is a valid neutral input.
type DerivativesSnapshot struct {
	OpenInterestChangePct float64 `json:"open_interest_change_pct"` // 24h OI change %
	FundingRate           float64 `json:"funding_rate"`             // current rate, e.g. 0.0001 = 0.01%
	PremiumPct            float64 `json:"premium_pct"`              // futures premium/discount vs index %
}

// Timeframe identifies a candle interval
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Duration returns the interval length for the timeframe
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Bias is a directional read derived from price action
type Bias int

const (
	BiasNeutral Bias = iota
	BiasBullish
	BiasBearish
)

func (b Bias) String() string {
	switch b {
	case BiasBullish:
		return "bullish"
	case BiasBearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// Sign returns +1 for bullish, -1 for bearish, 0 for neutral
func (b Bias) Sign() float64 {
	switch b {
	case BiasBullish:
		return 1
	case BiasBearish:
		return -1
	default:
		return 0
	}
}

// Side is the direction of an order plan
type Side int

const (
	SideNone Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "NONE"
	}
}

// Aggregate merges consecutive candles into coarser ones, factor candles
// per output bar. Trailing candles that do not fill a full bar are
// aggregated into a final partial bar so the most recent price is never
// dropped.
func Aggregate(candles []Candle, factor int) []Candle {
	if factor <= 1 || len(candles) == 0 {
		return candles
	}
	out := make([]Candle, 0, len(candles)/factor+1)
	for start := 0; start < len(candles); start += factor {
		end := start + factor
		if end > len(candles) {
			end = len(candles)
		}
		chunk := candles[start:end]
		agg := Candle{
			OpenTime:  chunk[0].OpenTime,
			Open:      chunk[0].Open,
			High:      chunk[0].High,
			Low:       chunk[0].Low,
			Close:     chunk[len(chunk)-1].Close,
			CloseTime: chunk[len(chunk)-1].CloseTime,
		}
		for _, c := range chunk {
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Volume += c.Volume
		}
		out = append(out, agg)
	}
	return out
}

// Validate checks a candle series for basic sanity
func Validate(candles []Candle) error {
	for i, c := range candles {
		if c.High < c.Low {
			return fmt.Errorf("candle %d: high %.8f below low %.8f", i, c.High, c.Low)
		}
		if i > 0 && c.OpenTime < candles[i-1].OpenTime {
			return fmt.Errorf("candle %d: out of order open time", i)
		}
	}
	return nil
}
