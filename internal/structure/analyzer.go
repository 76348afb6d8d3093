// Package structure implements the smart-money/structural bias analyzer.
// It reads swing structure (break of structure, higher highs/lows, fair
// value gaps) and emits a directional bias with strength and confidence.
package structure

import (
	"fmt"

	"confluence-screener/internal/market"
)

// Analysis is the structural read for a candle window
type Analysis struct {
	Bias       market.Bias `json:"bias"`
	Strength   float64     `json:"strength"`   // 0 to 10
	Confidence float64     `json:"confidence"` // 0.0 to 1.0
	Notes      []string    `json:"notes,omitempty"`
}

// Analyzer detects structural bias from swing points
type Analyzer struct {
	swingWindow int // bars on each side of a pivot
}

// NewAnalyzer creates an analyzer with the default swing window
func NewAnalyzer() *Analyzer {
	return &Analyzer{swingWindow: 2}
}

// minCandles is the shortest window the analyzer accepts
const minCandles = 30

// Analyze derives structural bias from the candle window
func (a *Analyzer) Analyze(candles []market.Candle) (*Analysis, error) {
	if len(candles) < minCandles {
		return nil, fmt.Errorf("insufficient candle history: got %d, need %d", len(candles), minCandles)
	}

	highs, lows := a.findSwings(candles)

	result := &Analysis{Bias: market.BiasNeutral}

	bullishPoints := 0.0
	bearishPoints := 0.0

	// Break of structure: last close beyond the most recent swing extreme
	lastClose := candles[len(candles)-1].Close
	if len(highs) > 0 && lastClose > highs[len(highs)-1].price {
		bullishPoints += 3
		result.Notes = append(result.Notes, "bullish break of structure")
	}
	if len(lows) > 0 && lastClose < lows[len(lows)-1].price {
		bearishPoints += 3
		result.Notes = append(result.Notes, "bearish break of structure")
	}

	// Swing progression: higher highs + higher lows vs lower highs + lower lows
	if hh := risingPivots(highs); hh > 0 {
		bullishPoints += float64(hh)
	} else {
		bearishPoints += float64(-hh)
	}
	if hl := risingPivots(lows); hl > 0 {
		bullishPoints += float64(hl)
		if hl >= 2 {
			result.Notes = append(result.Notes, "higher lows forming")
		}
	} else {
		bearishPoints += float64(-hl)
		if hl <= -2 {
			result.Notes = append(result.Notes, "lower highs and lows")
		}
	}

	// Fair value gaps left open in the recent window add conviction
	bullGaps, bearGaps := a.countFairValueGaps(candles)
	bullishPoints += float64(bullGaps)
	bearishPoints += float64(bearGaps)
	if bullGaps > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("%d bullish fair value gap(s)", bullGaps))
	}
	if bearGaps > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("%d bearish fair value gap(s)", bearGaps))
	}

	net := bullishPoints - bearishPoints
	total := bullishPoints + bearishPoints

	switch {
	case net >= 1:
		result.Bias = market.BiasBullish
	case net <= -1:
		result.Bias = market.BiasBearish
	}

	strength := net
	if strength < 0 {
		strength = -strength
	}
	if strength > 10 {
		strength = 10
	}
	result.Strength = strength

	// Confidence reflects how one-sided the evidence was
	if total > 0 {
		result.Confidence = strength / total
		if result.Confidence > 1 {
			result.Confidence = 1
		}
	}

	return result, nil
}

type pivot struct {
	index int
	price float64
}

// findSwings locates fractal swing highs and lows
func (a *Analyzer) findSwings(candles []market.Candle) (highs, lows []pivot) {
	w := a.swingWindow
	for i := w; i < len(candles)-w; i++ {
		isHigh := true
		isLow := true
		for j := i - w; j <= i+w; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, pivot{i, candles[i].High})
		}
		if isLow {
			lows = append(lows, pivot{i, candles[i].Low})
		}
	}
	return highs, lows
}

// risingPivots counts the trend of the last few pivots: positive for a
// rising sequence, negative for a falling one, capped at +-3
func risingPivots(pivots []pivot) int {
	if len(pivots) < 2 {
		return 0
	}
	start := len(pivots) - 4
	if start < 0 {
		start = 0
	}
	score := 0
	for i := start + 1; i < len(pivots); i++ {
		if pivots[i].price > pivots[i-1].price {
			score++
		} else if pivots[i].price < pivots[i-1].price {
			score--
		}
	}
	if score > 3 {
		score = 3
	}
	if score < -3 {
		score = -3
	}
	return score
}

// countFairValueGaps counts three-candle gaps still unfilled in the last
// 20 bars. A bullish gap is candle[i+1].Low above candle[i-1].High.
func (a *Analyzer) countFairValueGaps(candles []market.Candle) (bullish, bearish int) {
	start := len(candles) - 20
	if start < 1 {
		start = 1
	}
	lastClose := candles[len(candles)-1].Close
	for i := start; i < len(candles)-1; i++ {
		prev := candles[i-1]
		next := candles[i+1]
		if next.Low > prev.High && lastClose > prev.High {
			bullish++
		}
		if next.High < prev.Low && lastClose < prev.Low {
			bearish++
		}
	}
	if bullish > 2 {
		bullish = 2
	}
	if bearish > 2 {
		bearish = 2
	}
	return bullish, bearish
}
