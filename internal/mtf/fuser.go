// Package mtf derives directional bias on higher timeframes and fuses
// it into the confluence score being produced on the lower timeframe.
package mtf

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"confluence-screener/internal/market"
)

// swingLookback is how many bars back the swing comparison reaches
const swingLookback = 30

// minBars is the history each timeframe needs for a bias read
const minBars = swingLookback + 20

// TimeframeBias is the directional read for a single timeframe
type TimeframeBias struct {
	Timeframe market.Timeframe `json:"timeframe"`
	Bias      market.Bias      `json:"bias"`
	Strength  int              `json:"strength"` // 0 to 10
	EMATrend  market.Bias      `json:"ema_trend"`
}

// HTFBias is the fused higher-timeframe read
type HTFBias struct {
	H4               TimeframeBias `json:"h4"`
	H1               TimeframeBias `json:"h1"`
	Combined         market.Bias   `json:"combined"`
	CombinedStrength int           `json:"combined_strength"`
	Notes            []string      `json:"notes,omitempty"`
}

// ModulationOutcome records how the HTF read tilted the score
type ModulationOutcome struct {
	AdjustedScore float64 `json:"adjusted_score"`
	Tilt          float64 `json:"tilt"`
	Agreement     bool    `json:"agreement"`
	Divergence    bool    `json:"divergence"`
	Reason        string  `json:"reason"`
}

// Neutral returns the HTF record used when fusion degrades
func Neutral(reason string) HTFBias {
	return HTFBias{
		H4:    TimeframeBias{Timeframe: market.TF4h},
		H1:    TimeframeBias{Timeframe: market.TF1h},
		Notes: []string{reason},
	}
}

// Fuse derives bias independently on the two higher timeframes and
// combines them with timeframe-weighted priority.
func Fuse(h4Candles, h1Candles []market.Candle) (HTFBias, error) {
	h4, err := biasFor(market.TF4h, h4Candles)
	if err != nil {
		return Neutral(err.Error()), fmt.Errorf("h4 bias: %w", err)
	}
	h1, err := biasFor(market.TF1h, h1Candles)
	if err != nil {
		return Neutral(err.Error()), fmt.Errorf("h1 bias: %w", err)
	}

	out := HTFBias{H4: h4, H1: h1}

	// Combination rule: agreement wins, otherwise the higher timeframe,
	// otherwise fall back to H1.
	switch {
	case h4.Bias != market.BiasNeutral && h4.Bias == h1.Bias:
		out.Combined = h4.Bias
		out.Notes = append(out.Notes, "H4 and H1 agree on "+h4.Bias.String())
	case h4.Bias != market.BiasNeutral:
		out.Combined = h4.Bias
		out.Notes = append(out.Notes, "H4 "+h4.Bias.String()+" overrides neutral/divergent H1")
	default:
		out.Combined = h1.Bias
		if h1.Bias != market.BiasNeutral {
			out.Notes = append(out.Notes, "H1 "+h1.Bias.String()+" with neutral H4")
		}
	}

	out.CombinedStrength = int(math.Round(float64(h4.Strength)*0.6 + float64(h1.Strength)*0.4))
	if out.CombinedStrength < 1 && (h4.Bias != market.BiasNeutral || h1.Bias != market.BiasNeutral) {
		out.CombinedStrength = 1
	}
	return out, nil
}

// Modulate tilts the score by the HTF read. Agreement between the
// lower-timeframe bias and the combined HTF bias adds the tilt;
// divergence between two non-neutral biases subtracts it; a neutral
// read on either side leaves the score untouched so incomplete data
// never manufactures a divergence penalty.
func Modulate(score float64, ltfBias market.Bias, htf HTFBias) ModulationOutcome {
	tilt := math.Round(float64(htf.CombinedStrength) / 2)
	if tilt < 2 {
		tilt = 2
	}
	if tilt > 6 {
		tilt = 6
	}

	out := ModulationOutcome{AdjustedScore: score, Tilt: 0}

	switch {
	case ltfBias != market.BiasNeutral && ltfBias == htf.Combined:
		out.Agreement = true
		out.Tilt = tilt
		if ltfBias == market.BiasBullish {
			out.AdjustedScore = math.Min(100, score+tilt)
		} else {
			out.AdjustedScore = math.Max(0, score-tilt)
		}
		out.Reason = fmt.Sprintf("HTF %s agrees with LTF, tilt %.0f", htf.Combined, tilt)
	case ltfBias != market.BiasNeutral && htf.Combined != market.BiasNeutral:
		out.Divergence = true
		out.Tilt = tilt
		if ltfBias == market.BiasBullish {
			out.AdjustedScore = math.Max(0, score-tilt)
		} else {
			out.AdjustedScore = math.Min(100, score+tilt)
		}
		out.Reason = fmt.Sprintf("HTF %s diverges from LTF %s, tilt %.0f", htf.Combined, ltfBias, tilt)
	default:
		out.Reason = "neutral bias on one side, no tilt"
	}
	return out
}

// biasFor reads a single timeframe: the EMA pair gives trend direction,
// the close N bars back gives swing direction. The bias is non-neutral
// only when both agree in sign.
func biasFor(tf market.Timeframe, candles []market.Candle) (TimeframeBias, error) {
	out := TimeframeBias{Timeframe: tf}
	if len(candles) < minBars {
		return out, fmt.Errorf("%s: insufficient history: got %d, need %d", tf, len(candles), minBars)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	emaFast := lastFinite(talib.Ema(closes, 20))
	emaSlow := lastFinite(talib.Ema(closes, 50))
	switch {
	case emaFast > emaSlow:
		out.EMATrend = market.BiasBullish
	case emaFast < emaSlow:
		out.EMATrend = market.BiasBearish
	}

	last := closes[len(closes)-1]
	back := closes[len(closes)-1-swingLookback]
	var swing market.Bias
	if last > back {
		swing = market.BiasBullish
	} else if last < back {
		swing = market.BiasBearish
	}

	if out.EMATrend != market.BiasNeutral && out.EMATrend == swing {
		out.Bias = swing
	}

	// Strength blends momentum magnitude with an EMA-agreement bonus
	momentumPct := 0.0
	if back > 0 {
		momentumPct = math.Abs(last-back) / back * 100
	}
	strength := math.Min(8, momentumPct*0.8)
	if out.Bias != market.BiasNeutral {
		strength += 2
	}
	out.Strength = int(math.Round(math.Min(10, strength)))

	return out, nil
}

func lastFinite(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v != 0 {
			return v
		}
	}
	return 0
}
