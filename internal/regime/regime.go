// Package regime classifies current market behavior and supplies the
// regime-specific thresholds and layer weight multipliers the scoring
// pipeline adapts itself with.
package regime

import (
	"encoding/json"
	"fmt"

	"confluence-screener/internal/indicators"
	"confluence-screener/internal/market"
)

// Regime is a coarse classification of market behavior
type Regime int

const (
	Unknown Regime = iota // sentinel used when classification degrades
	Trending
	Ranging
	Volatile
	Quiet
)

func (r Regime) String() string {
	switch r {
	case Trending:
		return "trending"
	case Ranging:
		return "ranging"
	case Volatile:
		return "volatile"
	case Quiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the regime name so serialized advice stays
// readable
func (r Regime) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the regime name, mapping unknown names to the
// Unknown sentinel
func (r *Regime) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*r = Parse(name)
	return nil
}

// Parse maps a regime name to its tag; unrecognized names map to the
// Unknown sentinel.
func Parse(name string) Regime {
	switch name {
	case "trending":
		return Trending
	case "ranging":
		return Ranging
	case "volatile":
		return Volatile
	case "quiet":
		return Quiet
	default:
		return Unknown
	}
}

// Multipliers scale the confluence layer weights per regime
type Multipliers struct {
	Structural  float64 `json:"structural"`
	Indicators  float64 `json:"indicators"`
	Derivatives float64 `json:"derivatives"`
}

// Advice carries the regime tag plus the parameters the pipeline should
// trade with while the regime holds. Instances are value copies of the
// immutable templates below and are never mutated.
type Advice struct {
	Regime          Regime      `json:"regime"`
	Reason          string      `json:"reason"`
	BuyThreshold    float64     `json:"buy_threshold"`
	SellThreshold   float64     `json:"sell_threshold"`
	Multipliers     Multipliers `json:"multipliers"`
	ConfidenceScale float64     `json:"confidence_scale"`
	ExpiryScale     float64     `json:"expiry_scale"`
}

// Static fallback thresholds, also used by the Unknown sentinel
const (
	DefaultBuyThreshold  = 65.0
	DefaultSellThreshold = 35.0
)

// params maps each regime to its parameter record. Trending regimes
// trust structure more; volatile regimes lean on derivatives and
// discount confidence; quiet regimes distrust momentum signals.
var params = map[Regime]Advice{
	Trending: {
		Regime:          Trending,
		BuyThreshold:    62,
		SellThreshold:   38,
		Multipliers:     Multipliers{Structural: 1.3, Indicators: 1.1, Derivatives: 0.9},
		ConfidenceScale: 1.1,
		ExpiryScale:     1.0,
	},
	Ranging: {
		Regime:          Ranging,
		BuyThreshold:    DefaultBuyThreshold,
		SellThreshold:   DefaultSellThreshold,
		Multipliers:     Multipliers{Structural: 1.0, Indicators: 1.0, Derivatives: 1.0},
		ConfidenceScale: 1.0,
		ExpiryScale:     1.0,
	},
	Volatile: {
		Regime:          Volatile,
		BuyThreshold:    72,
		SellThreshold:   28,
		Multipliers:     Multipliers{Structural: 0.9, Indicators: 0.8, Derivatives: 1.3},
		ConfidenceScale: 0.8,
		ExpiryScale:     0.5,
	},
	Quiet: {
		Regime:          Quiet,
		BuyThreshold:    68,
		SellThreshold:   32,
		Multipliers:     Multipliers{Structural: 1.0, Indicators: 1.1, Derivatives: 0.8},
		ConfidenceScale: 0.9,
		ExpiryScale:     1.5,
	},
}

// Neutral returns the sentinel advice used when classification fails.
// It carries the static thresholds and identity multipliers.
func Neutral(reason string) Advice {
	return Advice{
		Regime:          Unknown,
		Reason:          reason,
		BuyThreshold:    DefaultBuyThreshold,
		SellThreshold:   DefaultSellThreshold,
		Multipliers:     Multipliers{Structural: 1.0, Indicators: 1.0, Derivatives: 1.0},
		ConfidenceScale: 1.0,
		ExpiryScale:     1.0,
	}
}

// Classification cut-offs. Volatility rules are checked before trend
// rules: an unstable market overrides any trend/range distinction.
const (
	volatileATRPct = 4.0
	quietATRPct    = 1.0
	quietBollWidth = 2.5
	trendingADX    = 25.0
)

// Classify inspects the candle window and returns the advice for the
// detected regime. Priority order is volatile > quiet > trending >
// ranging; the first matching rule wins.
func Classify(candles []market.Candle) (Advice, error) {
	snap, err := indicators.Compute(candles)
	if err != nil {
		return Neutral(err.Error()), fmt.Errorf("regime classification: %w", err)
	}
	return classifyFrom(snap), nil
}

// ClassifyFromSnapshot classifies using an already-computed snapshot,
// avoiding a second indicator pass when the caller has one.
func ClassifyFromSnapshot(snap *indicators.Snapshot) Advice {
	if snap == nil {
		return Neutral("no indicator snapshot")
	}
	return classifyFrom(snap)
}

func classifyFrom(snap *indicators.Snapshot) Advice {
	var (
		regime Regime
		reason string
	)
	switch {
	case snap.ATRPct >= volatileATRPct:
		regime = Volatile
		reason = fmt.Sprintf("ATR %.2f%% of price exceeds %.1f%%", snap.ATRPct, volatileATRPct)
	case snap.ATRPct < quietATRPct && snap.BollWidthPct < quietBollWidth:
		regime = Quiet
		reason = fmt.Sprintf("ATR %.2f%% and band width %.2f%% both compressed", snap.ATRPct, snap.BollWidthPct)
	case snap.ADX >= trendingADX:
		regime = Trending
		reason = fmt.Sprintf("ADX %.1f confirms directional trend", snap.ADX)
	default:
		regime = Ranging
		reason = fmt.Sprintf("ADX %.1f below trend threshold", snap.ADX)
	}
	advice := params[regime]
	advice.Reason = reason
	return advice
}

// Nudge returns the small score delta the regime applies before
// thresholding, conditioned on directional agreement between the
// structural bias and the indicator trend. Deltas stay within +-3.
func Nudge(r Regime, structural, indicatorTrend market.Bias, score float64) float64 {
	aligned := structural != market.BiasNeutral && structural == indicatorTrend
	opposed := structural != market.BiasNeutral &&
		indicatorTrend != market.BiasNeutral && structural != indicatorTrend

	switch r {
	case Trending:
		if aligned {
			return 3 * structural.Sign()
		}
		if opposed {
			return -1 * structural.Sign()
		}
	case Ranging:
		if aligned {
			return 1 * structural.Sign()
		}
	case Volatile:
		if aligned {
			return 1 * structural.Sign()
		}
	case Quiet:
		// Quiet markets pull extreme scores back toward the middle
		if score > 60 {
			return -2
		}
		if score < 40 {
			return 2
		}
	}
	return 0
}
