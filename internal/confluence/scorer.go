package confluence

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"confluence-screener/internal/indicators"
	"confluence-screener/internal/market"
	"confluence-screener/internal/regime"
	"confluence-screener/internal/structure"
)

// Scorer turns layer snapshots into a composite confluence score
type Scorer struct {
	weights       Weights
	buyThreshold  float64
	sellThreshold float64
}

// NewScorer creates a scorer with the default weights and static
// thresholds
func NewScorer() *Scorer {
	return &Scorer{
		weights:       DefaultWeights(),
		buyThreshold:  regime.DefaultBuyThreshold,
		sellThreshold: regime.DefaultSellThreshold,
	}
}

// SetWeights overrides the layer weights. Weights must be positive.
func (s *Scorer) SetWeights(w Weights) error {
	if w.Structural <= 0 || w.Indicators <= 0 || w.Derivatives <= 0 {
		return fmt.Errorf("layer weights must be positive, got %+v", w)
	}
	s.weights = w
	return nil
}

// Score aggregates the layers with the static thresholds. This is the
// fallback path when regime detection is unavailable.
func (s *Scorer) Score(layers LayerSnapshot) Result {
	return s.scoreWith(layers, s.weights, s.buyThreshold, s.sellThreshold, 1.0)
}

// ScoreRegimeAware classifies the regime from the candle window, scales
// the layer weights by the regime multipliers, nudges the score by the
// regime delta and assigns the label with the regime's dynamic
// thresholds. Classification failure falls back to the plain aggregate
// with a neutral sentinel advice; this method never returns an error.
func (s *Scorer) ScoreRegimeAware(layers LayerSnapshot, candles []market.Candle) (Result, regime.Advice) {
	var advice regime.Advice
	if layers.Indicators != nil {
		advice = regime.ClassifyFromSnapshot(layers.Indicators)
	} else {
		var err error
		advice, err = regime.Classify(candles)
		if err != nil {
			log.Debug().Err(err).Msg("regime classification degraded, using static thresholds")
			result := s.Score(layers)
			result.Summary = append(result.Summary, "regime unavailable: "+advice.Reason)
			return result, advice
		}
	}

	effective := Weights{
		Structural:  s.weights.Structural * advice.Multipliers.Structural,
		Indicators:  s.weights.Indicators * advice.Multipliers.Indicators,
		Derivatives: s.weights.Derivatives * advice.Multipliers.Derivatives,
	}

	result := s.scoreWith(layers, effective, advice.BuyThreshold, advice.SellThreshold, advice.ConfidenceScale)

	// Regime nudge, applied before re-thresholding
	structuralBias := market.BiasNeutral
	if layers.Structural != nil {
		structuralBias = layers.Structural.Bias
	}
	indicatorTrend := market.BiasNeutral
	if layers.Indicators != nil {
		indicatorTrend = layers.Indicators.EMATrend
	}
	if delta := regime.Nudge(advice.Regime, structuralBias, indicatorTrend, result.Score); delta != 0 {
		result.Score = clamp(result.Score+delta, 0, 100)
		result.Label = labelFor(result.Score, advice.BuyThreshold, advice.SellThreshold)
		result.Summary = append(result.Summary, fmt.Sprintf("%s regime nudge %+.0f", advice.Regime, delta))
	}

	if advice.Regime == regime.Volatile {
		result.RiskTier = result.RiskTier.Escalate()
		result.Summary = append(result.Summary, "risk tier escalated in volatile regime")
	}
	result.Summary = append(result.Summary, fmt.Sprintf("regime %s: %s", advice.Regime, advice.Reason))

	return result, advice
}

func (s *Scorer) scoreWith(layers LayerSnapshot, w Weights, buyThreshold, sellThreshold, confidenceScale float64) Result {
	result := Result{Layers: layers}

	var raw, maxPossible float64

	if layers.Structural != nil {
		sub := scoreStructural(layers.Structural)
		raw += sub * w.Structural
		maxPossible += maxStructural * w.Structural
		result.Summary = append(result.Summary, fmt.Sprintf("structural %+.1f (%s)", sub, layers.Structural.Bias))
	}
	if layers.Indicators != nil {
		sub := scoreIndicators(layers.Indicators)
		raw += sub * w.Indicators
		maxPossible += maxIndicators * w.Indicators
		result.Summary = append(result.Summary, fmt.Sprintf("indicators %+.1f", sub))
	}
	if layers.Derivatives != nil {
		sub := scoreDerivatives(layers.Derivatives)
		raw += sub * w.Derivatives
		maxPossible += maxDerivatives * w.Derivatives
		result.Summary = append(result.Summary, fmt.Sprintf("derivatives %+.1f", sub))
	}

	result.RawScore = raw
	if maxPossible > 0 {
		result.Score = clamp((raw+maxPossible)/(2*maxPossible)*100, 0, 100)
	} else {
		result.Score = 50 // no layers present
	}

	result.Label = labelFor(result.Score, buyThreshold, sellThreshold)
	result.Confidence = clamp(math.Min(100, math.Abs(result.Score-50)*2)*confidenceScale, 0, 100)
	result.RiskTier = tierFor(result.Confidence)
	return result
}

func labelFor(score, buyThreshold, sellThreshold float64) Label {
	switch {
	case score >= buyThreshold:
		return LabelBuy
	case score <= sellThreshold:
		return LabelSell
	default:
		return LabelHold
	}
}

func tierFor(confidence float64) RiskTier {
	switch {
	case confidence >= 65:
		return TierLow
	case confidence >= 40:
		return TierMedium
	default:
		return TierHigh
	}
}

// scoreStructural maps the structural read into [-30, 30]: bias sign
// times a strength multiplier, discounted by the analyzer's confidence.
func scoreStructural(a *structure.Analysis) float64 {
	score := a.Bias.Sign() * a.Strength * 3.0 * a.Confidence
	return clamp(score, -maxStructural, maxStructural)
}

// scoreIndicators sums independent indicator contributions, each clamped
// before summing, into [-20, 20].
func scoreIndicators(snap *indicators.Snapshot) float64 {
	var score float64

	// Trend direction from the EMA pair
	score += clamp(6*snap.EMATrend.Sign(), -6, 6)

	// RSI zone: oversold argues for upside, overbought for downside
	switch {
	case snap.RSI <= 30:
		score += 4
	case snap.RSI >= 70:
		score -= 4
	case snap.RSI > 55:
		score += 2
	case snap.RSI < 45:
		score -= 2
	}

	// MACD histogram only counts when its sign agrees with the trend
	if snap.EMATrend != market.BiasNeutral {
		histBias := market.BiasNeutral
		if snap.MACDHist > 0 {
			histBias = market.BiasBullish
		} else if snap.MACDHist < 0 {
			histBias = market.BiasBearish
		}
		if histBias == snap.EMATrend {
			score += clamp(5*histBias.Sign(), -5, 5)
		}
	}

	// ADX band scales trend conviction
	if snap.EMATrend != market.BiasNeutral {
		switch {
		case snap.ADX >= 25:
			score += clamp(3*snap.EMATrend.Sign(), -3, 3)
		case snap.ADX >= 20:
			score += clamp(1*snap.EMATrend.Sign(), -1, 1)
		}
	}

	// Elevated ATR pulls the score back toward neutral
	if snap.ATRPct > 3 {
		penalty := clamp(snap.ATRPct-3, 0, 4)
		if score > 0 {
			score -= penalty
		} else if score < 0 {
			score += penalty
		}
	}

	return clamp(score, -maxIndicators, maxIndicators)
}

// scoreDerivatives maps the derivatives snapshot into [-15, 15]
func scoreDerivatives(d *market.DerivativesSnapshot) float64 {
	var score float64

	// Rising open interest confirms the move in progress
	score += clamp(d.OpenInterestChangePct*0.6, -6, 6)

	// Funding is read contrarian: crowded longs paying heavy funding is
	// a bearish sign and vice versa
	score += clamp(-d.FundingRate*40000, -5, 5)

	// Futures premium over index signals directional demand
	score += clamp(d.PremiumPct*4, -4, 4)

	return clamp(score, -maxDerivatives, maxDerivatives)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
