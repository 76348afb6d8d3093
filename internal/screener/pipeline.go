package screener

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"confluence-screener/internal/confluence"
	"confluence-screener/internal/indicators"
	"confluence-screener/internal/market"
	"confluence-screener/internal/mtf"
	"confluence-screener/internal/regime"
	"confluence-screener/internal/structure"
)

// Evaluation is the outcome of one pure pipeline pass over a candle
// window. The backtest simulator calls the same function bar by bar so
// replayed decisions match live ones.
type Evaluation struct {
	Confluence confluence.Result
	Advice     regime.Advice
	HTF        mtf.HTFBias
	Modulation mtf.ModulationOutcome
}

// combined-strength level treated as "strong" for confidence and tier
// adjustments
const strongHTFStrength = 7

// EvaluateWindow runs layer scoring, regime adaptation and HTF fusion
// over explicit candle windows. It is a pure function of its inputs:
// every degradation path produces a neutral substitute and the function
// never returns an error.
func EvaluateWindow(
	ltf, h4, h1 []market.Candle,
	derivs *market.DerivativesSnapshot,
	analyzer *structure.Analyzer,
	scorer *confluence.Scorer,
) Evaluation {
	layers := confluence.LayerSnapshot{Derivatives: derivs}

	if snap, err := indicators.Compute(ltf); err == nil {
		layers.Indicators = snap
	} else {
		log.Debug().Err(err).Msg("indicator layer absent")
	}
	if structural, err := analyzer.Analyze(ltf); err == nil {
		layers.Structural = structural
	} else {
		log.Debug().Err(err).Msg("structural layer absent")
	}

	result, advice := scorer.ScoreRegimeAware(layers, ltf)

	htf, err := mtf.Fuse(h4, h1)
	if err != nil {
		// Fall back to the regime-only result with an explicit neutral
		// HTF record
		result.Summary = append(result.Summary, "htf fusion degraded: "+err.Error())
		return Evaluation{
			Confluence: result,
			Advice:     advice,
			HTF:        htf,
			Modulation: mtf.ModulationOutcome{AdjustedScore: result.Score, Reason: "htf unavailable"},
		}
	}

	ltfBias := market.BiasNeutral
	if layers.Indicators != nil {
		ltfBias = layers.Indicators.EMATrend
	}
	mod := mtf.Modulate(result.Score, ltfBias, htf)

	// Threshold and tilt compose additively on the same scalar: the
	// final label applies the regime's dynamic thresholds to the
	// HTF-modulated score.
	final := result
	final.Score = mod.AdjustedScore
	final.Label = relabel(mod.AdjustedScore, advice)
	final.Confidence, final.RiskTier = adjustForHTF(result.Confidence, result.RiskTier, mod, htf)
	if mod.Tilt > 0 {
		final.Summary = append(final.Summary, mod.Reason)
	}

	return Evaluation{Confluence: final, Advice: advice, HTF: htf, Modulation: mod}
}

func relabel(score float64, advice regime.Advice) confluence.Label {
	switch {
	case score >= advice.BuyThreshold:
		return confluence.LabelBuy
	case score <= advice.SellThreshold:
		return confluence.LabelSell
	default:
		return confluence.LabelHold
	}
}

// adjustForHTF scales confidence and steps the risk tier based on the
// HTF agreement. Tier transitions move one step only.
func adjustForHTF(confidence float64, tier confluence.RiskTier, mod mtf.ModulationOutcome, htf mtf.HTFBias) (float64, confluence.RiskTier) {
	strong := htf.CombinedStrength >= strongHTFStrength
	switch {
	case mod.Agreement && strong:
		confidence = math.Min(100, confidence*1.1)
		if confidence >= 70 {
			tier = tier.DeEscalate()
		}
	case mod.Divergence:
		confidence = confidence * 0.85
		if strong {
			tier = tier.Escalate()
		}
	}
	return confidence, tier
}

// cacheKey memoizes one screening request
func cacheKey(symbol string, tf market.Timeframe, limit int) string {
	return fmt.Sprintf("%s:%s:%d", symbol, tf, limit)
}
