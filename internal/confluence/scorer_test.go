package confluence

import (
	"math"
	"testing"

	"confluence-screener/internal/indicators"
	"confluence-screener/internal/market"
	"confluence-screener/internal/structure"
)

func TestScore_NoLayersIsNeutralHold(t *testing.T) {
	s := NewScorer()
	result := s.Score(LayerSnapshot{})

	if result.Score != 50 {
		t.Errorf("Expected neutral score 50 with no layers, got %f", result.Score)
	}
	if result.Label != LabelHold {
		t.Errorf("Expected HOLD with no layers, got %s", result.Label)
	}
}

func TestScore_StrongStructuralBullish(t *testing.T) {
	s := NewScorer()
	result := s.Score(LayerSnapshot{
		Structural: &structure.Analysis{Bias: market.BiasBullish, Strength: 10, Confidence: 1.0},
	})

	if result.Score != 100 {
		t.Errorf("Expected score 100 for maxed structural layer, got %f", result.Score)
	}
	if result.Label != LabelBuy {
		t.Errorf("Expected BUY, got %s", result.Label)
	}
	if result.RiskTier != TierLow {
		t.Errorf("Expected low risk tier at full confidence, got %s", result.RiskTier)
	}
}

func TestScore_StrongStructuralBearish(t *testing.T) {
	s := NewScorer()
	result := s.Score(LayerSnapshot{
		Structural: &structure.Analysis{Bias: market.BiasBearish, Strength: 10, Confidence: 1.0},
	})

	if result.Score != 0 {
		t.Errorf("Expected score 0 for maxed bearish structural layer, got %f", result.Score)
	}
	if result.Label != LabelSell {
		t.Errorf("Expected SELL, got %s", result.Label)
	}
}

func TestScore_MissingLayersDoNotPenalize(t *testing.T) {
	s := NewScorer()

	// Identical structural read with and without a neutral derivatives
	// snapshot: the layer-present run must not score lower just because
	// another layer exists at zero.
	structuralOnly := s.Score(LayerSnapshot{
		Structural: &structure.Analysis{Bias: market.BiasBullish, Strength: 5, Confidence: 0.8},
	})
	if structuralOnly.Score <= 50 {
		t.Errorf("Expected bullish structural-only score above 50, got %f", structuralOnly.Score)
	}
}

func TestScore_BoundedOutput(t *testing.T) {
	s := NewScorer()

	extremes := []LayerSnapshot{
		{Structural: &structure.Analysis{Bias: market.BiasBullish, Strength: 100, Confidence: 5}},
		{Structural: &structure.Analysis{Bias: market.BiasBearish, Strength: 100, Confidence: 5}},
		{Derivatives: &market.DerivativesSnapshot{OpenInterestChangePct: 1000, FundingRate: -1, PremiumPct: 50}},
		{Derivatives: &market.DerivativesSnapshot{OpenInterestChangePct: -1000, FundingRate: 1, PremiumPct: -50}},
		{Indicators: &indicators.Snapshot{EMATrend: market.BiasBullish, RSI: 10, MACDHist: 99, ADX: 99}},
	}

	for i, layers := range extremes {
		result := s.Score(layers)
		if result.Score < 0 || result.Score > 100 {
			t.Errorf("Case %d: score %f out of [0, 100]", i, result.Score)
		}
		if result.Confidence < 0 || result.Confidence > 100 {
			t.Errorf("Case %d: confidence %f out of [0, 100]", i, result.Confidence)
		}
		switch result.RiskTier {
		case TierLow, TierMedium, TierHigh:
		default:
			t.Errorf("Case %d: unexpected risk tier %q", i, result.RiskTier)
		}
	}
}

func TestScore_IndicatorContributions(t *testing.T) {
	s := NewScorer()

	// EMA trend +6, RSI 60 zone +2, MACD hist agreeing +5, ADX 30 band
	// +3: sub-score 16 of 20 possible.
	result := s.Score(LayerSnapshot{
		Indicators: &indicators.Snapshot{
			EMATrend: market.BiasBullish,
			RSI:      60,
			MACDHist: 1.2,
			ADX:      30,
			ATRPct:   2,
		},
	})

	// raw 16*0.6 against max 20*0.6 normalizes to 90
	if math.Abs(result.Score-90) > 1e-9 {
		t.Errorf("Expected score 90, got %f", result.Score)
	}
	if result.Label != LabelBuy {
		t.Errorf("Expected BUY, got %s", result.Label)
	}
}

func TestScore_MACDDisagreementNotCounted(t *testing.T) {
	s := NewScorer()

	with := s.Score(LayerSnapshot{
		Indicators: &indicators.Snapshot{EMATrend: market.BiasBullish, RSI: 50, MACDHist: 1.0},
	})
	without := s.Score(LayerSnapshot{
		Indicators: &indicators.Snapshot{EMATrend: market.BiasBullish, RSI: 50, MACDHist: -1.0},
	})

	if with.Score <= without.Score {
		t.Errorf("Agreeing MACD histogram should score higher: %f vs %f", with.Score, without.Score)
	}
}

func TestScore_ATRPenaltyPullsTowardNeutral(t *testing.T) {
	s := NewScorer()

	calm := s.Score(LayerSnapshot{
		Indicators: &indicators.Snapshot{EMATrend: market.BiasBullish, RSI: 60, ADX: 30, ATRPct: 1},
	})
	hot := s.Score(LayerSnapshot{
		Indicators: &indicators.Snapshot{EMATrend: market.BiasBullish, RSI: 60, ADX: 30, ATRPct: 6},
	})

	if hot.Score >= calm.Score {
		t.Errorf("Elevated ATR should pull the score toward neutral: calm %f, hot %f", calm.Score, hot.Score)
	}
}

func TestScore_DerivativesContrarianFunding(t *testing.T) {
	s := NewScorer()

	// Heavy positive funding (crowded longs) reads bearish
	crowdedLongs := s.Score(LayerSnapshot{
		Derivatives: &market.DerivativesSnapshot{FundingRate: 0.0002},
	})
	crowdedShorts := s.Score(LayerSnapshot{
		Derivatives: &market.DerivativesSnapshot{FundingRate: -0.0002},
	})

	if crowdedLongs.Score >= 50 {
		t.Errorf("Positive funding should score below neutral, got %f", crowdedLongs.Score)
	}
	if crowdedShorts.Score <= 50 {
		t.Errorf("Negative funding should score above neutral, got %f", crowdedShorts.Score)
	}
}

func TestSetWeights_RejectsNonPositive(t *testing.T) {
	s := NewScorer()

	if err := s.SetWeights(Weights{Structural: 0, Indicators: 1, Derivatives: 1}); err == nil {
		t.Error("Expected error for zero structural weight")
	}
	if err := s.SetWeights(Weights{Structural: 1, Indicators: -1, Derivatives: 1}); err == nil {
		t.Error("Expected error for negative indicators weight")
	}
	if err := s.SetWeights(Weights{Structural: 2, Indicators: 1, Derivatives: 0.5}); err != nil {
		t.Errorf("Unexpected error for valid weights: %v", err)
	}
}

func TestScoreRegimeAware_VolatileEscalatesTier(t *testing.T) {
	s := NewScorer()

	result, advice := s.ScoreRegimeAware(LayerSnapshot{
		Structural: &structure.Analysis{Bias: market.BiasBullish, Strength: 10, Confidence: 1.0},
		Indicators: &indicators.Snapshot{EMATrend: market.BiasBullish, RSI: 60, ADX: 30, ATRPct: 5},
	}, nil)

	if advice.Regime.String() != "volatile" {
		t.Fatalf("Expected volatile regime at ATR 5%%, got %s", advice.Regime)
	}
	if advice.BuyThreshold != 72 || advice.SellThreshold != 28 {
		t.Errorf("Expected volatile thresholds 72/28, got %f/%f", advice.BuyThreshold, advice.SellThreshold)
	}
	// Full-confidence structural read would be low tier; volatile
	// escalates it one step.
	if result.RiskTier == TierLow {
		t.Error("Expected risk tier escalated above low in volatile regime")
	}
}

func TestScoreRegimeAware_ThresholdConsistency(t *testing.T) {
	s := NewScorer()

	snapshots := []LayerSnapshot{
		{Structural: &structure.Analysis{Bias: market.BiasBullish, Strength: 10, Confidence: 1.0},
			Indicators: &indicators.Snapshot{EMATrend: market.BiasBullish, RSI: 60, ADX: 30, ATRPct: 2}},
		{Structural: &structure.Analysis{Bias: market.BiasBearish, Strength: 10, Confidence: 1.0},
			Indicators: &indicators.Snapshot{EMATrend: market.BiasBearish, RSI: 40, ADX: 30, ATRPct: 2}},
		{Indicators: &indicators.Snapshot{EMATrend: market.BiasNeutral, RSI: 50, ADX: 15, ATRPct: 2}},
	}

	for i, layers := range snapshots {
		result, advice := s.ScoreRegimeAware(layers, nil)
		switch result.Label {
		case LabelBuy:
			if result.Score < advice.BuyThreshold {
				t.Errorf("Case %d: BUY below buy threshold: %f < %f", i, result.Score, advice.BuyThreshold)
			}
		case LabelSell:
			if result.Score > advice.SellThreshold {
				t.Errorf("Case %d: SELL above sell threshold: %f > %f", i, result.Score, advice.SellThreshold)
			}
		case LabelHold:
			if result.Score >= advice.BuyThreshold || result.Score <= advice.SellThreshold {
				t.Errorf("Case %d: HOLD with score %f outside hold band (%f, %f)", i, result.Score, advice.SellThreshold, advice.BuyThreshold)
			}
		}
	}
}

func TestRiskTier_EscalateDeEscalate(t *testing.T) {
	if TierLow.Escalate() != TierMedium {
		t.Errorf("Expected low to escalate to medium, got %s", TierLow.Escalate())
	}
	if TierHigh.Escalate() != TierHigh {
		t.Errorf("Expected high to stay high on escalation, got %s", TierHigh.Escalate())
	}
	if TierHigh.DeEscalate() != TierMedium {
		t.Errorf("Expected high to de-escalate to medium, got %s", TierHigh.DeEscalate())
	}
	if TierLow.DeEscalate() != TierLow {
		t.Errorf("Expected low to stay low on de-escalation, got %s", TierLow.DeEscalate())
	}
}
