package confluence

import (
	"confluence-screener/internal/indicators"
	"confluence-screener/internal/market"
	"confluence-screener/internal/structure"
)

// Label is the graded trading decision
type Label string

const (
	LabelBuy  Label = "BUY"
	LabelSell Label = "SELL"
	LabelHold Label = "HOLD"
)

// RiskTier grades how risky acting on a decision is
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// Escalate moves the tier one step toward high, never skipping a step
func (t RiskTier) Escalate() RiskTier {
	switch t {
	case TierLow:
		return TierMedium
	default:
		return TierHigh
	}
}

// DeEscalate moves the tier one step toward low, never skipping a step
func (t RiskTier) DeEscalate() RiskTier {
	switch t {
	case TierHigh:
		return TierMedium
	default:
		return TierLow
	}
}

// LayerSnapshot bundles the three analytical layers for one scoring
// request. Any layer may be nil; absent layers contribute zero, not a
// penalty.
type LayerSnapshot struct {
	Structural  *structure.Analysis         `json:"structural,omitempty"`
	Indicators  *indicators.Snapshot        `json:"indicators,omitempty"`
	Derivatives *market.DerivativesSnapshot `json:"derivatives,omitempty"`
}

// Result is the composite decision for one instrument. It is created
// once per request and never mutated; downstream stages derive new
// values rather than writing back into it.
type Result struct {
	RawScore   float64       `json:"raw_score"`
	Score      float64       `json:"score"` // normalized 0..100
	Label      Label         `json:"label"`
	Confidence float64       `json:"confidence"` // 0..100
	RiskTier   RiskTier      `json:"risk_tier"`
	Layers     LayerSnapshot `json:"layers"`
	Summary    []string      `json:"summary,omitempty"`
}

// Weights are the per-layer contributions to the raw score
type Weights struct {
	Structural  float64 `json:"structural"`
	Indicators  float64 `json:"indicators"`
	Derivatives float64 `json:"derivatives"`
}

// DefaultWeights returns the standard layer weighting
func DefaultWeights() Weights {
	return Weights{Structural: 1.0, Indicators: 0.6, Derivatives: 0.5}
}

// Maximum absolute contribution of each layer before weighting
const (
	maxStructural  = 30.0
	maxIndicators  = 20.0
	maxDerivatives = 15.0
)
