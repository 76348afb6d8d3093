// Package alert decides whether a composed signal should trigger a
// notification and throttles how often notifications fire.
package alert

import (
	"fmt"

	"confluence-screener/internal/confluence"
	"confluence-screener/internal/market"
	"confluence-screener/internal/regime"
	"confluence-screener/internal/signal"
)

// GateConfig filters which signals are allowed to alert
type GateConfig struct {
	MinConfidence   float64         `json:"min_confidence"`
	ExcludeHighRisk bool            `json:"exclude_high_risk"`
	AllowedRegimes  []regime.Regime `json:"allowed_regimes,omitempty"` // empty allows all
}

// DefaultGateConfig returns the standard alert filters
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinConfidence:   50,
		ExcludeHighRisk: true,
	}
}

// Decision is the gate's verdict for one signal
type Decision struct {
	ShouldAlert bool            `json:"should_alert"`
	Side        market.Side     `json:"side"`
	Reason      string          `json:"reason"`
	Priority    signal.Priority `json:"priority"`
}

// Gate applies threshold, confidence, risk and regime filters to a
// signal. Filter failures demote the decision to a non-alerting HOLD
// with a readable reason; the gate never raises.
type Gate struct {
	cfg GateConfig
}

// NewGate creates a gate with the given filters
func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Decide evaluates a composed signal against the gate filters. The
// regime's dynamic thresholds decide eligibility: a BUY needs the score
// at or above the buy threshold, a SELL at or below the sell threshold.
func (g *Gate) Decide(sig signal.TradableSignal) Decision {
	// A populated modulation always carries a reason, so its absence
	// marks a signal composed without the HTF stage. An adjusted score
	// of exactly 0 is a legitimate floored deep sell.
	score := sig.Confluence.Score
	if sig.Modulation.Reason != "" {
		score = sig.Modulation.AdjustedScore
	}

	switch sig.Confluence.Label {
	case confluence.LabelBuy:
		if score < sig.Regime.BuyThreshold {
			return hold(fmt.Sprintf("score %.1f below buy threshold %.1f", score, sig.Regime.BuyThreshold))
		}
	case confluence.LabelSell:
		if score > sig.Regime.SellThreshold {
			return hold(fmt.Sprintf("score %.1f above sell threshold %.1f", score, sig.Regime.SellThreshold))
		}
	default:
		return hold("label is HOLD")
	}

	if sig.Confluence.Confidence < g.cfg.MinConfidence {
		return hold(fmt.Sprintf("confidence %.0f below minimum %.0f", sig.Confluence.Confidence, g.cfg.MinConfidence))
	}
	if g.cfg.ExcludeHighRisk && sig.Confluence.RiskTier == confluence.TierHigh {
		return hold("high risk tier excluded")
	}
	if len(g.cfg.AllowedRegimes) > 0 && !regimeAllowed(g.cfg.AllowedRegimes, sig.Regime.Regime) {
		return hold(fmt.Sprintf("regime %s not in allow-list", sig.Regime.Regime))
	}

	return Decision{
		ShouldAlert: true,
		Side:        sig.Side,
		Reason:      fmt.Sprintf("%s at score %.1f, confidence %.0f", sig.Confluence.Label, score, sig.Confluence.Confidence),
		Priority:    alertPriority(sig.Confluence.Label, score, sig.Confluence.Confidence),
	}
}

func hold(reason string) Decision {
	return Decision{
		ShouldAlert: false,
		Side:        market.SideNone,
		Reason:      reason,
		Priority:    signal.PriorityLow,
	}
}

// alertPriority is high for extreme scores or very high confidence,
// medium otherwise
func alertPriority(label confluence.Label, score, confidence float64) signal.Priority {
	if confidence >= 90 {
		return signal.PriorityHigh
	}
	if label == confluence.LabelBuy && score >= 80 {
		return signal.PriorityHigh
	}
	if label == confluence.LabelSell && score <= 20 {
		return signal.PriorityHigh
	}
	return signal.PriorityMedium
}

func regimeAllowed(allowed []regime.Regime, r regime.Regime) bool {
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}
