// Package signal assembles the pipeline stages into the terminal,
// write-once decision record.
package signal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"confluence-screener/internal/confluence"
	"confluence-screener/internal/market"
	"confluence-screener/internal/mtf"
	"confluence-screener/internal/regime"
	"confluence-screener/internal/risk"
)

// Priority grades how urgently a signal should be acted on
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// baseExpiry is the validity window before regime scaling
const baseExpiry = 4 * time.Hour

// TradableSignal is the terminal decision record for one instrument and
// request. Exactly one is produced per request and it is never mutated
// after composition.
type TradableSignal struct {
	ID        string           `json:"id"`
	Symbol    string           `json:"symbol"`
	Timeframe market.Timeframe `json:"timeframe"`

	Confluence confluence.Result     `json:"confluence"`
	Regime     regime.Advice         `json:"regime"`
	HTF        mtf.HTFBias           `json:"htf"`
	Modulation mtf.ModulationOutcome `json:"modulation"`
	Plan       risk.Plan             `json:"plan"`

	Side     market.Side `json:"side"`
	Priority Priority    `json:"priority"`
	Created  time.Time   `json:"created"`
	Expiry   time.Time   `json:"expiry"`
}

// Tradable reports whether the signal carries an actionable order plan
func (s TradableSignal) Tradable() bool {
	return s.Side != market.SideNone && s.Plan.Valid
}

// Input carries everything the composer needs for one signal
type Input struct {
	Symbol     string
	Timeframe  market.Timeframe
	Candles    []market.Candle
	Confluence confluence.Result
	Regime     regime.Advice
	HTF        mtf.HTFBias
	Modulation mtf.ModulationOutcome
	RiskConfig risk.Config
	Exchange   risk.ExchangeParams
	Now        time.Time
}

// Compose builds the terminal signal. A HOLD label short-circuits to a
// non-tradable record without invoking the risk engine. Composition
// never panics past this boundary: an internal fault produces a
// non-tradable record carrying the fault text as its sole violation.
func Compose(in Input) (out TradableSignal) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	defer func() {
		if r := recover(); r != nil {
			out = nonTradable(in, now)
			out.Plan.Violations = []string{fmt.Sprintf("compose failed: %v", r)}
		}
	}()

	if in.Confluence.Label == confluence.LabelHold {
		return nonTradable(in, now)
	}

	side := market.SideBuy
	if in.Confluence.Label == confluence.LabelSell {
		side = market.SideSell
	}

	plan := risk.BuildPlan(side, in.Candles, in.RiskConfig, in.Exchange, 0)

	out = TradableSignal{
		ID:         uuid.NewString(),
		Symbol:     in.Symbol,
		Timeframe:  in.Timeframe,
		Confluence: in.Confluence,
		Regime:     in.Regime,
		HTF:        in.HTF,
		Modulation: in.Modulation,
		Plan:       plan,
		Side:       side,
		Priority:   priorityFor(side, in.Confluence.Score, in.Confluence.Confidence),
		Created:    now,
		Expiry:     now.Add(expiryFor(in.Regime)),
	}
	return out
}

func nonTradable(in Input, now time.Time) TradableSignal {
	return TradableSignal{
		ID:         uuid.NewString(),
		Symbol:     in.Symbol,
		Timeframe:  in.Timeframe,
		Confluence: in.Confluence,
		Regime:     in.Regime,
		HTF:        in.HTF,
		Modulation: in.Modulation,
		Plan:       risk.NonTradable(),
		Side:       market.SideNone,
		Priority:   PriorityLow,
		Created:    now,
		Expiry:     now.Add(expiryFor(in.Regime)),
	}
}

// priorityFor grades the signal from directional strength and
// confidence. Strength reads the score from the side's point of view so
// a deep SELL score grades the same as a high BUY score.
func priorityFor(side market.Side, score, confidence float64) Priority {
	strength := score
	if side == market.SideSell {
		strength = 100 - score
	}
	switch {
	case strength >= 80 && confidence >= 70:
		return PriorityHigh
	case strength <= 40 || confidence <= 40:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// expiryFor scales the base validity window by the regime: volatile
// regimes expire signals sooner, quiet ones keep them longer.
func expiryFor(advice regime.Advice) time.Duration {
	scale := advice.ExpiryScale
	if scale <= 0 {
		scale = 1.0
	}
	return time.Duration(float64(baseExpiry) * scale)
}
