// Package risk converts a directional decision into a concrete order
// plan: ATR-based stop and targets, a position size satisfying equity
// risk and exchange constraints, and an itemized cost estimate.
package risk

import (
	"fmt"
	"math"

	"confluence-screener/internal/indicators"
	"confluence-screener/internal/market"
)

// Config holds the account-level risk parameters
type Config struct {
	Equity            float64 `json:"equity"`
	RiskPerTradePct   float64 `json:"risk_per_trade_pct"`
	ATRStopMultiplier float64 `json:"atr_stop_multiplier"`
	TP1RiskReward     float64 `json:"tp1_risk_reward"`
	TP2RiskReward     float64 `json:"tp2_risk_reward"`
	CapPositionPct    float64 `json:"cap_position_pct"` // 0 disables the notional cap
}

// DefaultConfig returns conservative account defaults
func DefaultConfig() Config {
	return Config{
		Equity:            10000,
		RiskPerTradePct:   1.0,
		ATRStopMultiplier: 1.5,
		TP1RiskReward:     1.5,
		TP2RiskReward:     3.0,
		CapPositionPct:    10,
	}
}

// Validate fails fast on a malformed risk configuration
func (c Config) Validate() error {
	if c.Equity <= 0 {
		return fmt.Errorf("risk config: equity must be positive, got %.2f", c.Equity)
	}
	if c.RiskPerTradePct <= 0 || c.RiskPerTradePct > 100 {
		return fmt.Errorf("risk config: risk per trade %.2f%% out of range", c.RiskPerTradePct)
	}
	if c.ATRStopMultiplier <= 0 {
		return fmt.Errorf("risk config: ATR stop multiplier must be positive")
	}
	if c.TP1RiskReward <= 0 || c.TP2RiskReward <= 0 {
		return fmt.Errorf("risk config: risk-reward ratios must be positive")
	}
	return nil
}

// ExchangeParams holds the exchange filters and cost rates for a symbol
type ExchangeParams struct {
	MinNotional  float64 `json:"min_notional"`
	MinQty       float64 `json:"min_qty"`
	QtyStep      float64 `json:"qty_step"`
	PriceTick    float64 `json:"price_tick"`
	TakerFeeRate float64 `json:"taker_fee_rate"` // e.g. 0.0004
	SlippageBps  float64 `json:"slippage_bps"`
	SpreadBps    float64 `json:"spread_bps"`
}

// DefaultExchangeParams returns typical USDT-perp filters
func DefaultExchangeParams() ExchangeParams {
	return ExchangeParams{
		MinNotional:  5,
		MinQty:       0.001,
		QtyStep:      0.001,
		PriceTick:    0.01,
		TakerFeeRate: 0.0004,
		SlippageBps:  2,
		SpreadBps:    1,
	}
}

// Validate fails fast on malformed exchange parameters
func (p ExchangeParams) Validate() error {
	if p.MinQty < 0 || p.MinNotional < 0 {
		return fmt.Errorf("exchange params: negative minimums")
	}
	if p.QtyStep <= 0 {
		return fmt.Errorf("exchange params: quantity step must be positive")
	}
	return nil
}

// Violation identifiers emitted by plan validation
const (
	ViolationZeroRisk      = "ZERO_RISK_PER_UNIT"
	ViolationNotionalMin   = "NOTIONAL_BELOW_MIN"
	ViolationQtyMin        = "QTY_BELOW_MIN"
	ViolationTP1Reward     = "TP1_REWARD_BELOW_RISK"
	ViolationStopSide      = "STOP_WRONG_SIDE"
	ViolationNotionalCeil  = "NOTIONAL_EXCEEDS_SANITY_CEILING"
	ViolationRewardExtreme = "REWARD_RISK_IMPLAUSIBLE"
	ViolationNonTradable   = "NON_TRADABLE"
)

// sanityCeilingPct caps any plan's notional at this share of equity
const sanityCeilingPct = 25.0

// maxPlausibleRR is the reward:risk above which a plan is rejected as a
// configuration or data artifact
const maxPlausibleRR = 5.0

// Plan is a fully specified order plan. Valid is true exactly when the
// violation list is empty.
type Plan struct {
	Side              market.Side `json:"side"`
	Entry             float64     `json:"entry"`
	StopLoss          float64     `json:"stop_loss"`
	TakeProfit1       float64     `json:"take_profit_1"`
	TakeProfit2       float64     `json:"take_profit_2"`
	RiskReward1       float64     `json:"risk_reward_1"`
	RiskReward2       float64     `json:"risk_reward_2"`
	Quantity          float64     `json:"quantity"`
	Notional          float64     `json:"notional"`
	EstimatedFees     float64     `json:"estimated_fees"`
	EstimatedSlippage float64     `json:"estimated_slippage"`
	EstimatedSpread   float64     `json:"estimated_spread"`
	Valid             bool        `json:"valid"`
	Violations        []string    `json:"violations,omitempty"`
}

// NonTradable returns the plan used for HOLD decisions
func NonTradable() Plan {
	return Plan{Side: market.SideNone, Violations: []string{ViolationNonTradable}}
}

// BuildPlan produces an order plan for the side. Entry defaults to the
// latest close when entryPrice is zero or negative. The plan is always
// returned fully populated; constraint failures appear as violations,
// never as errors.
func BuildPlan(side market.Side, candles []market.Candle, cfg Config, ex ExchangeParams, entryPrice float64) Plan {
	if side == market.SideNone {
		return NonTradable()
	}

	plan := Plan{Side: side}
	if len(candles) == 0 {
		plan.Violations = append(plan.Violations, ViolationZeroRisk)
		return plan
	}

	entry := entryPrice
	if entry <= 0 {
		entry = candles[len(candles)-1].Close
	}
	entry = roundToTick(entry, ex.PriceTick)
	plan.Entry = entry

	atr := indicators.ATR(candles, 14)
	riskPerUnit := atr * cfg.ATRStopMultiplier
	if riskPerUnit <= 0 {
		plan.Violations = append(plan.Violations, ViolationZeroRisk)
		return plan
	}

	dir := 1.0
	if side == market.SideSell {
		dir = -1.0
	}

	plan.StopLoss = roundToTick(entry-dir*riskPerUnit, ex.PriceTick)
	// Recompute from the rounded stop so the reported ratios match the
	// actual plan prices
	riskPerUnit = math.Abs(entry - plan.StopLoss)
	if riskPerUnit <= 0 {
		plan.Violations = append(plan.Violations, ViolationZeroRisk)
		return plan
	}

	plan.TakeProfit1 = roundToTick(entry+dir*cfg.TP1RiskReward*riskPerUnit, ex.PriceTick)
	plan.TakeProfit2 = roundToTick(entry+dir*cfg.TP2RiskReward*riskPerUnit, ex.PriceTick)
	plan.RiskReward1 = math.Abs(plan.TakeProfit1-entry) / riskPerUnit
	plan.RiskReward2 = math.Abs(plan.TakeProfit2-entry) / riskPerUnit

	// Sizing: risk-based quantity, then cap, then exchange floors, then
	// step rounding. Floors run after the cap on purpose: exchange
	// minimums are hard constraints and win over the soft cap; the
	// sanity-ceiling check below reports when that produces an
	// oversized position.
	qty := (cfg.Equity * cfg.RiskPerTradePct / 100) / riskPerUnit
	if cfg.CapPositionPct > 0 {
		maxNotional := cfg.Equity * cfg.CapPositionPct / 100
		if qty*entry > maxNotional {
			qty = maxNotional / entry
		}
	}
	if qty < ex.MinQty {
		qty = ex.MinQty
	}
	if ex.MinNotional > 0 && qty*entry < ex.MinNotional {
		qty = ex.MinNotional / entry
	}
	qty = roundToStep(qty, ex.QtyStep)
	// Step rounding floors the quantity; bump one step back up if it
	// dropped below an exchange minimum
	if qty < ex.MinQty || (ex.MinNotional > 0 && qty*entry < ex.MinNotional) {
		qty += ex.QtyStep
		qty = roundToStep(qty, ex.QtyStep)
	}
	plan.Quantity = qty
	plan.Notional = qty * entry

	// Cost model: estimates reported alongside the plan, never netted
	// into the stop or target prices
	plan.EstimatedFees = plan.Notional * ex.TakerFeeRate
	plan.EstimatedSlippage = plan.Notional * ex.SlippageBps / 10000
	plan.EstimatedSpread = plan.Notional * ex.SpreadBps / 10000

	plan.Violations = append(plan.Violations, validate(plan, cfg, ex)...)
	plan.Valid = len(plan.Violations) == 0
	return plan
}

// validate runs every check and reports each failure; it does not stop
// at the first one.
func validate(plan Plan, cfg Config, ex ExchangeParams) []string {
	var violations []string

	if ex.MinNotional > 0 && plan.Notional < ex.MinNotional {
		violations = append(violations, ViolationNotionalMin)
	}
	if plan.Quantity < ex.MinQty {
		violations = append(violations, ViolationQtyMin)
	}
	if plan.RiskReward1 < 1.0 {
		violations = append(violations, ViolationTP1Reward)
	}
	switch plan.Side {
	case market.SideBuy:
		if plan.StopLoss >= plan.Entry {
			violations = append(violations, ViolationStopSide)
		}
	case market.SideSell:
		if plan.StopLoss <= plan.Entry {
			violations = append(violations, ViolationStopSide)
		}
	}
	if cfg.Equity > 0 && plan.Notional > cfg.Equity*sanityCeilingPct/100 {
		violations = append(violations, ViolationNotionalCeil)
	}
	if plan.RiskReward2 > maxPlausibleRR {
		violations = append(violations, ViolationRewardExtreme)
	}
	return violations
}

// roundToStep floors a quantity onto the exchange step grid
func roundToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := math.Floor(qty/step + 1e-9)
	return steps * step
}

// roundToTick rounds a price to the nearest exchange tick
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}
