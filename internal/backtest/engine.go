// Package backtest replays the decision pipeline over historical
// candles as a single-position state machine and rebuilds performance
// statistics from the resulting trade ledger.
package backtest

import (
	"errors"
	"time"

	"confluence-screener/internal/confluence"
	"confluence-screener/internal/indicators"
	"confluence-screener/internal/market"
	"confluence-screener/internal/screener"
	"confluence-screener/internal/structure"
)

// ExitReason tags why an open position was closed
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitTimeout    ExitReason = "timeout"
	ExitReversal   ExitReason = "signal_reversal"
	ExitRunEnd     ExitReason = "run_end"
)

// Params configures one backtest run
type Params struct {
	InitialEquity     float64 `json:"initial_equity"`
	PositionPct       float64 `json:"position_pct"` // fixed fraction of current equity per trade, percent
	ATRStopMultiplier float64 `json:"atr_stop_multiplier"`
	TakeProfitRR      float64 `json:"take_profit_rr"` // reward multiple of the stop distance
	MaxHoldingBars    int     `json:"max_holding_bars"`
	WarmupBars        int     `json:"warmup_bars"`
	MinConfidence     float64 `json:"min_confidence"` // entries below this confidence are skipped
	FeeRate           float64 `json:"fee_rate"`       // taker fee per fill, fraction of notional
	SlippageBps       float64 `json:"slippage_bps"`   // per-fill slippage, basis points of notional
}

// DefaultParams returns the standard replay configuration
func DefaultParams() Params {
	return Params{
		InitialEquity:     10000,
		PositionPct:       10,
		ATRStopMultiplier: 1.5,
		TakeProfitRR:      2.0,
		MaxHoldingBars:    48,
		WarmupBars:        80,
		MinConfidence:     30,
		FeeRate:           0.001,
		SlippageBps:       5,
	}
}

// Validate fails fast on parameter combinations the replay cannot run with
func (p Params) Validate() error {
	if p.InitialEquity <= 0 {
		return errors.New("backtest: initial equity must be positive")
	}
	if p.PositionPct <= 0 || p.PositionPct > 100 {
		return errors.New("backtest: position pct must be in (0, 100]")
	}
	if p.ATRStopMultiplier <= 0 {
		return errors.New("backtest: atr stop multiplier must be positive")
	}
	if p.TakeProfitRR <= 0 {
		return errors.New("backtest: take profit reward ratio must be positive")
	}
	if p.MaxHoldingBars <= 0 {
		return errors.New("backtest: max holding bars must be positive")
	}
	return nil
}

// Outcome classifies a booked trade by its net result after costs
type Outcome string

const (
	OutcomeWin       Outcome = "win"
	OutcomeLoss      Outcome = "loss"
	OutcomeBreakeven Outcome = "breakeven"
)

// Trade is one completed round trip in the ledger
type Trade struct {
	Side       market.Side `json:"side"`
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   time.Time   `json:"exit_time"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	Quantity   float64     `json:"quantity"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	ExitReason ExitReason  `json:"exit_reason"`
	Outcome    Outcome     `json:"outcome"`
	ProfitLoss float64     `json:"profit_loss"`
	PLPercent  float64     `json:"pl_percent"`
	BarsHeld   int         `json:"bars_held"`
}

// Result bundles the ledger, the per-bar equity curve and the
// statistics rebuilt from them.
type Result struct {
	Trades      []Trade   `json:"trades"`
	EquityCurve []float64 `json:"equity_curve"`
	Stats       Stats     `json:"stats"`
}

// openPosition is the Open state of the replay machine
type openPosition struct {
	side       market.Side
	entryBar   int
	entryTime  time.Time
	entryPrice float64
	quantity   float64
	stopLoss   float64
	takeProfit float64
}

// Engine replays candles deterministically. It owns no mutable state
// across runs, so one engine can serve many requests.
type Engine struct {
	analyzer *structure.Analyzer
	scorer   *confluence.Scorer
}

// NewEngine builds a replay engine with the standard pipeline stages
func NewEngine() *Engine {
	return &Engine{
		analyzer: structure.NewAnalyzer(),
		scorer:   confluence.NewScorer(),
	}
}

// Run replays the candle series bar by bar. Each bar sees only the
// window up to and including itself, one position slot is open at a
// time, and the loop is strictly sequential, so identical inputs
// produce identical ledgers and statistics.
func (e *Engine) Run(candles []market.Candle, tf market.Timeframe, params Params) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	warmup := params.WarmupBars
	if warmup < indicators.MinBars {
		warmup = indicators.MinBars
	}
	if len(candles) <= warmup {
		return Result{}, errors.New("backtest: not enough candles for the warm-up window")
	}

	h4Factor := aggregationFactor(tf, market.TF4h)
	h1Factor := aggregationFactor(tf, market.TF1h)

	result := Result{
		Trades:      make([]Trade, 0),
		EquityCurve: make([]float64, 0, len(candles)-warmup),
	}
	equity := params.InitialEquity
	var open *openPosition

	for i := warmup; i < len(candles); i++ {
		window := candles[:i+1]
		bar := candles[i]

		if open != nil {
			if reason, exitPrice, ok := e.checkExit(open, bar, window, i, h4Factor, h1Factor, params); ok {
				trade := bookTrade(open, bar, exitPrice, reason, i, params)
				equity += trade.ProfitLoss
				result.Trades = append(result.Trades, trade)
				open = nil
			}
		} else {
			open = e.tryOpen(window, bar, i, equity, h4Factor, h1Factor, params)
		}

		result.EquityCurve = append(result.EquityCurve, markToMarket(equity, open, bar.Close))
	}

	// a position still open at the end of the series closes at the
	// final bar so the ledger and the equity curve agree
	if open != nil {
		last := len(candles) - 1
		bar := candles[last]
		trade := bookTrade(open, bar, bar.Close, ExitRunEnd, last, params)
		equity += trade.ProfitLoss
		result.Trades = append(result.Trades, trade)
		result.EquityCurve[len(result.EquityCurve)-1] = equity
	}

	result.Stats = ComputeStats(result.Trades, result.EquityCurve, params.InitialEquity, tf)
	return result, nil
}

// decide runs the pure scoring pipeline on the visible window. The
// replay deliberately skips the alert rate limiter and deduper: those
// are wall-clock, process-lifetime components and would make identical
// inputs produce different ledgers depending on when the run happens.
func (e *Engine) decide(window []market.Candle, h4Factor, h1Factor int, minConfidence float64) market.Side {
	var h4, h1 []market.Candle
	if h4Factor > 1 {
		h4 = market.Aggregate(window, h4Factor)
	} else if h4Factor == 1 {
		h4 = window
	}
	if h1Factor > 1 {
		h1 = market.Aggregate(window, h1Factor)
	} else if h1Factor == 1 {
		h1 = window
	}

	eval := screener.EvaluateWindow(window, h4, h1, nil, e.analyzer, e.scorer)
	if eval.Confluence.Confidence < minConfidence {
		return market.SideNone
	}
	switch eval.Confluence.Label {
	case confluence.LabelBuy:
		return market.SideBuy
	case confluence.LabelSell:
		return market.SideSell
	default:
		return market.SideNone
	}
}

// tryOpen evaluates the window and, if a direction is gated through,
// opens a position at the bar close with an ATR stop and target.
func (e *Engine) tryOpen(window []market.Candle, bar market.Candle, idx int, equity float64, h4Factor, h1Factor int, params Params) *openPosition {
	side := e.decide(window, h4Factor, h1Factor, params.MinConfidence)
	if side == market.SideNone {
		return nil
	}

	atr := indicators.ATR(window, 14)
	if atr <= 0 {
		return nil
	}

	entry := bar.Close
	stopDistance := atr * params.ATRStopMultiplier
	var stop, target float64
	if side == market.SideBuy {
		stop = entry - stopDistance
		target = entry + stopDistance*params.TakeProfitRR
	} else {
		stop = entry + stopDistance
		target = entry - stopDistance*params.TakeProfitRR
	}
	if stop <= 0 || entry <= 0 {
		return nil
	}

	notional := equity * params.PositionPct / 100
	if notional <= 0 {
		return nil
	}

	return &openPosition{
		side:       side,
		entryBar:   idx,
		entryTime:  bar.CloseAt(),
		entryPrice: entry,
		quantity:   notional / entry,
		stopLoss:   stop,
		takeProfit: target,
	}
}

// checkExit applies the exit conditions in their fixed priority order:
// stop loss, take profit, timeout, signal reversal. Only the first
// satisfied condition fires for a given bar. Stop and target exits fill
// at the stop or target price rather than the bar close so intrabar
// touches are not credited at a better price than the order would get.
func (e *Engine) checkExit(open *openPosition, bar market.Candle, window []market.Candle, idx, h4Factor, h1Factor int, params Params) (ExitReason, float64, bool) {
	if open.side == market.SideBuy {
		if bar.Low <= open.stopLoss {
			return ExitStopLoss, open.stopLoss, true
		}
		if bar.High >= open.takeProfit {
			return ExitTakeProfit, open.takeProfit, true
		}
	} else {
		if bar.High >= open.stopLoss {
			return ExitStopLoss, open.stopLoss, true
		}
		if bar.Low <= open.takeProfit {
			return ExitTakeProfit, open.takeProfit, true
		}
	}

	if idx-open.entryBar >= params.MaxHoldingBars {
		return ExitTimeout, bar.Close, true
	}

	opposite := e.decide(window, h4Factor, h1Factor, params.MinConfidence)
	if (open.side == market.SideBuy && opposite == market.SideSell) ||
		(open.side == market.SideSell && opposite == market.SideBuy) {
		return ExitReversal, bar.Close, true
	}

	return "", 0, false
}

// bookTrade books the round trip with the fee and slippage cost model
// applied on both fills. Spread is not modeled in the replay.
func bookTrade(open *openPosition, bar market.Candle, exitPrice float64, reason ExitReason, idx int, params Params) Trade {
	direction := 1.0
	if open.side == market.SideSell {
		direction = -1.0
	}
	gross := (exitPrice - open.entryPrice) * open.quantity * direction

	entryNotional := open.entryPrice * open.quantity
	exitNotional := exitPrice * open.quantity
	fees := (entryNotional + exitNotional) * params.FeeRate
	slippage := (entryNotional + exitNotional) * params.SlippageBps / 10000

	pl := gross - fees - slippage
	plPct := 0.0
	if entryNotional > 0 {
		plPct = pl / entryNotional * 100
	}

	return Trade{
		Side:       open.side,
		EntryTime:  open.entryTime,
		ExitTime:   bar.CloseAt(),
		EntryPrice: open.entryPrice,
		ExitPrice:  exitPrice,
		Quantity:   open.quantity,
		StopLoss:   open.stopLoss,
		TakeProfit: open.takeProfit,
		ExitReason: reason,
		Outcome:    outcomeFor(pl),
		ProfitLoss: pl,
		PLPercent:  plPct,
		BarsHeld:   idx - open.entryBar,
	}
}

// outcomeFor tags the round trip by the sign of its net result
func outcomeFor(pl float64) Outcome {
	switch {
	case pl > 0:
		return OutcomeWin
	case pl < 0:
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}

// markToMarket values the account at the bar close, counting the open
// position's unrealized move so the equity curve has one point per bar.
func markToMarket(equity float64, open *openPosition, closePrice float64) float64 {
	if open == nil {
		return equity
	}
	direction := 1.0
	if open.side == market.SideSell {
		direction = -1.0
	}
	return equity + (closePrice-open.entryPrice)*open.quantity*direction
}

// aggregationFactor is how many execution-timeframe bars roll into one
// bar of the target timeframe, or 0 when the target cannot be derived
// from the execution step.
func aggregationFactor(tf, target market.Timeframe) int {
	step := tf.Duration()
	want := target.Duration()
	if step <= 0 || want < step || want%step != 0 {
		return 0
	}
	return int(want / step)
}
