package backtest

import (
	"math"

	"confluence-screener/internal/market"
)

// annualizationFactor scales the per-bar Sharpe ratio to a yearly
// figure using the trading-days convention.
var annualizationFactor = math.Sqrt(252)

// Stats are the aggregate performance figures recomputed from the full
// trade ledger and equity curve after a run completes.
type Stats struct {
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	BreakevenTrades int     `json:"breakeven_trades"`
	WinRate         float64 `json:"win_rate"`

	NetProfit float64 `json:"net_profit"`
	ROI       float64 `json:"roi"`

	AverageWin  float64 `json:"average_win"`
	AverageLoss float64 `json:"average_loss"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`

	// ProfitFactor is gross profit over absolute gross loss. When wins
	// exist but losses are zero the ratio has no finite value, so
	// ProfitFactorInfinite is set and ProfitFactor holds 0. JSON cannot
	// carry IEEE infinity, hence the explicit flag.
	ProfitFactor         float64 `json:"profit_factor"`
	ProfitFactorInfinite bool    `json:"profit_factor_infinite"`

	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	Expectancy  float64 `json:"expectancy"`

	AvgHoldingHours float64 `json:"avg_holding_hours"`
}

// ComputeStats rebuilds every figure from the ledger and the per-bar
// equity curve. It reads nothing from the engine, so the same ledger
// always yields the same statistics.
func ComputeStats(trades []Trade, equityCurve []float64, initialEquity float64, tf market.Timeframe) Stats {
	var s Stats
	s.TotalTrades = len(trades)

	var grossWin, grossLoss float64
	var totalBarsHeld int
	for _, t := range trades {
		totalBarsHeld += t.BarsHeld
		switch {
		case t.ProfitLoss > 0:
			s.WinningTrades++
			grossWin += t.ProfitLoss
			if t.ProfitLoss > s.LargestWin {
				s.LargestWin = t.ProfitLoss
			}
		case t.ProfitLoss < 0:
			s.LosingTrades++
			grossLoss += math.Abs(t.ProfitLoss)
			if math.Abs(t.ProfitLoss) > math.Abs(s.LargestLoss) {
				s.LargestLoss = t.ProfitLoss
			}
		default:
			// flat round trips count toward neither side's averages
			s.BreakevenTrades++
		}
		s.NetProfit += t.ProfitLoss
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.Expectancy = s.NetProfit / float64(s.TotalTrades)
		barHours := tf.Duration().Hours()
		s.AvgHoldingHours = float64(totalBarsHeld) / float64(s.TotalTrades) * barHours
	}
	if s.WinningTrades > 0 {
		s.AverageWin = grossWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = -grossLoss / float64(s.LosingTrades)
	}
	if initialEquity > 0 {
		s.ROI = s.NetProfit / initialEquity * 100
	}

	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		s.ProfitFactorInfinite = true
	}

	s.MaxDrawdown = maxDrawdown(equityCurve)
	s.SharpeRatio = sharpe(equityCurve)
	return s
}

// maxDrawdown is the largest peak-to-trough decline on the equity
// curve, in percent of the peak.
func maxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0]
	worst := 0.0
	for _, eq := range curve {
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			dd := (peak - eq) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe is mean over standard deviation of the per-bar equity
// returns, annualized.
func sharpe(curve []float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		returns = append(returns, curve[i]/curve[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	stdev := math.Sqrt(variance / float64(len(returns)))
	if stdev == 0 {
		return 0
	}
	return mean / stdev * annualizationFactor
}
