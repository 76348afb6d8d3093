// Command backtest replays the screening pipeline over a synthetic
// candle series and prints the resulting ledger statistics. Useful for
// sanity-checking parameter changes without starting the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"confluence-screener/internal/backtest"
	"confluence-screener/internal/market"
)

func main() {
	symbols := flag.String("symbols", "BTCUSDT,ETHUSDT,SOLUSDT", "comma-separated symbols to replay")
	tfName := flag.String("timeframe", "1h", "execution timeframe (5m, 15m, 1h, 4h, 1d)")
	bars := flag.Int("bars", 500, "candles per symbol")
	positionPct := flag.Float64("position-pct", 0, "override position size percent (0 keeps the default)")
	minConfidence := flag.Float64("min-confidence", 0, "override minimum entry confidence (0 keeps the default)")
	flag.Parse()

	params := backtest.DefaultParams()
	if *positionPct > 0 {
		params.PositionPct = *positionPct
	}
	if *minConfidence > 0 {
		params.MinConfidence = *minConfidence
	}

	tf := market.Timeframe(*tfName)
	provider := market.NewSyntheticProvider()
	engine := backtest.NewEngine()

	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("BACKTEST REPLAY  timeframe=%s  bars=%d\n", tf, *bars)
	fmt.Println(strings.Repeat("=", 72))

	failed := false
	for _, symbol := range strings.Split(*symbols, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}

		candles, err := provider.GetCandles(context.Background(), symbol, tf, *bars)
		if err != nil {
			fmt.Printf("%-10s candle fetch failed: %v\n", symbol, err)
			failed = true
			continue
		}

		result, err := engine.Run(candles, tf, params)
		if err != nil {
			fmt.Printf("%-10s replay failed: %v\n", symbol, err)
			failed = true
			continue
		}

		printReport(symbol, result)
	}

	if failed {
		os.Exit(1)
	}
}

func printReport(symbol string, result backtest.Result) {
	s := result.Stats

	fmt.Printf("\n%s\n", symbol)
	fmt.Println(strings.Repeat("-", 72))
	fmt.Printf("  Trades: %d  (wins %d / losses %d / breakeven %d, win rate %.1f%%)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.BreakevenTrades, s.WinRate)
	fmt.Printf("  Net P/L: %.2f  ROI: %.2f%%  Expectancy: %.2f per trade\n",
		s.NetProfit, s.ROI, s.Expectancy)

	if s.ProfitFactorInfinite {
		fmt.Printf("  Profit factor: inf (no losing trades)\n")
	} else {
		fmt.Printf("  Profit factor: %.2f\n", s.ProfitFactor)
	}
	fmt.Printf("  Max drawdown: %.2f%%  Sharpe: %.2f  Avg hold: %.1fh\n",
		s.MaxDrawdown, s.SharpeRatio, s.AvgHoldingHours)

	exits := map[backtest.ExitReason]int{}
	for _, trade := range result.Trades {
		exits[trade.ExitReason]++
	}
	if len(exits) > 0 {
		fmt.Printf("  Exits:")
		for _, reason := range []backtest.ExitReason{
			backtest.ExitStopLoss, backtest.ExitTakeProfit,
			backtest.ExitTimeout, backtest.ExitReversal, backtest.ExitRunEnd,
		} {
			if n := exits[reason]; n > 0 {
				fmt.Printf("  %s=%d", reason, n)
			}
		}
		fmt.Println()
	}
}
