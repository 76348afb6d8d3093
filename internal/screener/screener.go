// Package screener orchestrates the decision pipeline for one or many
// instruments: fetch, score, regime-adapt, fuse, size, compose.
package screener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"confluence-screener/internal/confluence"
	"confluence-screener/internal/market"
	"confluence-screener/internal/mtf"
	"confluence-screener/internal/regime"
	"confluence-screener/internal/risk"
	"confluence-screener/internal/signal"
	"confluence-screener/internal/structure"
)

// htfLimit is how many higher-timeframe candles each bias read fetches
const htfLimit = 120

// Engine runs the screening pipeline. It is stateless per call apart
// from the injected result cache, so concurrent screens are safe.
type Engine struct {
	provider market.Provider
	analyzer *structure.Analyzer
	scorer   *confluence.Scorer
	riskCfg  risk.Config
	exchange risk.ExchangeParams
	cache    Cache
}

// NewEngine wires a screening engine. A nil cache disables memoization.
func NewEngine(provider market.Provider, riskCfg risk.Config, exchange risk.ExchangeParams, cache Cache) *Engine {
	return &Engine{
		provider: provider,
		analyzer: structure.NewAnalyzer(),
		scorer:   confluence.NewScorer(),
		riskCfg:  riskCfg,
		exchange: exchange,
		cache:    cache,
	}
}

// SetWeights overrides the confluence layer weights
func (e *Engine) SetWeights(w confluence.Weights) error {
	return e.scorer.SetWeights(w)
}

// ScreenOne produces the graded decision for one instrument. Every
// return is a well-formed signal: data failures degrade to neutral
// layers and, at worst, a HOLD record carrying the failure reason.
func (e *Engine) ScreenOne(ctx context.Context, symbol string, tf market.Timeframe, limit int) signal.TradableSignal {
	if limit <= 0 {
		limit = 200
	}

	key := cacheKey(symbol, tf, limit)
	if e.cache != nil {
		if sig, ok := e.cache.Get(key); ok {
			return sig
		}
	}

	candles, err := e.provider.GetCandles(ctx, symbol, tf, limit)
	if err != nil || len(candles) == 0 {
		log.Warn().Err(err).Str("symbol", symbol).Msg("candle fetch failed, returning neutral result")
		return e.neutralSignal(symbol, tf, fmt.Sprintf("no candle data: %v", err))
	}

	h4, h4Err := e.provider.GetCandles(ctx, symbol, market.TF4h, htfLimit)
	if h4Err != nil {
		log.Debug().Err(h4Err).Str("symbol", symbol).Msg("h4 fetch degraded")
	}
	h1, h1Err := e.provider.GetCandles(ctx, symbol, market.TF1h, htfLimit)
	if h1Err != nil {
		log.Debug().Err(h1Err).Str("symbol", symbol).Msg("h1 fetch degraded")
	}

	var derivs *market.DerivativesSnapshot
	if snapshot, derr := e.provider.GetDerivatives(ctx, symbol); derr == nil {
		derivs = &snapshot
	} else {
		log.Debug().Err(derr).Str("symbol", symbol).Msg("derivatives fetch degraded")
	}

	eval := EvaluateWindow(candles, h4, h1, derivs, e.analyzer, e.scorer)

	sig := signal.Compose(signal.Input{
		Symbol:     symbol,
		Timeframe:  tf,
		Candles:    candles,
		Confluence: eval.Confluence,
		Regime:     eval.Advice,
		HTF:        eval.HTF,
		Modulation: eval.Modulation,
		RiskConfig: e.riskCfg,
		Exchange:   e.exchange,
	})

	if e.cache != nil {
		e.cache.Set(key, sig)
	}
	return sig
}

// ScreenBatch fans out independent pipeline runs and fans the results
// back in. A failure in one instrument never aborts the others: each
// symbol's pipeline is guarded at its own boundary and converted into a
// neutral HOLD record, so the batch always returns one record per
// requested symbol, in request order.
func (e *Engine) ScreenBatch(ctx context.Context, symbols []string, tf market.Timeframe, limit int) []signal.TradableSignal {
	results := make([]signal.TradableSignal, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(idx int, sym string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("symbol", sym).Msg("pipeline panic contained")
					results[idx] = e.neutralSignal(sym, tf, fmt.Sprintf("pipeline fault: %v", r))
				}
			}()
			results[idx] = e.ScreenOne(ctx, sym, tf, limit)
		}(i, symbol)
	}
	wg.Wait()

	return results
}

// neutralSignal is the never-blank fallback record
func (e *Engine) neutralSignal(symbol string, tf market.Timeframe, reason string) signal.TradableSignal {
	result := confluence.Result{
		Score:      50,
		Label:      confluence.LabelHold,
		Confidence: 0,
		RiskTier:   confluence.TierHigh,
		Summary:    []string{reason},
	}
	return signal.Compose(signal.Input{
		Symbol:     symbol,
		Timeframe:  tf,
		Confluence: result,
		Regime:     regime.Neutral(reason),
		HTF:        mtf.Neutral(reason),
		Modulation: mtf.ModulationOutcome{AdjustedScore: 50, Reason: reason},
		RiskConfig: e.riskCfg,
		Exchange:   e.exchange,
		Now:        time.Now().UTC(),
	})
}
