package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"confluence-screener/internal/alert"
	"confluence-screener/internal/backtest"
	"confluence-screener/internal/market"
	"confluence-screener/internal/signal"
)

// ScreenRequest asks for one instrument's decision
type ScreenRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	Timeframe string `json:"timeframe"`
	Limit     int    `json:"limit"`
}

// ScreenBatchRequest asks for many instruments in one call
type ScreenBatchRequest struct {
	Symbols   []string `json:"symbols" binding:"required"`
	Timeframe string   `json:"timeframe"`
	Limit     int      `json:"limit"`
}

// BacktestRequest replays the pipeline over historical candles
type BacktestRequest struct {
	Symbol    string           `json:"symbol" binding:"required"`
	Timeframe string           `json:"timeframe"`
	Bars      int              `json:"bars"`
	Params    *backtest.Params `json:"params"` // nil uses defaults
}

// ScreenResponse pairs the signal with its alert decision
type ScreenResponse struct {
	Signal   signal.TradableSignal `json:"signal"`
	Decision alert.Decision        `json:"decision"`
	Alerted  bool                  `json:"alerted"`
}

func (s *Server) handleScreen(c *gin.Context) {
	var req ScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	tf, ok := parseTimeframe(req.Timeframe)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe: "+req.Timeframe)
		return
	}

	sig := s.engine.ScreenOne(c.Request.Context(), req.Symbol, tf, req.Limit)
	successResponse(c, s.gateAndNotify(sig))
}

func (s *Server) handleScreenBatch(c *gin.Context) {
	var req ScreenBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Symbols) == 0 {
		errorResponse(c, http.StatusBadRequest, "symbols must not be empty")
		return
	}

	tf, ok := parseTimeframe(req.Timeframe)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe: "+req.Timeframe)
		return
	}

	sigs := s.engine.ScreenBatch(c.Request.Context(), req.Symbols, tf, req.Limit)
	responses := make([]ScreenResponse, len(sigs))
	for i, sig := range sigs {
		responses[i] = s.gateAndNotify(sig)
	}
	successResponse(c, responses)
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	tf, ok := parseTimeframe(req.Timeframe)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe: "+req.Timeframe)
		return
	}

	bars := req.Bars
	if bars <= 0 {
		bars = 500
	}
	params := backtest.DefaultParams()
	if req.Params != nil {
		params = *req.Params
	}

	candles, err := s.provider.GetCandles(c.Request.Context(), req.Symbol, tf, bars)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "candle fetch failed: "+err.Error())
		return
	}

	result, err := s.backtester.Run(candles, tf, params)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, result)
}

func (s *Server) handleAlertStats(c *gin.Context) {
	successResponse(c, s.limiter.GetStats())
}

// gateAndNotify runs the alert chain for one signal: gate decision,
// rate limit, dedup, then outbound delivery. The limiter runs first:
// Seen marks the dedup key, so a limiter-blocked signal must not reach
// it. The rate limiter records only alerts that actually went out.
func (s *Server) gateAndNotify(sig signal.TradableSignal) ScreenResponse {
	decision := s.gate.Decide(sig)
	resp := ScreenResponse{Signal: sig, Decision: decision}
	if !decision.ShouldAlert {
		return resp
	}

	if !s.limiter.ShouldAllow(sig.Symbol, decision.Priority) {
		log.Debug().Str("symbol", sig.Symbol).Msg("alert suppressed by rate limit")
		return resp
	}
	key := alert.Key(sig.Symbol, sig.Confluence.Label, sig.Modulation.AdjustedScore)
	if s.deduper.Seen(key) {
		log.Debug().Str("symbol", sig.Symbol).Msg("alert suppressed by dedup")
		return resp
	}

	s.limiter.Record(sig.Symbol)
	resp.Alerted = true

	if s.notifier != nil {
		if err := s.notifier.SendAlert(sig, decision); err != nil {
			log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("alert delivery failed")
		}
	}
	return resp
}

func parseTimeframe(raw string) (market.Timeframe, bool) {
	if raw == "" {
		return market.TF1h, true
	}
	tf := market.Timeframe(raw)
	if tf.Duration() <= 0 {
		return "", false
	}
	return tf, true
}
