package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"confluence-screener/config"
	"confluence-screener/internal/alert"
	"confluence-screener/internal/api"
	"confluence-screener/internal/backtest"
	"confluence-screener/internal/confluence"
	"confluence-screener/internal/logging"
	"confluence-screener/internal/market"
	"confluence-screener/internal/notification"
	"confluence-screener/internal/regime"
	"confluence-screener/internal/risk"
	"confluence-screener/internal/screener"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Setup(cfg.LoggingConfig)

	provider := buildProvider(cfg)
	cache := buildCache(cfg)

	riskCfg := risk.Config{
		Equity:            cfg.RiskConfig.Equity,
		RiskPerTradePct:   cfg.RiskConfig.RiskPerTradePct,
		ATRStopMultiplier: cfg.RiskConfig.ATRStopMultiplier,
		TP1RiskReward:     cfg.RiskConfig.TP1RiskReward,
		TP2RiskReward:     cfg.RiskConfig.TP2RiskReward,
		CapPositionPct:    cfg.RiskConfig.CapPositionPct,
	}
	if err := riskCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid risk configuration")
	}
	exchange := risk.ExchangeParams{
		MinNotional:  cfg.ExchangeConfig.MinNotional,
		MinQty:       cfg.ExchangeConfig.MinQty,
		QtyStep:      cfg.ExchangeConfig.QtyStep,
		PriceTick:    cfg.ExchangeConfig.PriceTick,
		TakerFeeRate: cfg.ExchangeConfig.TakerFeeRate,
		SlippageBps:  cfg.ExchangeConfig.SlippageBps,
		SpreadBps:    cfg.ExchangeConfig.SpreadBps,
	}
	if err := exchange.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid exchange parameters")
	}

	engine := screener.NewEngine(provider, riskCfg, exchange, cache)
	weights := confluence.Weights{
		Structural:  cfg.ScreenerConfig.StructuralWeight,
		Indicators:  cfg.ScreenerConfig.IndicatorsWeight,
		Derivatives: cfg.ScreenerConfig.DerivativesWeight,
	}
	if err := engine.SetWeights(weights); err != nil {
		log.Fatal().Err(err).Msg("invalid layer weights")
	}

	var allowedRegimes []regime.Regime
	for _, name := range cfg.AlertConfig.AllowedRegimes {
		allowedRegimes = append(allowedRegimes, regime.Parse(name))
	}
	gate := alert.NewGate(alert.GateConfig{
		MinConfidence:   cfg.AlertConfig.MinConfidence,
		ExcludeHighRisk: cfg.AlertConfig.ExcludeHighRisk,
		AllowedRegimes:  allowedRegimes,
	})
	limiter := alert.NewRateLimiter(alert.RateLimiterConfig{
		PerSymbolCooldown: cfg.AlertConfig.PerSymbolCooldown(),
		MaxPerMinute:      cfg.AlertConfig.MaxPerMinute,
		MaxPerHour:        cfg.AlertConfig.MaxPerHour,
	})
	deduper := alert.NewDeduper(cfg.AlertConfig.DedupTTL())

	var notifier *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifier = notification.NewManager()
		notifier.Add(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
			Enabled:  cfg.NotificationConfig.Telegram.Enabled,
		}))
		notifier.Add(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
			Enabled:    cfg.NotificationConfig.Discord.Enabled,
		}))
	}

	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		ProductionMode: cfg.LoggingConfig.Level != "debug",
	}, engine, backtest.NewEngine(), provider, gate, limiter, deduper, notifier)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// housekeeping: bound rate-limiter history and drop stale cache
	// entries while the process runs
	stopHousekeeping := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup()
				if mc, ok := cache.(*screener.MemoryCache); ok {
					mc.CleanupExpired()
				}
			case <-stopHousekeeping:
				return
			}
		}
	}()

	log.Info().
		Str("timeframe", cfg.ScreenerConfig.Timeframe).
		Bool("synthetic_data", cfg.ScreenerConfig.SyntheticData).
		Msg("confluence screener started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	close(stopHousekeeping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down HTTP server")
	}
}

// buildProvider selects the market-data source. Only the deterministic
// synthetic feed ships here; a live adapter plugs in through the same
// interface.
func buildProvider(cfg *config.Config) market.Provider {
	if !cfg.ScreenerConfig.SyntheticData {
		log.Warn().Msg("no live market data adapter configured, using synthetic provider")
	}
	return market.NewSyntheticProvider()
}

// buildCache picks Redis when configured, otherwise the in-process TTL
// cache, or no cache at all.
func buildCache(cfg *config.Config) screener.Cache {
	if !cfg.CacheConfig.Enabled {
		return nil
	}
	ttl := cfg.CacheConfig.CacheTTL()
	if cfg.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		log.Info().Str("addr", cfg.RedisConfig.Address).Msg("using redis result cache")
		return screener.NewRedisCache(client, ttl)
	}
	return screener.NewMemoryCache(ttl)
}
