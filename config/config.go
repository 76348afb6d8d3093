// Package config loads the process configuration from config.json with
// environment variable overrides. Malformed values fail at load time,
// never in the request path.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ScreenerConfig     ScreenerConfig     `json:"screener"`
	RiskConfig         RiskConfig         `json:"risk"`
	ExchangeConfig     ExchangeConfig     `json:"exchange"`
	AlertConfig        AlertConfig        `json:"alert"`
	CacheConfig        CacheConfig        `json:"cache"`
	RedisConfig        RedisConfig        `json:"redis"`
	NotificationConfig NotificationConfig `json:"notification"`
	ServerConfig       ServerConfig       `json:"server"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ScreenerConfig controls the scoring pipeline defaults
type ScreenerConfig struct {
	Timeframe         string  `json:"timeframe"`    // e.g. "15m", "1h"
	CandleLimit       int     `json:"candle_limit"` // bars fetched per screen
	StructuralWeight  float64 `json:"structural_weight"`
	IndicatorsWeight  float64 `json:"indicators_weight"`
	DerivativesWeight float64 `json:"derivatives_weight"`
	SyntheticData     bool    `json:"synthetic_data"` // use the deterministic provider instead of a live feed
}

// RiskConfig mirrors the risk engine's account-level inputs
type RiskConfig struct {
	Equity            float64 `json:"equity"`
	RiskPerTradePct   float64 `json:"risk_per_trade_pct"`
	ATRStopMultiplier float64 `json:"atr_stop_multiplier"`
	TP1RiskReward     float64 `json:"tp1_risk_reward"`
	TP2RiskReward     float64 `json:"tp2_risk_reward"`
	CapPositionPct    float64 `json:"cap_position_pct"`
}

// ExchangeConfig carries the venue constraints sizing must respect
type ExchangeConfig struct {
	MinNotional  float64 `json:"min_notional"`
	MinQty       float64 `json:"min_qty"`
	QtyStep      float64 `json:"qty_step"`
	PriceTick    float64 `json:"price_tick"`
	TakerFeeRate float64 `json:"taker_fee_rate"`
	SlippageBps  float64 `json:"slippage_bps"`
	SpreadBps    float64 `json:"spread_bps"`
}

// AlertConfig controls the alert gate, rate limiter and deduper
type AlertConfig struct {
	MinConfidence       float64  `json:"min_confidence"`
	ExcludeHighRisk     bool     `json:"exclude_high_risk"`
	AllowedRegimes      []string `json:"allowed_regimes"` // empty allows all
	PerSymbolCooldownMs int64    `json:"per_symbol_cooldown_ms"`
	MaxPerMinute        int      `json:"max_per_minute"`
	MaxPerHour          int      `json:"max_per_hour"`
	DedupTTLMs          int64    `json:"dedup_ttl_ms"`
}

// CacheConfig controls result memoization
type CacheConfig struct {
	Enabled    bool  `json:"enabled"`
	TTLSeconds int64 `json:"ttl_seconds"`
}

// RedisConfig selects the shared result cache backend. When disabled
// the screener falls back to the in-process cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	AllowedOrigins string `json:"allowed_origins"`
}

type LoggingConfig struct {
	Level      string `json:"level"` // debug, info, warn, error
	JSONFormat bool   `json:"json_format"`
}

// Load reads config.json when present, applies environment overrides
// and validates the result. A missing file is fine, a malformed one is
// not.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.ScreenerConfig.CandleLimit < 0 {
		return fmt.Errorf("config: candle_limit must not be negative")
	}
	if c.ScreenerConfig.StructuralWeight < 0 || c.ScreenerConfig.IndicatorsWeight < 0 || c.ScreenerConfig.DerivativesWeight < 0 {
		return fmt.Errorf("config: layer weights must not be negative")
	}
	if c.RiskConfig.Equity < 0 {
		return fmt.Errorf("config: equity must not be negative")
	}
	if c.RiskConfig.RiskPerTradePct < 0 || c.RiskConfig.RiskPerTradePct > 100 {
		return fmt.Errorf("config: risk_per_trade_pct must be in [0, 100]")
	}
	if c.RiskConfig.CapPositionPct < 0 || c.RiskConfig.CapPositionPct > 100 {
		return fmt.Errorf("config: cap_position_pct must be in [0, 100]")
	}
	if c.AlertConfig.MinConfidence < 0 || c.AlertConfig.MinConfidence > 100 {
		return fmt.Errorf("config: alert min_confidence must be in [0, 100]")
	}
	if c.AlertConfig.PerSymbolCooldownMs < 0 || c.AlertConfig.MaxPerMinute < 0 || c.AlertConfig.MaxPerHour < 0 {
		return fmt.Errorf("config: alert rate limits must not be negative")
	}
	if c.ServerConfig.Port < 0 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.ServerConfig.Port)
	}
	switch c.LoggingConfig.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LoggingConfig.Level)
	}
	return nil
}

// PerSymbolCooldown returns the cooldown as a duration
func (a AlertConfig) PerSymbolCooldown() time.Duration {
	return time.Duration(a.PerSymbolCooldownMs) * time.Millisecond
}

// DedupTTL returns the dedup window as a duration
func (a AlertConfig) DedupTTL() time.Duration {
	return time.Duration(a.DedupTTLMs) * time.Millisecond
}

// CacheTTL returns the result cache TTL as a duration
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	// Screener
	cfg.ScreenerConfig.Timeframe = getEnvOrDefault("SCREENER_TIMEFRAME", defaultStr(cfg.ScreenerConfig.Timeframe, "1h"))
	cfg.ScreenerConfig.CandleLimit = getEnvIntOrDefault("SCREENER_CANDLE_LIMIT", defaultInt(cfg.ScreenerConfig.CandleLimit, 200))
	cfg.ScreenerConfig.StructuralWeight = getEnvFloatOrDefault("SCREENER_STRUCTURAL_WEIGHT", defaultFloat(cfg.ScreenerConfig.StructuralWeight, 1.0))
	cfg.ScreenerConfig.IndicatorsWeight = getEnvFloatOrDefault("SCREENER_INDICATORS_WEIGHT", defaultFloat(cfg.ScreenerConfig.IndicatorsWeight, 0.6))
	cfg.ScreenerConfig.DerivativesWeight = getEnvFloatOrDefault("SCREENER_DERIVATIVES_WEIGHT", defaultFloat(cfg.ScreenerConfig.DerivativesWeight, 0.5))
	if v := os.Getenv("SCREENER_SYNTHETIC_DATA"); v != "" {
		cfg.ScreenerConfig.SyntheticData = v == "true"
	}

	// Risk
	cfg.RiskConfig.Equity = getEnvFloatOrDefault("RISK_EQUITY", defaultFloat(cfg.RiskConfig.Equity, 10000))
	cfg.RiskConfig.RiskPerTradePct = getEnvFloatOrDefault("RISK_PER_TRADE_PCT", defaultFloat(cfg.RiskConfig.RiskPerTradePct, 1.0))
	cfg.RiskConfig.ATRStopMultiplier = getEnvFloatOrDefault("RISK_ATR_STOP_MULTIPLIER", defaultFloat(cfg.RiskConfig.ATRStopMultiplier, 1.5))
	cfg.RiskConfig.TP1RiskReward = getEnvFloatOrDefault("RISK_TP1_RR", defaultFloat(cfg.RiskConfig.TP1RiskReward, 1.5))
	cfg.RiskConfig.TP2RiskReward = getEnvFloatOrDefault("RISK_TP2_RR", defaultFloat(cfg.RiskConfig.TP2RiskReward, 3.0))
	cfg.RiskConfig.CapPositionPct = getEnvFloatOrDefault("RISK_CAP_POSITION_PCT", defaultFloat(cfg.RiskConfig.CapPositionPct, 25))

	// Exchange
	cfg.ExchangeConfig.MinNotional = getEnvFloatOrDefault("EXCHANGE_MIN_NOTIONAL", defaultFloat(cfg.ExchangeConfig.MinNotional, 10))
	cfg.ExchangeConfig.MinQty = getEnvFloatOrDefault("EXCHANGE_MIN_QTY", defaultFloat(cfg.ExchangeConfig.MinQty, 0.00001))
	cfg.ExchangeConfig.QtyStep = getEnvFloatOrDefault("EXCHANGE_QTY_STEP", defaultFloat(cfg.ExchangeConfig.QtyStep, 0.00001))
	cfg.ExchangeConfig.PriceTick = getEnvFloatOrDefault("EXCHANGE_PRICE_TICK", defaultFloat(cfg.ExchangeConfig.PriceTick, 0.01))
	cfg.ExchangeConfig.TakerFeeRate = getEnvFloatOrDefault("EXCHANGE_TAKER_FEE_RATE", defaultFloat(cfg.ExchangeConfig.TakerFeeRate, 0.0004))
	cfg.ExchangeConfig.SlippageBps = getEnvFloatOrDefault("EXCHANGE_SLIPPAGE_BPS", defaultFloat(cfg.ExchangeConfig.SlippageBps, 2))
	cfg.ExchangeConfig.SpreadBps = getEnvFloatOrDefault("EXCHANGE_SPREAD_BPS", defaultFloat(cfg.ExchangeConfig.SpreadBps, 1))

	// Alerts
	cfg.AlertConfig.MinConfidence = getEnvFloatOrDefault("ALERT_MIN_CONFIDENCE", defaultFloat(cfg.AlertConfig.MinConfidence, 50))
	if v := os.Getenv("ALERT_EXCLUDE_HIGH_RISK"); v != "" {
		cfg.AlertConfig.ExcludeHighRisk = v == "true"
	}
	cfg.AlertConfig.PerSymbolCooldownMs = getEnvInt64OrDefault("ALERT_PER_SYMBOL_COOLDOWN_MS", defaultInt64(cfg.AlertConfig.PerSymbolCooldownMs, (30*time.Minute).Milliseconds()))
	cfg.AlertConfig.MaxPerMinute = getEnvIntOrDefault("ALERT_MAX_PER_MINUTE", defaultInt(cfg.AlertConfig.MaxPerMinute, 5))
	cfg.AlertConfig.MaxPerHour = getEnvIntOrDefault("ALERT_MAX_PER_HOUR", defaultInt(cfg.AlertConfig.MaxPerHour, 30))
	cfg.AlertConfig.DedupTTLMs = getEnvInt64OrDefault("ALERT_DEDUP_TTL_MS", defaultInt64(cfg.AlertConfig.DedupTTLMs, (15*time.Minute).Milliseconds()))

	// Cache
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cfg.CacheConfig.Enabled = v == "true"
	}
	cfg.CacheConfig.TTLSeconds = getEnvInt64OrDefault("CACHE_TTL_SECONDS", defaultInt64(cfg.CacheConfig.TTLSeconds, 60))

	// Redis
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultStr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))

	// Notifications
	if v := os.Getenv("NOTIFICATIONS_ENABLED"); v != "" {
		cfg.NotificationConfig.Enabled = v == "true"
	}
	if v := os.Getenv("TELEGRAM_ENABLED"); v != "" {
		cfg.NotificationConfig.Telegram.Enabled = v == "true"
	}
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	if v := os.Getenv("DISCORD_ENABLED"); v != "" {
		cfg.NotificationConfig.Discord.Enabled = v == "true"
	}
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Server
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", defaultStr(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultStr(cfg.ServerConfig.AllowedOrigins, "*"))

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultStr(cfg.LoggingConfig.Level, "info"))
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LoggingConfig.JSONFormat = v == "true"
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultInt64(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

func defaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
