package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SWEEPBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SWEEPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.Account, "SWEEPBOT_ENGINE_ACCOUNT")
	setStr(&cfg.Engine.BaseAsset, "SWEEPBOT_ENGINE_BASE_ASSET")
	setStringSlice(&cfg.Engine.Pairs, "SWEEPBOT_ENGINE_PAIRS")
	setDuration(&cfg.Engine.PriceTickInterval, "SWEEPBOT_ENGINE_PRICE_TICK_INTERVAL")
	setDuration(&cfg.Engine.TradeTickInterval, "SWEEPBOT_ENGINE_TRADE_TICK_INTERVAL")
	setDuration(&cfg.Engine.MinTradeInterval, "SWEEPBOT_ENGINE_MIN_TRADE_INTERVAL")
	setInt(&cfg.Engine.MaxActiveTrades, "SWEEPBOT_ENGINE_MAX_ACTIVE_TRADES")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SWEEPBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.KeypairPath, "SWEEPBOT_WALLET_KEYPAIR_PATH")

	// ── Detector ──
	setDuration(&cfg.Detector.ThrottleInterval, "SWEEPBOT_DETECTOR_THROTTLE_INTERVAL")
	setFloat64(&cfg.Detector.InitialThresholdPct, "SWEEPBOT_DETECTOR_INITIAL_THRESHOLD_PCT")
	setFloat64(&cfg.Detector.MinConfidence, "SWEEPBOT_DETECTOR_MIN_CONFIDENCE")
	setInt(&cfg.Detector.MaxOpportunities, "SWEEPBOT_DETECTOR_MAX_OPPORTUNITIES")
	setFloat64(&cfg.Detector.NetworkFee, "SWEEPBOT_DETECTOR_NETWORK_FEE")

	// ── Sizing ──
	setFloat64(&cfg.Sizing.MinTradeSize, "SWEEPBOT_SIZING_MIN_TRADE_SIZE")

	// ── Risk ──
	setInt(&cfg.Risk.BaseSlippageBps, "SWEEPBOT_RISK_BASE_SLIPPAGE_BPS")

	// ── Executor ──
	setInt(&cfg.Executor.QuoteAttempts, "SWEEPBOT_EXECUTOR_QUOTE_ATTEMPTS")
	setInt(&cfg.Executor.SubmitAttempts, "SWEEPBOT_EXECUTOR_SUBMIT_ATTEMPTS")
	setDuration(&cfg.Executor.RetryBaseDelay, "SWEEPBOT_EXECUTOR_RETRY_BASE_DELAY")
	setFloat64(&cfg.Executor.MaxPriceDeviationPct, "SWEEPBOT_EXECUTOR_MAX_PRICE_DEVIATION_PCT")
	setBool(&cfg.Executor.IgnoreDeviation, "SWEEPBOT_EXECUTOR_IGNORE_DEVIATION")

	// ── Consolidate ──
	setFloat64(&cfg.Consolidate.DustFloor, "SWEEPBOT_CONSOLIDATE_DUST_FLOOR")
	setInt(&cfg.Consolidate.MaxAttempts, "SWEEPBOT_CONSOLIDATE_MAX_ATTEMPTS")

	// ── Ledger ──
	setFloat64(&cfg.Ledger.LowWaterMark, "SWEEPBOT_LEDGER_LOW_WATER_MARK")
	setFloat64(&cfg.Ledger.HighWaterMark, "SWEEPBOT_LEDGER_HIGH_WATER_MARK")
	setBool(&cfg.Ledger.Persist, "SWEEPBOT_LEDGER_PERSIST")

	// ── Venue / chain / feed ──
	setStr(&cfg.Venue.QuoteURL, "SWEEPBOT_VENUE_QUOTE_URL")
	setStr(&cfg.Venue.SwapURL, "SWEEPBOT_VENUE_SWAP_URL")
	setStr(&cfg.Chain.RPCURL, "SWEEPBOT_CHAIN_RPC_URL")
	setStr(&cfg.Feed.WsURL, "SWEEPBOT_FEED_WS_URL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SWEEPBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SWEEPBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SWEEPBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SWEEPBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SWEEPBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SWEEPBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SWEEPBOT_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "SWEEPBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SWEEPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWEEPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWEEPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SWEEPBOT_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SWEEPBOT_REDIS_TLS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SWEEPBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SWEEPBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SWEEPBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SWEEPBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SWEEPBOT_MODE")
	setStr(&cfg.LogLevel, "SWEEPBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
