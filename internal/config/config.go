// Package config defines the top-level configuration for the sweep bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/solsweep/sweepbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SWEEPBOT_* environment variables.
type Config struct {
	Engine      EngineConfig      `toml:"engine"`
	Detector    DetectorConfig    `toml:"detector"`
	Sizing      SizingConfig      `toml:"sizing"`
	Risk        RiskConfig        `toml:"risk"`
	Executor    ExecutorConfig    `toml:"executor"`
	Consolidate ConsolidateConfig `toml:"consolidate"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Venue       VenueConfig       `toml:"venue"`
	Chain       ChainConfig       `toml:"chain"`
	Feed        FeedConfig        `toml:"feed"`
	Wallet      WalletConfig      `toml:"wallet"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// EngineConfig holds the top-level loop parameters.
type EngineConfig struct {
	Account           string   `toml:"account"`
	BaseAsset         string   `toml:"base_asset"`
	Pairs             []string `toml:"pairs"`
	PriceTickInterval Duration `toml:"price_tick_interval"`
	TradeTickInterval Duration `toml:"trade_tick_interval"`
	MinTradeInterval  Duration `toml:"min_trade_interval"`
	MaxActiveTrades   int      `toml:"max_active_trades"`
}

// DetectorConfig holds opportunity-detection parameters.
type DetectorConfig struct {
	ThrottleInterval    Duration `toml:"throttle_interval"`
	SignalDebounce      Duration `toml:"signal_debounce"`
	DebounceOverridePct float64  `toml:"debounce_override_pct"`
	// InitialThresholdPct seeds the adaptive threshold; the ledger tunes it
	// within [Ledger.MinThresholdPct, Ledger.MaxThresholdPct] afterwards.
	InitialThresholdPct      float64  `toml:"initial_threshold_pct"`
	AccelerationDivisor      float64  `toml:"acceleration_divisor"`
	AccelerationFactor       float64  `toml:"acceleration_factor"`
	HighValueFactor          float64  `toml:"high_value_factor"`
	HighValuePairs           []string `toml:"high_value_pairs"`
	VolStepOnePct            float64  `toml:"vol_step_one_pct"`
	VolStepTwoPct            float64  `toml:"vol_step_two_pct"`
	BaseDowntrendMovePct     float64  `toml:"base_downtrend_move_pct"`
	BaseDowntrendMinPairs    int      `toml:"base_downtrend_min_pairs"`
	BaseDowntrendOverridePct float64  `toml:"base_downtrend_override_pct"`
	MinConfidence            float64  `toml:"min_confidence"`
	MinConfidenceBaseInput   float64  `toml:"min_confidence_base_input"`
	MinPotentialProfit       float64  `toml:"min_potential_profit"`
	ProfitDustFloor          float64  `toml:"profit_dust_floor"`
	MaxOpportunities         int      `toml:"max_opportunities"`
	// NetworkFee is the fixed per-transaction network fee in base-asset units.
	NetworkFee          float64            `toml:"network_fee"`
	SuccessRates        map[string]float64 `toml:"success_rates"`
	SuccessRateFallback float64            `toml:"success_rate_fallback"`
}

// SizingConfig holds trade-sizing parameters.
type SizingConfig struct {
	MinTradeSize          float64 `toml:"min_trade_size"`
	PositionFractionBase  float64 `toml:"position_fraction_base"`
	PositionFractionOther float64 `toml:"position_fraction_other"`
}

// RiskConfig holds the profit-to-slippage validation tables.
type RiskConfig struct {
	BaseSlippageBps int `toml:"base_slippage_bps"`
	// AssetClasses maps asset symbol to class; unlisted assets are "volatile".
	AssetClasses map[string]string `toml:"asset_classes"`
	// ProfitFractions maps asset class to the required profit fraction of the
	// requested slippage tolerance.
	ProfitFractions map[string]float64 `toml:"profit_fractions"`
	// SlippageModifiers maps asset class to a tolerance multiplier.
	SlippageModifiers map[string]float64 `toml:"slippage_modifiers"`
}

// ExecutorConfig holds trade-execution retry and validation parameters.
type ExecutorConfig struct {
	QuoteAttempts        int      `toml:"quote_attempts"`
	SubmitAttempts       int      `toml:"submit_attempts"`
	RetryBaseDelay       Duration `toml:"retry_base_delay"`
	MaxPriceDeviationPct float64  `toml:"max_price_deviation_pct"`
	IgnoreDeviation      bool     `toml:"ignore_deviation"`
	ConfirmTimeout       Duration `toml:"confirm_timeout"`
	ConfirmPollAttempts  int      `toml:"confirm_poll_attempts"`
	ConfirmPollInterval  Duration `toml:"confirm_poll_interval"`
}

// ConsolidateConfig holds balance-sweep parameters.
type ConsolidateConfig struct {
	DustFloor          float64  `toml:"dust_floor"`
	BalanceUseFraction float64  `toml:"balance_use_fraction"`
	MaxAttempts        int      `toml:"max_attempts"`
	SlippageStepBps    int      `toml:"slippage_step_bps"`
	NetworkFee         float64  `toml:"network_fee"`
	RetryBaseDelay     Duration `toml:"retry_base_delay"`
}

// LedgerConfig holds PnL retention and threshold-adaptation parameters.
type LedgerConfig struct {
	Retention        Duration `toml:"retention"`
	LowWaterMark     float64  `toml:"low_water_mark"`
	HighWaterMark    float64  `toml:"high_water_mark"`
	ThresholdStepPct float64  `toml:"threshold_step_pct"`
	MinThresholdPct  float64  `toml:"min_threshold_pct"`
	MaxThresholdPct  float64  `toml:"max_threshold_pct"`
	Persist          bool     `toml:"persist"`
}

// VenueConfig holds the swap aggregator endpoints.
type VenueConfig struct {
	QuoteURL string   `toml:"quote_url"`
	SwapURL  string   `toml:"swap_url"`
	Timeout  Duration `toml:"timeout"`
}

// ChainConfig holds ledger RPC parameters.
type ChainConfig struct {
	RPCURL  string   `toml:"rpc_url"`
	Timeout Duration `toml:"timeout"`
}

// FeedConfig holds the websocket price feed parameters.
type FeedConfig struct {
	WsURL            string   `toml:"ws_url"`
	ReconnectBackoff Duration `toml:"reconnect_backoff"`
}

// WalletConfig holds signing key material. Exactly one source must be set for
// trading mode; there is no runtime fallback chain.
type WalletConfig struct {
	PrivateKey  string `toml:"private_key"`
	KeypairPath string `toml:"keypair_path"`
}

// PostgresConfig holds PostgreSQL connection parameters for PnL persistence.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Duration wraps time.Duration with TOML string decoding (e.g. "5m", "30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			BaseAsset:         "SOL",
			Pairs:             []string{"SOL/USDC", "RAY/SOL", "JUP/SOL", "BONK/SOL"},
			PriceTickInterval: Duration{3 * time.Second},
			TradeTickInterval: Duration{5 * time.Second},
			MinTradeInterval:  Duration{8 * time.Second},
			MaxActiveTrades:   3,
		},
		Detector: DetectorConfig{
			ThrottleInterval:         Duration{2 * time.Second},
			SignalDebounce:           Duration{10 * time.Second},
			DebounceOverridePct:      0.2,
			InitialThresholdPct:      0.05,
			AccelerationDivisor:      3.0,
			AccelerationFactor:       1.2,
			HighValueFactor:          1.1,
			HighValuePairs:           []string{"SOL/USDC", "JUP/SOL"},
			VolStepOnePct:            0.3,
			VolStepTwoPct:            0.5,
			BaseDowntrendMovePct:     -0.3,
			BaseDowntrendMinPairs:    2,
			BaseDowntrendOverridePct: 0.8,
			MinConfidence:            50,
			MinConfidenceBaseInput:   65,
			MinPotentialProfit:       0.001,
			ProfitDustFloor:          0.0002,
			MaxOpportunities:         2,
			NetworkFee:               0.000005,
			SuccessRates: map[string]float64{
				"SOL/USDC": 0.85,
				"JUP/SOL":  0.75,
				"RAY/SOL":  0.70,
				"BONK/SOL": 0.60,
			},
			SuccessRateFallback: 0.6,
		},
		Sizing: SizingConfig{
			MinTradeSize:          0.01,
			PositionFractionBase:  0.25,
			PositionFractionOther: 0.50,
		},
		Risk: RiskConfig{
			BaseSlippageBps: 50,
			AssetClasses: map[string]string{
				"SOL":  string(domain.AssetClassBase),
				"USDC": string(domain.AssetClassStable),
				"USDT": string(domain.AssetClassStable),
				"RAY":  string(domain.AssetClassVolatile),
				"JUP":  string(domain.AssetClassVolatile),
				"BONK": string(domain.AssetClassNew),
			},
			ProfitFractions: map[string]float64{
				string(domain.AssetClassBase):     0.75,
				string(domain.AssetClassStable):   0.70,
				string(domain.AssetClassVolatile): 0.85,
				string(domain.AssetClassNew):      0.90,
			},
			SlippageModifiers: map[string]float64{
				string(domain.AssetClassBase):     1.0,
				string(domain.AssetClassStable):   0.8,
				string(domain.AssetClassVolatile): 1.5,
				string(domain.AssetClassNew):      2.0,
			},
		},
		Executor: ExecutorConfig{
			QuoteAttempts:        3,
			SubmitAttempts:       3,
			RetryBaseDelay:       Duration{500 * time.Millisecond},
			MaxPriceDeviationPct: 10.0,
			IgnoreDeviation:      false,
			ConfirmTimeout:       Duration{30 * time.Second},
			ConfirmPollAttempts:  10,
			ConfirmPollInterval:  Duration{2 * time.Second},
		},
		Consolidate: ConsolidateConfig{
			DustFloor:          0.005,
			BalanceUseFraction: 0.95,
			MaxAttempts:        3,
			SlippageStepBps:    150,
			NetworkFee:         0.000005,
			RetryBaseDelay:     Duration{500 * time.Millisecond},
		},
		Ledger: LedgerConfig{
			Retention:        Duration{24 * time.Hour},
			LowWaterMark:     0.005,
			HighWaterMark:    0.05,
			ThresholdStepPct: 0.01,
			MinThresholdPct:  0.02,
			MaxThresholdPct:  0.5,
			Persist:          true,
		},
		Venue: VenueConfig{
			QuoteURL: "https://quote-api.jup.ag/v6",
			SwapURL:  "https://quote-api.jup.ag/v6",
			Timeout:  Duration{15 * time.Second},
		},
		Chain: ChainConfig{
			RPCURL:  "https://api.mainnet-beta.solana.com",
			Timeout: Duration{20 * time.Second},
		},
		Feed: FeedConfig{
			ReconnectBackoff: Duration{2 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "sweepbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_settled", "consolidation_completed", "threshold_adjusted"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.BaseAsset == "" {
		errs = append(errs, "engine: base_asset must not be empty")
	}
	if len(c.Engine.Pairs) == 0 {
		errs = append(errs, "engine: at least one pair must be configured")
	}
	for _, sym := range c.Engine.Pairs {
		if _, ok := domain.ParsePair(sym); !ok {
			errs = append(errs, fmt.Sprintf("engine: malformed pair %q (want BASE/QUOTE)", sym))
		}
	}
	if c.Engine.PriceTickInterval.Duration <= 0 {
		errs = append(errs, "engine: price_tick_interval must be positive")
	}
	if c.Engine.TradeTickInterval.Duration <= 0 {
		errs = append(errs, "engine: trade_tick_interval must be positive")
	}
	if c.Engine.MaxActiveTrades < 1 {
		errs = append(errs, "engine: max_active_trades must be >= 1")
	}

	// Wallet: required for trade mode, single source, no fallback chase.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Engine.Account == "" {
			errs = append(errs, "engine: account must be set for trade mode")
		}
		if c.Wallet.PrivateKey == "" && c.Wallet.KeypairPath == "" {
			errs = append(errs, "wallet: either private_key or keypair_path must be set for trade mode")
		}
		if c.Wallet.PrivateKey != "" && c.Wallet.KeypairPath != "" {
			errs = append(errs, "wallet: private_key and keypair_path are mutually exclusive")
		}
	}

	// Detector
	if c.Detector.ThrottleInterval.Duration <= 0 {
		errs = append(errs, "detector: throttle_interval must be positive")
	}
	if c.Detector.InitialThresholdPct <= 0 {
		errs = append(errs, "detector: initial_threshold_pct must be > 0")
	}
	if c.Detector.MaxOpportunities < 1 {
		errs = append(errs, "detector: max_opportunities must be >= 1")
	}
	for sym, rate := range c.Detector.SuccessRates {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Sprintf("detector: success_rates[%s] must be in [0,1], got %v", sym, rate))
		}
	}

	// Sizing
	if c.Sizing.MinTradeSize <= 0 {
		errs = append(errs, "sizing: min_trade_size must be > 0")
	}
	if c.Sizing.PositionFractionBase <= 0 || c.Sizing.PositionFractionBase > 1 {
		errs = append(errs, "sizing: position_fraction_base must be in (0,1]")
	}
	if c.Sizing.PositionFractionOther <= 0 || c.Sizing.PositionFractionOther > 1 {
		errs = append(errs, "sizing: position_fraction_other must be in (0,1]")
	}

	// Risk
	if c.Risk.BaseSlippageBps <= 0 {
		errs = append(errs, "risk: base_slippage_bps must be > 0")
	}
	for class, frac := range c.Risk.ProfitFractions {
		if frac <= 0 || frac > 1 {
			errs = append(errs, fmt.Sprintf("risk: profit_fractions[%s] must be in (0,1], got %v", class, frac))
		}
	}

	// Executor
	if c.Executor.QuoteAttempts < 1 {
		errs = append(errs, "executor: quote_attempts must be >= 1")
	}
	if c.Executor.SubmitAttempts < 1 {
		errs = append(errs, "executor: submit_attempts must be >= 1")
	}
	if c.Executor.ConfirmPollAttempts < 1 {
		errs = append(errs, "executor: confirm_poll_attempts must be >= 1")
	}

	// Consolidate
	if c.Consolidate.BalanceUseFraction <= 0 || c.Consolidate.BalanceUseFraction > 1 {
		errs = append(errs, "consolidate: balance_use_fraction must be in (0,1]")
	}
	if c.Consolidate.MaxAttempts < 1 {
		errs = append(errs, "consolidate: max_attempts must be >= 1")
	}

	// Ledger
	if c.Ledger.MinThresholdPct <= 0 {
		errs = append(errs, "ledger: min_threshold_pct must be > 0")
	}
	if c.Ledger.MaxThresholdPct < c.Ledger.MinThresholdPct {
		errs = append(errs, "ledger: max_threshold_pct must be >= min_threshold_pct")
	}
	if c.Detector.InitialThresholdPct < c.Ledger.MinThresholdPct ||
		c.Detector.InitialThresholdPct > c.Ledger.MaxThresholdPct {
		errs = append(errs, "detector: initial_threshold_pct must lie within [ledger.min_threshold_pct, ledger.max_threshold_pct]")
	}
	if c.Ledger.ThresholdStepPct <= 0 {
		errs = append(errs, "ledger: threshold_step_pct must be > 0")
	}

	// Venue / chain
	if c.Venue.QuoteURL == "" {
		errs = append(errs, "venue: quote_url must not be empty")
	}
	if c.Venue.SwapURL == "" {
		errs = append(errs, "venue: swap_url must not be empty")
	}
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}

	// Postgres (only when persistence is enabled)
	if c.Ledger.Persist {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// AssetClass resolves the configured class for an asset symbol. The engine's
// base asset is always classed as base; unlisted assets default to volatile.
func (c *Config) AssetClass(asset string) domain.AssetClass {
	if asset == c.Engine.BaseAsset {
		return domain.AssetClassBase
	}
	if class, ok := c.Risk.AssetClasses[asset]; ok {
		return domain.AssetClass(class)
	}
	return domain.AssetClassVolatile
}
