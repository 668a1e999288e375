package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/solsweep/sweepbot/internal/cache/redis"
	"github.com/solsweep/sweepbot/internal/chain"
	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/detector"
	"github.com/solsweep/sweepbot/internal/domain"
	"github.com/solsweep/sweepbot/internal/feed"
	"github.com/solsweep/sweepbot/internal/ledger"
	"github.com/solsweep/sweepbot/internal/notify"
	"github.com/solsweep/sweepbot/internal/risk"
	"github.com/solsweep/sweepbot/internal/store/postgres"
	"github.com/solsweep/sweepbot/internal/tracker"
	"github.com/solsweep/sweepbot/internal/venue/jupiter"
	"github.com/solsweep/sweepbot/internal/wallet"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Chain    *chain.Client
	Venue    *jupiter.Client
	Signer   *wallet.Signer
	Feed     *feed.Feed
	Tracker  *tracker.Tracker
	Detector *detector.Detector
	Risk     *risk.Validator
	Ledger   *ledger.Ledger
	Pairs    []domain.TradingPair

	PriceCache domain.PriceCache
	EventBus   domain.EventBus
	PnLStore   domain.PnLStore
	Notifier   *notify.Notifier
	Sink       domain.EventSink
}

// eventChannel and eventStream are the Redis destinations for engine events.
const (
	eventChannel = "sweepbot:events"
	eventStream  = "sweepbot:event-log"
)

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	pairs := make([]domain.TradingPair, 0, len(cfg.Engine.Pairs))
	symbols := make([]string, 0, len(cfg.Engine.Pairs))
	for _, sym := range cfg.Engine.Pairs {
		pair, ok := domain.ParsePair(sym)
		if !ok {
			cleanup()
			return nil, nil, fmt.Errorf("wire: malformed pair %q", sym)
		}
		pairs = append(pairs, pair)
		symbols = append(symbols, sym)
	}
	deps.Pairs = pairs

	// --- Redis (price cache + event bus) ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.EventBus = redis.NewEventBus(redisClient)

	// --- PostgreSQL (only when PnL persistence is enabled) ---
	if cfg.Ledger.Persist {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.PnLStore = postgres.NewPnLStore(pgClient.Pool())
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Sink = fanOutSink(ctx, deps.Notifier, deps.EventBus, logger)

	// --- Chain + venue ---
	chainClient, err := chain.New(ctx, cfg.Chain.RPCURL, cfg.Chain.Timeout.Duration, chain.DefaultTokens(), logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	deps.Chain = chainClient
	deps.Venue = jupiter.New(cfg.Venue.QuoteURL, cfg.Venue.SwapURL, cfg.Venue.Timeout.Duration, chainClient, logger)

	// --- Wallet (trade mode only; the key is a hard requirement there) ---
	if strings.ToLower(cfg.Mode) == "trade" {
		signer, err := wallet.Load(cfg.Wallet)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		deps.Signer = signer
	}

	// --- Feed + core components ---
	deps.Feed = feed.New(cfg.Feed.WsURL, symbols, cfg.Feed.ReconnectBackoff.Duration, deps.PriceCache, logger)
	deps.Tracker = tracker.New(tracker.DefaultWindowSize)

	deps.Ledger = ledger.New(cfg.Ledger, cfg.Detector.InitialThresholdPct, deps.PnLStore, deps.Sink, logger)
	if err := deps.Ledger.Restore(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: restore ledger: %w", err)
	}

	rates := detector.NewSuccessRates(cfg.Detector.SuccessRates, cfg.Detector.SuccessRateFallback)
	deps.Detector = detector.New(
		cfg.Detector, cfg.Sizing, cfg.Engine.BaseAsset, pairs,
		deps.Tracker, rates, deps.Ledger, logger,
	)
	deps.Risk = risk.New(cfg.Risk, cfg.AssetClass, logger)

	return deps, cleanup, nil
}

// fanOutSink forwards engine events to the notifier and, JSON-encoded, to the
// Redis event bus. Delivery is best-effort on a background goroutine.
func fanOutSink(ctx context.Context, notifier *notify.Notifier, bus domain.EventBus, logger *slog.Logger) domain.EventSink {
	notifySink := notifier.Sink()
	return domain.EventSinkFunc(func(event domain.Event) {
		notifySink.Emit(event)
		go func() {
			payload, err := json.Marshal(event)
			if err != nil {
				return
			}
			if err := bus.Publish(ctx, eventChannel, payload); err != nil {
				logger.Debug("event publish failed", slog.String("error", err.Error()))
			}
			if err := bus.StreamAppend(ctx, eventStream, payload); err != nil {
				logger.Debug("event stream append failed", slog.String("error", err.Error()))
			}
		}()
	})
}
