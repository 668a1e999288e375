// Package feed maintains a live price snapshot for the configured pairs over
// a WebSocket market-data connection.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solsweep/sweepbot/internal/domain"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	handshakeTimeout = 15 * time.Second

	maxReconnectDelay = 60 * time.Second
)

// tickMessage is one inbound price update.
type tickMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TsMs   int64   `json:"ts"`
}

// subscribeCommand is the outbound subscription request.
type subscribeCommand struct {
	Op    string   `json:"op"`
	Pairs []string `json:"pairs"`
}

// Feed keeps the latest observed price per pair. It reconnects with capped
// exponential backoff and never fails permanently; a dropped connection only
// means stale prices until resubscription.
type Feed struct {
	wsURL            string
	pairs            []string
	reconnectBackoff time.Duration
	cache            domain.PriceCache
	logger           *slog.Logger

	mu     sync.RWMutex
	latest map[string]float64
	asOf   map[string]time.Time
}

// New creates a Feed for the given pair symbols. cache may be nil; when set,
// every tick is mirrored into it best-effort.
func New(wsURL string, pairs []string, reconnectBackoff time.Duration, cache domain.PriceCache, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:            wsURL,
		pairs:            pairs,
		reconnectBackoff: reconnectBackoff,
		cache:            cache,
		logger:           logger.With(slog.String("component", "feed")),
		latest:           make(map[string]float64, len(pairs)),
		asOf:             make(map[string]time.Time, len(pairs)),
	}
}

// Snapshot returns a copy of the latest prices, keyed by pair symbol. Pairs
// with no tick yet are absent.
func (f *Feed) Snapshot() map[string]float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]float64, len(f.latest))
	for sym, price := range f.latest {
		out[sym] = price
	}
	return out
}

// LastTick returns when the given pair last updated.
func (f *Feed) LastTick(symbol string) (time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ts, ok := f.asOf[symbol]
	return ts, ok
}

// Run connects and consumes ticks until the context is cancelled, redialing
// on every connection failure.
func (f *Feed) Run(ctx context.Context) error {
	delay := f.reconnectBackoff
	for {
		err := f.connectAndConsume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed connection lost, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// connectAndConsume dials, subscribes, and reads ticks until the connection
// breaks or the context ends.
func (f *Feed) connectAndConsume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := conn.WriteJSON(subscribeCommand{Op: "subscribe", Pairs: f.pairs}); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("feed connected", slog.Int("pairs", len(f.pairs)))

	// Close the connection when the context ends so ReadMessage unblocks,
	// and keep the peer alive with pings meanwhile.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", domain.ErrConnectionLost)
		}

		var tick tickMessage
		if err := json.Unmarshal(raw, &tick); err != nil {
			f.logger.Debug("feed: dropping malformed tick", slog.String("error", err.Error()))
			continue
		}
		if tick.Symbol == "" || tick.Price <= 0 {
			continue
		}
		f.apply(ctx, tick)
	}
}

// apply records one tick and mirrors it into the cache when configured.
func (f *Feed) apply(ctx context.Context, tick tickMessage) {
	ts := time.UnixMilli(tick.TsMs)
	if tick.TsMs == 0 {
		ts = time.Now()
	}

	f.mu.Lock()
	f.latest[tick.Symbol] = tick.Price
	f.asOf[tick.Symbol] = ts
	f.mu.Unlock()

	if f.cache != nil {
		if err := f.cache.SetPrice(ctx, tick.Symbol, tick.Price, ts); err != nil {
			f.logger.Debug("price cache write failed", slog.String("error", err.Error()))
		}
	}
}
