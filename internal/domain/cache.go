package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest observed prices, keyed by
// pair symbol. Used by dashboard consumers; the engine itself reads prices
// from the live feed.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// EventBus publishes engine events for external consumers, both as ephemeral
// pub/sub messages and as durable stream entries.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
