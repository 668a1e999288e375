package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/solsweep/sweepbot/internal/domain"
)

// streamMaxLen caps the engine event stream, enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// EventBus implements domain.EventBus using Redis Pub/Sub for ephemeral
// delivery and Redis Streams for durable, ordered history.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

var _ domain.EventBus = (*EventBus)(nil)

// Publish sends a raw payload to a Pub/Sub channel.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends a payload to a capped Redis stream.
func (b *EventBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// Subscribe opens a Pub/Sub subscription and returns a channel of raw
// payloads. The subscription closes with the context.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.rdb.Subscribe(ctx, channel)

	// Receive the subscription confirmation before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
