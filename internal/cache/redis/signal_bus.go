package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// channelPrefix namespaces bus channels so multiple bots can share one
// server.
const channelPrefix = "arbbot:"

// SignalBus implements domain.SignalBus on Redis Pub/Sub. Payloads travel as
// JSON.
type SignalBus struct {
	rdb *redis.Client
}

var _ domain.SignalBus = (*SignalBus)(nil)

func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

func channelFor(typ domain.EventType) string {
	return channelPrefix + string(typ)
}

// Publish marshals the payload and fans it out on the event type's channel.
func (sb *SignalBus) Publish(ctx context.Context, typ domain.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redis: marshal %s event: %w", typ, err)
	}
	if err := sb.rdb.Publish(ctx, channelFor(typ), data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", typ, err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads for one event type. The cancel
// function tears the subscription down; the channel closes once the context
// ends or cancel is called.
func (sb *SignalBus) Subscribe(ctx context.Context, typ domain.EventType) (<-chan []byte, func(), error) {
	pubsub := sb.rdb.Subscribe(ctx, channelFor(typ))

	// Wait for the subscription confirmation so callers never race their
	// first publish.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: subscribe %s: %w", typ, err)
	}

	ctx, cancel := context.WithCancel(ctx)
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
	return out, cancel, nil
}
