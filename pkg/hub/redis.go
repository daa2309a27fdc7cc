package hub

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/SheaGuev/collabsync/pkg/logger"
)

// RedisBroker fans messages out through Redis pub/sub so rooms span hub
// instances.
type RedisBroker struct {
	client *redis.Client
	logger logger.Logger
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(client *redis.Client, log logger.Logger) *RedisBroker {
	if log == nil {
		log = logger.Default()
	}
	return &RedisBroker{client: client, logger: log}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, data []byte) error {
	return b.client.Publish(ctx, channel, data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string, fn func(data []byte)) (func(), error) {
	sub := b.client.Subscribe(ctx, channel)
	// Force the SUBSCRIBE round trip so a misconfigured Redis fails here
	// instead of silently delivering nothing.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			fn([]byte(msg.Payload))
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			b.logger.Warn("failed to close redis subscription", "channel", channel, "error", err)
		}
	}, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
