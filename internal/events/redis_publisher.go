package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Publisher sends a raw message to a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisFanout forwards every event to a Redis channel as JSON.
type RedisFanout struct {
	client  Publisher
	channel string
}

// NewRedisFanout builds the fanout. *redis.Client satisfies Publisher.
func NewRedisFanout(client Publisher, channel string) *RedisFanout {
	return &RedisFanout{client: client, channel: channel}
}

// Handle is an EventHandler.
func (f *RedisFanout) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, body).Err()
}
