package notification

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

const LiveEventsChannel = "live-events"

// Publisher broadcasts live events to connected frontends.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisPublisher struct {
	client *redis.Client
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, []byte) error { return nil }

// NewPublisher publishes over redis pub/sub when a client is configured.
func NewPublisher(client *redis.Client) Publisher {
	if client == nil {
		return noopPublisher{}
	}
	return &redisPublisher{client: client}
}
