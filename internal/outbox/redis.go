package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	redisrepo "github.com/kirinyoku/tix-reserve/internal/repository/redis"
)

// RedisPublisher sends messages on the notifications pubsub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: redisrepo.ChannelNotifications()}
}

func (p *RedisPublisher) Publish(ctx context.Context, m Message) error {
	const op = "outbox.RedisPublisher.Publish"

	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.rdb.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisPublisher) Close() error { return nil }
