package events

import (
	"context"
	"fmt"

	"resale-market/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UserChannel is the pub/sub channel a client subscribes to for its own events
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:events", userID)
}

// RedisPublisher pushes events to per-user Redis channels
type RedisPublisher struct {
	rdb redis.Cmdable
}

func NewRedisPublisher(rdb redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.rdb.Publish(ctx, UserChannel(event.UserID), body).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
