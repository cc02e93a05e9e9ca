package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// streamMaxLen is the approximate maximum length of the status stream,
// enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// StatusBus implements domain.StatusBus. Each payload goes out on Pub/Sub
// for live listeners and is appended to a capped stream for late readers.
type StatusBus struct {
	rdb *redis.Client
}

// NewStatusBus creates a StatusBus backed by the given Client.
func NewStatusBus(c *Client) *StatusBus {
	return &StatusBus{rdb: c.Underlying()}
}

// Publish sends payload on channel and appends it to the status stream.
func (sb *StatusBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	args := &redis.XAddArgs{
		Stream: statusStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", statusStream, err)
	}
	return nil
}

var _ domain.StatusBus = (*StatusBus)(nil)
