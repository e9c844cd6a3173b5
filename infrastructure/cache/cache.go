package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewCache connects to redis. A nil client is a valid degraded mode; callers
// wrap it and no-op.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
