package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crosspost/domain/model"
)

// PublishStatusCache keeps terminal publish results around so the status
// endpoint can answer dashboard polling without hitting postgres. Redis is
// optional; with a nil client every method is a no-op / miss.
type PublishStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPublishStatusCache(client *redis.Client) *PublishStatusCache {
	return &PublishStatusCache{client: client, ttl: 24 * time.Hour}
}

func (c *PublishStatusCache) key(userID, videoID string) string {
	return fmt.Sprintf("publish:%s:%s", userID, videoID)
}

func (c *PublishStatusCache) Set(ctx context.Context, userID, videoID string, results map[string]model.PublishResult) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(userID, videoID), data, c.ttl).Err()
}

func (c *PublishStatusCache) Get(ctx context.Context, userID, videoID string) (map[string]model.PublishResult, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(userID, videoID)).Bytes()
	if err != nil {
		return nil, false
	}
	var results map[string]model.PublishResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}
