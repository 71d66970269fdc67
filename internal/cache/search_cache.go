package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/models"
)

const searchPrefix = "search:"

// SearchCache stores search responses in Redis keyed by normalized query
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// Connect parses a redis:// URL and pings the server
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewSearchCache creates a search cache over an existing client
func NewSearchCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *SearchCache {
	return &SearchCache{client: client, ttl: ttl, logger: logger}
}

func searchKey(key string) string {
	return searchPrefix + key
}

// Get returns the cached response, or nil on a miss
func (c *SearchCache) Get(ctx context.Context, key string) (*models.SearchResponse, error) {
	data, err := c.client.Get(ctx, searchKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read search cache: %w", err)
	}

	var resp models.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// stale format; treat as a miss
		c.logger.WithError(err).WithField("key", key).Warn("Discarding unreadable search cache entry")
		return nil, nil
	}
	return &resp, nil
}

// Set stores a response for the configured TTL
func (c *SearchCache) Set(ctx context.Context, key string, resp *models.SearchResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode search response: %w", err)
	}
	if err := c.client.Set(ctx, searchKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached search
func (c *SearchCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, searchPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan search cache: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to clear search cache: %w", err)
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.WithField("keys", removed).Debug("Search cache invalidated")
	return nil
}
