package redis

import (
	"context"
	"fmt"

	"github.com/SkynetNext/flow-gateway/internal/config"
	"github.com/SkynetNext/flow-gateway/internal/events"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Client is a Redis client wrapper that publishes flow events.
// Each event is PUBLISHed on <prefix>flows:events and pushed onto the
// capped list <prefix>flows:recent.
type Client struct {
	rdb         redis.UniversalClient
	prefix      string
	recentLimit int64
}

// NewClient creates a new Redis client
func NewClient(cfg *config.RedisConfig, recentLimit int64) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return newClient(rdb, cfg.KeyPrefix, recentLimit)
}

func newClient(rdb redis.UniversalClient, prefix string, recentLimit int64) *Client {
	if recentLimit <= 0 {
		recentLimit = 1000
	}
	return &Client{
		rdb:         rdb,
		prefix:      prefix,
		recentLimit: recentLimit,
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// key generates full key with prefix
func (c *Client) key(suffix string) string {
	return c.prefix + suffix
}

// EventsChannel is the pub/sub channel events are published on
func (c *Client) EventsChannel() string {
	return c.key("flows:events")
}

// RecentKey is the list holding the most recent events, newest first
func (c *Client) RecentKey() string {
	return c.key("flows:recent")
}

// Publish implements events.Sink in a single pipeline round trip
func (c *Client) Publish(ctx context.Context, batch []events.Event) error {
	if len(batch) == 0 {
		return nil
	}

	payloads, err := encodeBatch(batch)
	if err != nil {
		return err
	}

	channel, recent := c.EventsChannel(), c.RecentKey()
	pipe := c.rdb.Pipeline()
	for _, p := range payloads {
		pipe.Publish(ctx, channel, p)
	}
	pipe.LPush(ctx, recent, payloads...)
	pipe.LTrim(ctx, recent, 0, c.recentLimit-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish %d flow events: %w", len(batch), err)
	}
	return nil
}

// Recent returns up to n of the most recent events as raw JSON, newest first
func (c *Client) Recent(ctx context.Context, n int64) ([]json.RawMessage, error) {
	if n <= 0 || n > c.recentLimit {
		n = c.recentLimit
	}
	data, err := c.rdb.LRange(ctx, c.RecentKey(), 0, n-1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recent flow events: %w", err)
	}

	out := make([]json.RawMessage, len(data))
	for i, d := range data {
		out[i] = json.RawMessage(d)
	}
	return out, nil
}

// encodeBatch returns one JSON document per event, as LPush arguments
func encodeBatch(batch []events.Event) ([]interface{}, error) {
	out := make([]interface{}, len(batch))
	for i := range batch {
		data, err := json.Marshal(batch[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode flow event: %w", err)
		}
		out[i] = data
	}
	return out, nil
}
