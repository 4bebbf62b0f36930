package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Client is the Redis connection the prompt queue runs on
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient dials redisURL (redis:// form) and pings it before returning.
// Processes that already hold a connection should use NewClientFromRedis.
func NewClient(redisURL string, logger *slog.Logger) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opt.Addr, err)
	}

	logger.Info("Prompt queue connected", "addr", opt.Addr, "db", opt.DB)
	return NewClientFromRedis(rdb, logger), nil
}

// NewClientFromRedis shares an existing connection; Close on the result closes it
func NewClientFromRedis(rdb *redis.Client, logger *slog.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
