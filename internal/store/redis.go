package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds the client shared by the punch queue and the fighter locks.
type Redis struct {
	Client *redis.Client
}

// NewRedis accepts either host:port or a redis:// URL carrying credentials and db.
// Timeouts stay short so a lock or queue call never holds a punch request for long.
func NewRedis(addr string) (*Redis, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return &Redis{Client: redis.NewClient(opts)}, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// Healthy adapts Ping to a health check.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
