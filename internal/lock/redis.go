package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a SET NX PX lock shared by every API instance.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewRedis builds a distributed locker. ttl caps how long a crashed holder blocks a key.
func NewRedis(client *redis.Client, ttl, wait time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: client, prefix: "gym:lock:", ttl: ttl, wait: wait, poll: 25 * time.Millisecond}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	full := r.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// released independently of the request context
				relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := releaseScript.Run(relCtx, r.client, []string{full}, token).Err(); err != nil {
					zap.L().Warn("lock release failed", zap.String("key", full), zap.Error(err))
				}
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrBusy
		}
		select {
		case <-time.After(r.poll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
