package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL          = 10 * time.Minute
	DefaultPollInterval = 250 * time.Millisecond
	defaultPrefix       = "resume-ranker:lock:"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Redis is a distributed Locker built on SET NX with an owner token.
type Redis struct {
	client       redis.UniversalClient
	ttl          time.Duration
	pollInterval time.Duration
	prefix       string
	logger       *zap.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.pollInterval = d }
}

func NewRedis(client redis.UniversalClient, logger *zap.Logger, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Redis{
		client:       client,
		ttl:          DefaultTTL,
		pollInterval: DefaultPollInterval,
		prefix:       defaultPrefix,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	lockKey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res, err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Int64()
		if err != nil {
			r.logger.Warn("releasing lock failed", zap.String("key", key), zap.Error(err))
			return
		}
		if res == 0 {
			r.logger.Warn("lock expired before release", zap.String("key", key), zap.Duration("ttl", r.ttl))
		}
	}, nil
}
