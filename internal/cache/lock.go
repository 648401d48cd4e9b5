package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock scripts grounded on alextanhongpin-core/dsync/lock's acquire/
// release pattern and dsync/cache's CompareAndDelete script: acquisition
// is an atomic SET key owner_id NX PX ttl; release is a CAS delete keyed
// on owner_id equality so a late releaser can never free a lock someone
// else now holds (spec section 4.2's lock protocol).

var lockAcquire = redis.NewScript(`
	if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
		return 1
	end
	return 0
`)

func (r *RemoteCache) LockAcquire(ctx context.Context, key, ownerID string, ttl time.Duration) (bool, error) {
	res, err := lockAcquire.Run(ctx, r.client, []string{key}, ownerID, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

var lockRelease = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

func (r *RemoteCache) LockRelease(ctx context.Context, key, ownerID string) error {
	return lockRelease.Run(ctx, r.client, []string{key}, ownerID).Err()
}

// LockWait polls for a key's lock to clear, retrying every retryDelay up
// to timeout — the Serializable consistency mode's reader-side wait (spec
// section 4.2: "readers hitting a locked key wait up to LockWaitTimeoutMs,
// checking every LockRetryDelayMs").
func (r *RemoteCache) LockWait(ctx context.Context, key string, timeout, retryDelay time.Duration) (bool, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(retryDelay)
	defer ticker.Stop()

	for {
		exists, err := r.client.Exists(ctx, key).Result()
		if err != nil {
			return false, err
		}
		if exists == 0 {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			return false, nil
		case <-ticker.C:
		}
	}
}
