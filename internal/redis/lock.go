package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func trackingLockKey(rideID string) string {
	return fmt.Sprintf("lock:tracking:%s", rideID)
}

// AcquireTrackingLock attempts to acquire the tracking lock for a ride on
// behalf of owner. Returns true if the lock was acquired or owner already
// holds it, false if another owner holds it.
func (s *LockStore) AcquireTrackingLock(ctx context.Context, rideID, owner string, ttl time.Duration) (bool, error) {
	key := trackingLockKey(rideID)

	ok, err := s.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	holder, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if holder != owner {
		return false, nil
	}

	return true, s.client.Expire(ctx, key, ttl).Err()
}

// ReleaseTrackingLock releases the tracking lock if owner still holds it.
func (s *LockStore) ReleaseTrackingLock(ctx context.Context, rideID, owner string) error {
	return releaseScript.Run(ctx, s.client, []string{trackingLockKey(rideID)}, owner).Err()
}
