package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PartitionLock serializes writer commits against a single
// (academic_year, semester_type) partition using a Redis SET NX PX lock,
// so two writers targeting the same partition never run their replace or
// clear at the same time.
type PartitionLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPartitionLock constructs a PartitionLock backed by the given client.
func NewPartitionLock(client *redis.Client, ttl time.Duration) *PartitionLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PartitionLock{client: client, ttl: ttl}
}

// heldLock is a token for a lock acquired by Acquire; Release only clears
// the key if it is still held by the same token, so an expired-then-stolen
// lock is never released out from under its new holder.
type heldLock struct {
	key   string
	token string
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Acquire attempts to take the lock for the partition key, returning ok=false
// immediately if another writer already holds it (no blocking/retry — the
// caller surfaces ErrLockHeld rather than queueing).
func (l *PartitionLock) Acquire(ctx context.Context, partitionKey string) (*heldLock, bool, error) {
	key := lockKey(partitionKey)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire partition lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &heldLock{key: key, token: token}, true, nil
}

// Release clears the lock if still held by this token.
func (l *PartitionLock) Release(ctx context.Context, lock *heldLock) error {
	if lock == nil {
		return nil
	}
	if err := l.client.Eval(ctx, releaseScript, []string{lock.key}, lock.token).Err(); err != nil {
		return fmt.Errorf("release partition lock: %w", err)
	}
	return nil
}

func lockKey(partitionKey string) string {
	return "timetable:writer-lock:" + partitionKey
}
