package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// The lease is deleted only while the key still holds its token, so a lease
// that expired and was taken by another instance is left alone.
const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var errInvalidLease = errors.New("invalid_charge_lease")

// chargeLocks hands out per-user leases on the charge lock key.
type chargeLocks struct {
	client  *redis.Client
	release *redis.Script
	ttl     time.Duration
}

// lease is one held charge lock.
type lease struct {
	key   string
	token string
}

func newChargeLocks(client *redis.Client, ttl time.Duration) *chargeLocks {
	if client == nil {
		return nil
	}
	return &chargeLocks{
		client:  client,
		release: redis.NewScript(leaseReleaseScript),
		ttl:     ttl,
	}
}

func chargeLockKey(userID string) string {
	return fmt.Sprintf(keyChargeLock, strings.TrimSpace(userID))
}

// tryAcquire returns nil without error when another holder has the lease.
func (l *chargeLocks) tryAcquire(ctx context.Context, userID string) (*lease, error) {
	if strings.TrimSpace(userID) == "" || l.ttl <= 0 {
		return nil, errInvalidLease
	}
	held := &lease{key: chargeLockKey(userID), token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, held.key, held.token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return held, nil
}

func (l *chargeLocks) releaseLease(ctx context.Context, held *lease) error {
	if held == nil {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{held.key}, held.token).Err()
}
