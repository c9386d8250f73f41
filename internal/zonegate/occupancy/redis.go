package occupancy

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// admitScript performs the capacity check and increment server-side so the
// admit stays atomic even with several zonegate instances sharing one
// redis.  ARGV[1] < 0 means unbounded.
var admitScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if limit >= 0 and count >= limit then
  return 0
end
redis.call('INCR', KEYS[1])
return 1
`)

// releaseScript decrements without going below zero.
var releaseScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count <= 0 then
  redis.call('SET', KEYS[1], '0')
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisTracker stores occupancy counters in redis, one key per zone.
type RedisTracker struct {
	client *redis.Client
	prefix string
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client, prefix: "zonegate:occupancy:"}
}

func (t *RedisTracker) key(zoneID string) string {
	return t.prefix + zoneID
}

func (t *RedisTracker) TryAdmit(ctx context.Context, zoneID string, limit *int) (bool, error) {
	arg := -1
	if limit != nil {
		arg = *limit
	}

	n, err := admitScript.Run(ctx, t.client, []string{t.key(zoneID)}, arg).Int()
	if err != nil {
		return false, fmt.Errorf("occupancy admit %s: %w", zoneID, err)
	}
	return n == 1, nil
}

func (t *RedisTracker) Release(ctx context.Context, zoneID string) error {
	if err := releaseScript.Run(ctx, t.client, []string{t.key(zoneID)}).Err(); err != nil {
		return fmt.Errorf("occupancy release %s: %w", zoneID, err)
	}
	return nil
}

func (t *RedisTracker) Count(ctx context.Context, zoneID string) (int, error) {
	n, err := t.client.Get(ctx, t.key(zoneID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("occupancy count %s: %w", zoneID, err)
	}
	return n, nil
}
