package admission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/medication-finder/internal/core/domain"
)

const defaultKeyPrefix = "rate-limiter"

// consumeScript increments the window counter and arms its expiry on first use.
var consumeScript = redis.NewScript(`
local current = redis.call("INCRBY", KEYS[1], ARGV[1])
if current == tonumber(ARGV[1]) then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisGate is a fixed-window counter shared by every API replica.
type RedisGate struct {
	client    redis.UniversalClient
	quota     Quota
	keyPrefix string
}

func NewRedisGate(client redis.UniversalClient, quota Quota, keyPrefix string) *RedisGate {
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisGate{client: client, quota: quota.normalize(), keyPrefix: keyPrefix}
}

// NewRedisClient opens a client and checks connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (g *RedisGate) Admit(ctx context.Context, key string, cost int) error {
	if cost <= 0 {
		cost = 1
	}
	redisKey := g.keyPrefix + ":" + key

	res, err := consumeScript.Run(ctx, g.client, []string{redisKey}, cost, g.quota.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "admission", fmt.Errorf("redis consume: %w", err))
	}
	if len(res) != 2 {
		return domain.WrapError(domain.ErrTemporary, "admission", fmt.Errorf("unexpected redis reply %v", res))
	}

	consumed, ttlMillis := res[0], res[1]
	if consumed > int64(g.quota.Points) {
		wait := g.quota.Window
		if ttlMillis > 0 {
			wait = time.Duration(ttlMillis) * time.Millisecond
		}
		return &domain.AdmissionError{Key: key, RetryAfter: retryAfterSeconds(wait)}
	}
	return nil
}
