package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineKey   = "presence:online"
	presenceLastSeenKey = "presence:lastseen"
	presenceStampKey    = "presence:stamp"
)

// PresenceCache mirrors who is online and when users were last seen.
type PresenceCache interface {
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	LastSeen(ctx context.Context, userID string) (*time.Time, error)
	Reset(ctx context.Context) error
}

// Writes carry their own timestamp; an older write never overrides a newer
// one, whatever order the workers run them in.
var setPresenceScript = redis.NewScript(`
local prev = redis.call('HGET', KEYS[3], ARGV[1])
if prev and tonumber(prev) > tonumber(ARGV[3]) then
  return 0
end
redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
if ARGV[2] == '1' then
  redis.call('SADD', KEYS[1], ARGV[1])
else
  redis.call('SREM', KEYS[1], ARGV[1])
  redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
end
return 1
`)

type presenceCache struct {
	client *redis.Client
}

func NewPresenceCache(client *redis.Client) PresenceCache {
	return &presenceCache{
		client: client,
	}
}

func (c *presenceCache) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	flag := "0"
	if online {
		flag = "1"
	}
	keys := []string{presenceOnlineKey, presenceLastSeenKey, presenceStampKey}
	return setPresenceScript.Run(ctx, c.client, keys, userID, flag, at.UnixMilli()).Err()
}

func (c *presenceCache) IsOnline(ctx context.Context, userID string) (bool, error) {
	return c.client.SIsMember(ctx, presenceOnlineKey, userID).Result()
}

func (c *presenceCache) LastSeen(ctx context.Context, userID string) (*time.Time, error) {
	raw, err := c.client.HGet(ctx, presenceLastSeenKey, userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	at := time.UnixMilli(ms).UTC()
	return &at, nil
}

// Reset clears the online set. Presence does not survive a restart, so
// the server calls this on boot.
func (c *presenceCache) Reset(ctx context.Context) error {
	return c.client.Del(ctx, presenceOnlineKey, presenceStampKey).Err()
}
