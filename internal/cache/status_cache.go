package cache

import (
	"context"
	"fmt"
	"time"

	"chatzone/internal/model"

	"github.com/redis/go-redis/v9"
)

// StatusCache keeps per-viewer message status in one hash per message.
// Viewer fields hold the status rank; "agg" holds the aggregate.
type StatusCache interface {
	Advance(ctx context.Context, messageID, viewerUserID string, status model.MessageStatus) (model.StatusTransition, error)
	Aggregate(ctx context.Context, messageID string) (model.MessageStatus, error)
}

var advanceStatusScript = redis.NewScript(`
local prev = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '1')
local agg = tonumber(redis.call('HGET', KEYS[1], 'agg') or '1')
local cur = prev
local want = tonumber(ARGV[2])
if want > prev then
  cur = want
  redis.call('HSET', KEYS[1], ARGV[1], cur)
  if cur > agg then
    agg = cur
    redis.call('HSET', KEYS[1], 'agg', agg)
  end
end
redis.call('EXPIRE', KEYS[1], ARGV[3])
return {prev, cur, agg}
`)

type statusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) StatusCache {
	return &statusCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *statusCache) key(messageID string) string {
	return fmt.Sprintf("msg:%s:status", messageID)
}

func (c *statusCache) Advance(ctx context.Context, messageID, viewerUserID string, status model.MessageStatus) (model.StatusTransition, error) {
	if !status.Valid() {
		return model.StatusTransition{}, fmt.Errorf("unknown status %q", status)
	}
	ttl := int64(c.ttl / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	ranks, err := advanceStatusScript.Run(ctx, c.client, []string{c.key(messageID)}, "v:"+viewerUserID, status.Rank(), ttl).Int64Slice()
	if err != nil {
		return model.StatusTransition{}, err
	}
	if len(ranks) != 3 {
		return model.StatusTransition{}, fmt.Errorf("advance status: unexpected reply %v", ranks)
	}
	return model.StatusTransition{
		Previous:  model.StatusFromRank(int(ranks[0])),
		Current:   model.StatusFromRank(int(ranks[1])),
		Aggregate: model.StatusFromRank(int(ranks[2])),
	}, nil
}

func (c *statusCache) Aggregate(ctx context.Context, messageID string) (model.MessageStatus, error) {
	rank, err := c.client.HGet(ctx, c.key(messageID), "agg").Int()
	if err == redis.Nil {
		return model.StatusSent, nil
	}
	if err != nil {
		return "", err
	}
	return model.StatusFromRank(rank), nil
}
