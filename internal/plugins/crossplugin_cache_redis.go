package plugins

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waveform-labs/pluginhost/internal/logger"
)

// redisCrossPluginCache backs CrossPluginManager's verdict cache with redis
// instead of an in-process map, for a host that runs more than one plugin
// runtime process against a shared permission model. A cache miss or redis
// error is treated as "not found" rather than propagated — the manager
// falls back to re-evaluating the caller's manifest, so redis being down
// degrades to uncached operation instead of breaking dispatch.
type redisCrossPluginCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func newRedisCrossPluginCache(client *redis.Client, ttl time.Duration) *redisCrossPluginCache {
	return &redisCrossPluginCache{client: client, prefix: "pluginhost:xplugin:", ttl: ttl}
}

func (c *redisCrossPluginCache) get(key string) (bool, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return false, false
	}
	if err != nil {
		logger.Dispatch().Warn().Err(err).Msg("cross-plugin cache read failed, falling back to manifest walk")
		return false, false
	}
	return val == "1", true
}

func (c *redisCrossPluginCache) set(key string, allowed bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	val := "0"
	if allowed {
		val = "1"
	}
	if err := c.client.Set(ctx, c.prefix+key, val, c.ttl).Err(); err != nil {
		logger.Dispatch().Warn().Err(err).Msg("cross-plugin cache write failed")
		return
	}

	caller, target, _ := splitCacheKey(key)
	pipe := c.client.Pipeline()
	pipe.SAdd(ctx, c.indexKey(caller), key)
	pipe.Expire(ctx, c.indexKey(caller), c.ttl)
	if target != caller {
		pipe.SAdd(ctx, c.indexKey(target), key)
		pipe.Expire(ctx, c.indexKey(target), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Dispatch().Warn().Err(err).Msg("cross-plugin cache index write failed")
	}
}

func (c *redisCrossPluginCache) indexKey(pluginName string) string {
	return c.prefix + "byplugin:" + pluginName
}

// invalidate drops every cached verdict naming pluginName as either caller
// or target, mirroring memoryCrossPluginCache's linear sweep via a reverse
// index (indexKey) maintained alongside each set. The index set itself
// shares the verdict TTL, so a crashed process's stale index self-expires
// rather than leaking keys forever.
func (c *redisCrossPluginCache) invalidate(pluginName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	idx := c.indexKey(pluginName)
	keys, err := c.client.SMembers(ctx, idx).Result()
	if err != nil {
		logger.Dispatch().Warn().Err(err).Msg("cross-plugin cache invalidate read failed")
		return
	}
	if len(keys) == 0 {
		return
	}

	del := make([]string, 0, len(keys))
	for _, k := range keys {
		del = append(del, c.prefix+k)
	}
	del = append(del, idx)
	if err := c.client.Del(ctx, del...).Err(); err != nil {
		logger.Dispatch().Warn().Err(err).Msg("cross-plugin cache invalidate delete failed")
	}
}
