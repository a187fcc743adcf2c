package plugins

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveform-labs/pluginhost/internal/models"
)

func newTestRedisCache(t *testing.T) *redisCrossPluginCache {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return newRedisCrossPluginCache(client, time.Minute)
}

func TestRedisCrossPluginCache_SetThenGetRoundTrips(t *testing.T) {
	c := newTestRedisCache(t)

	c.set("a\x00b\x00doThing", true)
	allowed, found := c.get("a\x00b\x00doThing")
	require.True(t, found)
	assert.True(t, allowed)
}

func TestRedisCrossPluginCache_InvalidateClearsEntriesForCallerAndTarget(t *testing.T) {
	c := newTestRedisCache(t)

	c.set(cacheKey("a", "b", "doThing"), true)
	c.set(cacheKey("b", "c", "otherThing"), false)

	c.invalidate("b")

	_, found := c.get(cacheKey("a", "b", "doThing"))
	assert.False(t, found, "entry naming b as target must be dropped")
	_, found = c.get(cacheKey("b", "c", "otherThing"))
	assert.False(t, found, "entry naming b as caller must be dropped")
}

func TestRedisCrossPluginCache_InvalidateLeavesUnrelatedPluginsCached(t *testing.T) {
	c := newTestRedisCache(t)

	c.set(cacheKey("a", "b", "doThing"), true)
	c.set(cacheKey("x", "y", "otherThing"), true)

	c.invalidate("b")

	_, found := c.get(cacheKey("x", "y", "otherThing"))
	assert.True(t, found, "invalidating b must not touch x/y's cached verdict")
}

// TestCrossPluginManager_InvalidateClearsCachedVerdict_RedisBacked mirrors
// crossplugin_test.go's in-memory TestCrossPluginManager_InvalidateClearsCachedVerdict
// but runs the manager over the redis-backed cache, per reviewer note: that
// test previously only exercised NewCrossPluginManager.
func TestCrossPluginManager_InvalidateClearsCachedVerdict_RedisBacked(t *testing.T) {
	manifests := map[string]*models.PluginManifest{
		"a": manifestWithAccess("a", "b", "doThing"),
	}
	m := NewCrossPluginManagerWithCache(
		func(name string) *models.PluginManifest { return manifests[name] },
		newTestRedisCache(t),
	)

	require.NoError(t, m.Allowed("a", "b", "doThing"))
	delete(manifests, "a")
	m.Invalidate("a")

	err := m.Allowed("a", "b", "doThing")
	assert.Error(t, err)
}
