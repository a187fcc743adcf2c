package plugins

import (
	"sync"

	"github.com/waveform-labs/pluginhost/internal/models"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
)

// crossPluginCache caches a previously-computed allow/deny verdict for a
// (caller, target, method) triple so repeated cross-plugin calls don't
// re-walk the caller's manifest every time. A verdict is invalidated
// wholesale for a plugin name on unload, since a reloaded plugin may carry
// a different manifest.
type crossPluginCache interface {
	get(key string) (allowed bool, found bool)
	set(key string, allowed bool)
	invalidate(pluginName string)
}

func cacheKey(caller, target, method string) string {
	return caller + "\x00" + target + "\x00" + method
}

// memoryCrossPluginCache is the default backend: an in-process map guarded
// by a mutex. Good enough for a single-host plugin runtime;
// NewCrossPluginManagerWithCache takes a redis-backed implementation instead
// when the host wants the verdict cache shared across processes (see
// crossplugin_cache_redis.go and newCrossPluginManagerFromConfig).
type memoryCrossPluginCache struct {
	mu      sync.RWMutex
	entries map[string]bool
}

func newMemoryCrossPluginCache() *memoryCrossPluginCache {
	return &memoryCrossPluginCache{entries: make(map[string]bool)}
}

func (c *memoryCrossPluginCache) get(key string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *memoryCrossPluginCache) set(key string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = allowed
}

// invalidate drops every cached verdict naming pluginName as either caller
// or target. The map is small in practice (bounded by loaded-plugin count
// squared times declared methods) so a linear sweep is fine.
func (c *memoryCrossPluginCache) invalidate(pluginName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		caller, target, _ := splitCacheKey(key)
		if caller == pluginName || target == pluginName {
			delete(c.entries, key)
		}
	}
}

func splitCacheKey(key string) (caller, target, method string) {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	parts = append(parts, key[start:])
	if len(parts) != 3 {
		return "", "", ""
	}
	return parts[0], parts[1], parts[2]
}

// ManifestLookup resolves a plugin's validated manifest by name, or nil if
// the plugin is not currently loaded. Runtime's plugins map satisfies this.
type ManifestLookup func(pluginName string) *models.PluginManifest

// CrossPluginManager is C10: it decides whether caller may invoke method on
// target, consulting caller's own manifest (cross_plugin_access is a
// caller-declared grant, not something target consents to at runtime) and
// caching the verdict.
type CrossPluginManager struct {
	lookup ManifestLookup
	cache  crossPluginCache
}

// NewCrossPluginManager builds a manager backed by an in-memory cache.
func NewCrossPluginManager(lookup ManifestLookup) *CrossPluginManager {
	return &CrossPluginManager{lookup: lookup, cache: newMemoryCrossPluginCache()}
}

// NewCrossPluginManagerWithCache builds a manager over an explicit cache
// backend, e.g. the redis-backed one for a multi-process host.
func NewCrossPluginManagerWithCache(lookup ManifestLookup, cache crossPluginCache) *CrossPluginManager {
	return &CrossPluginManager{lookup: lookup, cache: cache}
}

// Allowed reports whether caller may invoke method on target. A plugin may
// always call its own handlers. Otherwise caller's manifest must carry a
// cross_plugin_access entry naming target and method.
func (m *CrossPluginManager) Allowed(caller, target, method string) error {
	if caller == target {
		return nil
	}

	key := cacheKey(caller, target, method)
	if allowed, found := m.cache.get(key); found {
		if allowed {
			return nil
		}
		return apperr.CrossPluginDenied(caller, target, method)
	}

	manifest := m.lookup(caller)
	allowed := manifest != nil && manifestGrants(manifest, target, method)
	m.cache.set(key, allowed)
	if !allowed {
		return apperr.CrossPluginDenied(caller, target, method)
	}
	return nil
}

// crossPluginWildcard grants every request-channel name target registers,
// for the common case of a plugin depending wholesale on another plugin's
// request API rather than enumerating each channel name it calls. A "*"
// entry matches every method on its target, dispatch method names
// included; internal/manifest accepts either "*" or a name from C8's
// closed dispatch vocabulary.
const crossPluginWildcard = "*"

func manifestGrants(manifest *models.PluginManifest, target, method string) bool {
	for _, access := range manifest.CrossPluginAccess {
		if access.Target != target {
			continue
		}
		for _, m := range access.Methods {
			if m == method || m == crossPluginWildcard {
				return true
			}
		}
	}
	return false
}

// Invalidate drops cached verdicts touching pluginName, called by C12 on
// unload so a subsequent reload with a different manifest is re-evaluated.
func (m *CrossPluginManager) Invalidate(pluginName string) {
	m.cache.invalidate(pluginName)
}
