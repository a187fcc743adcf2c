package plugins

import (
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waveform-labs/pluginhost/internal/config"
	"github.com/waveform-labs/pluginhost/internal/hostservices"
	"github.com/waveform-labs/pluginhost/internal/logger"
	"github.com/waveform-labs/pluginhost/internal/models"
	"github.com/waveform-labs/pluginhost/internal/ratelimit"
)

// ErrorCallback receives a plugin name and the error a lifecycle hook
// produced, for whatever reporting the host application wants (log sink,
// devtools feed, metrics). It is never required to do anything; a nil
// callback is fine.
type ErrorCallback func(pluginName string, err error)

// Runtime is C12: the top-level object owning the plugins map and every
// shared registry, and the only thing outside this package a host
// application constructs directly.
type Runtime struct {
	mu      sync.RWMutex
	plugins map[string]*LoadedPlugin

	ledger    *PermissionLedger
	events    *EventBus
	ui        *UIRegistry
	resolvers *ResolverRegistry
	storage   *ScopedStorage
	crossPlugin *CrossPluginManager

	host hostservices.Services

	rateParams     map[ratelimit.Channel]ratelimit.Params
	handoffTimeout time.Duration
	pluginDir      string

	dispatchTable map[MethodName]dispatchHandler

	onError ErrorCallback
	sweeper *Sweeper
}

// NewRuntime wires every C2-C10 registry together. db may be nil, in which
// case scoped storage runs memory-only (no durable write path).
func NewRuntime(cfg *config.Config, host hostservices.Services, db *sql.DB, onError ErrorCallback) *Runtime {
	r := &Runtime{
		plugins:   make(map[string]*LoadedPlugin),
		ledger:    NewPermissionLedger(),
		events:    NewEventBus(),
		ui:        NewUIRegistry("now-playing", "sidebar", "settings-panel", "toolbar"),
		resolvers: NewResolverRegistry(),
		storage:   NewScopedStorage(db),
		host:      host,
		rateParams: map[ratelimit.Channel]ratelimit.Params{
			ratelimit.ChannelAPICalls:      {Capacity: cfg.APICallLimit.Capacity, RefillRate: cfg.APICallLimit.RefillRate},
			ratelimit.ChannelStorageWrites: {Capacity: cfg.StorageWriteLimit.Capacity, RefillRate: cfg.StorageWriteLimit.RefillRate},
		},
		handoffTimeout: cfg.HandoffTimeout,
		pluginDir:      cfg.PluginDir,
		onError:        onError,
	}
	r.crossPlugin = newCrossPluginManagerFromConfig(cfg.CrossPluginCache, r.lookupManifest)
	r.dispatchTable = buildDispatchTable()
	return r
}

// newCrossPluginManagerFromConfig selects C10's verdict-cache backend.
// Redis is used when configured; a DSN that fails to parse falls back to
// the in-process memory cache rather than failing runtime construction,
// since the cache is an optimization and the manifest walk it
// short-circuits is always correct. No connection is attempted here: an
// unreachable redis host is not detected at startup, and the redis cache
// then treats each failed call as a cache miss.
func newCrossPluginManagerFromConfig(cacheCfg config.CrossPluginCacheConfig, lookup ManifestLookup) *CrossPluginManager {
	if cacheCfg.Backend != "redis" || cacheCfg.RedisDSN == "" {
		return NewCrossPluginManager(lookup)
	}
	opts, err := redis.ParseURL(cacheCfg.RedisDSN)
	if err != nil {
		logger.Runtime().Warn().Err(err).Msg("invalid cross-plugin cache redis dsn, falling back to memory cache")
		return NewCrossPluginManager(lookup)
	}
	ttl := cacheCfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	client := redis.NewClient(opts)
	return NewCrossPluginManagerWithCache(lookup, newRedisCrossPluginCache(client, ttl))
}

// StartSweeper schedules cleanupDetachedResources on cronExpr. Call once
// after construction; Stop it via StopSweeper on shutdown.
func (r *Runtime) StartSweeper(cronExpr string) error {
	sweeper, err := NewSweeper(cronExpr, r.cleanupDetachedResources)
	if err != nil {
		return err
	}
	r.sweeper = sweeper
	return nil
}

// StopSweeper halts the periodic sweep, if one was started.
func (r *Runtime) StopSweeper() {
	if r.sweeper != nil {
		r.sweeper.Stop()
	}
}

func (r *Runtime) lookupManifest(pluginName string) *models.PluginManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lp, ok := r.plugins[pluginName]
	if !ok {
		return nil
	}
	return lp.Manifest
}

// Get returns the loaded-plugin record for name, for inspection (devtools,
// tests). The returned pointer must not be mutated by callers outside this
// package.
func (r *Runtime) Get(name string) (*LoadedPlugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lp, ok := r.plugins[name]
	return lp, ok
}

// TapEvents registers fn to observe every event the bus delivers, for the
// devtools inspector's live feed.
func (r *Runtime) TapEvents(fn func(eventName string, data interface{})) {
	r.events.Tap(fn)
}

// GrantedPermissions returns the permission set currently held by name.
func (r *Runtime) GrantedPermissions(name string) map[models.Permission]bool {
	return r.ledger.Granted(name)
}

// GrantedPermissionNames is GrantedPermissions flattened to the permission
// tags actually held, for JSON-friendly reporting on the devtools surface.
func (r *Runtime) GrantedPermissionNames(name string) []string {
	granted := r.ledger.Granted(name)
	names := make([]string, 0, len(granted))
	for perm, held := range granted {
		if held {
			names = append(names, string(perm))
		}
	}
	return names
}

// PluginSummary is a loaded plugin's record projected for read-only
// reporting, independent of devtools' own JSON shape.
type PluginSummary struct {
	Name        string
	SafeName    string
	Type        string
	Category    string
	Enabled     bool
	LoadedAt    time.Time
	Fingerprint string
	Permissions []string
}

// Describe returns a read-only summary of a loaded plugin, for devtools and
// other introspection callers that must not hold a *LoadedPlugin directly.
func (r *Runtime) Describe(name string) (PluginSummary, bool) {
	r.mu.RLock()
	lp, ok := r.plugins[name]
	r.mu.RUnlock()
	if !ok {
		return PluginSummary{}, false
	}
	return PluginSummary{
		Name:        lp.Manifest.Name,
		SafeName:    lp.Manifest.SafeName,
		Type:        string(lp.Manifest.Type),
		Category:    string(lp.Manifest.Category),
		Enabled:     lp.Enabled,
		LoadedAt:    lp.LoadedAt,
		Fingerprint: lp.Fingerprint,
		Permissions: r.GrantedPermissionNames(name),
	}, true
}

// List returns the names of every currently loaded plugin.
func (r *Runtime) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	return names
}

func (r *Runtime) reportError(pluginName string, err error) {
	if err == nil {
		return
	}
	if r.onError != nil {
		r.onError(pluginName, err)
	}
}
