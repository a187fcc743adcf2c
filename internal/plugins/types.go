// Package plugins implements the sandboxed plugin runtime: the permission
// ledger (C2), rate limiter wiring (C3), scoped storage (C4), typed event
// bus (C5), UI slot registry (C6), stream-resolver registry (C7), host
// dispatcher (C8), API surface factory (C9), cross-plugin permission
// manager (C10), loader (C11) and lifecycle manager (C12).
package plugins

import (
	"time"

	"github.com/waveform-labs/pluginhost/internal/models"
	"github.com/waveform-labs/pluginhost/internal/ratelimit"
)

// PluginContext is threaded through every lifecycle hook a plugin instance
// implements, giving it back its own name and capability object.
type PluginContext struct {
	PluginName string
	Capability *Capability
}

// PluginHandler is the interface a loaded plugin instance satisfies.
// BasePlugin supplies no-op defaults for every hook so a plugin need only
// override what it uses.
type PluginHandler interface {
	Init(ctx *PluginContext) error
	Start(ctx *PluginContext) error
	Stop(ctx *PluginContext) error
	Destroy(ctx *PluginContext) error
}

// PluginFactory builds a fresh PluginHandler instance. Compiled-in plugins
// register a factory with RegisterBuiltinPlugin at init() time; it stands
// in for the handoff registration a script or native plugin performs at
// load time (see loader.go).
type PluginFactory func() PluginHandler

// LoadedPlugin is the authoritative record the lifecycle manager keeps for
// every plugin from successful load until destruction.
type LoadedPlugin struct {
	Manifest    *models.PluginManifest
	Instance    PluginHandler
	Capability  *Capability
	Enabled     bool
	Granted     map[models.Permission]bool
	LoadedAt    time.Time
	Limiter     *ratelimit.Limiter
	Fingerprint string // native plugins only, see loader_native.go
}
