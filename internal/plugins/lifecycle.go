package plugins

import (
	"fmt"
	"time"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/logger"
	"github.com/waveform-labs/pluginhost/internal/models"
	"github.com/waveform-labs/pluginhost/internal/ratelimit"
)

// LoadPlugin is C12's loadPlugin transition: absent -> loaded (implicitly
// enabled). It rejects a duplicate name, loads the artifact via C11, grants
// permissions, builds the capability object, and calls the instance's Init
// hook. A plugin that fails Init stays in the map — its capability object
// is already live and events may already be flowing, so tearing it back
// down is a host policy decision, not this runtime's to make.
func (r *Runtime) LoadPlugin(manifest *models.PluginManifest) error {
	r.mu.Lock()
	if _, exists := r.plugins[manifest.Name]; exists {
		r.mu.Unlock()
		return apperr.PluginAlreadyLoaded(manifest.Name)
	}
	r.plugins[manifest.Name] = &LoadedPlugin{Manifest: manifest, LoadedAt: time.Now()}
	r.mu.Unlock()

	r.ledger.Grant(manifest.Name, manifest.Permissions)
	limiter := ratelimit.New(r.rateParams)

	instance, fingerprint, err := loadPluginArtifact(manifest, r.pluginDir, r.handoffTimeout)
	if err != nil {
		r.mu.Lock()
		delete(r.plugins, manifest.Name)
		r.mu.Unlock()
		r.ledger.Revoke(manifest.Name)
		return err
	}

	capability := r.buildCapability(manifest.Name)

	r.mu.Lock()
	lp := r.plugins[manifest.Name]
	lp.Instance = instance
	lp.Capability = capability
	lp.Limiter = limiter
	lp.Fingerprint = fingerprint
	lp.Enabled = true
	r.mu.Unlock()

	ctx := &PluginContext{PluginName: manifest.Name, Capability: capability}
	r.safeCall(manifest.Name, "init", func() error { return instance.Init(ctx) })

	return nil
}

// EnablePlugin flips Enabled on and calls the instance's Start hook.
func (r *Runtime) EnablePlugin(name string) error {
	lp, ctx, ok := r.markEnabled(name, true)
	if !ok {
		return apperr.PluginNotFound(name)
	}
	r.safeCall(name, "start", func() error { return lp.Instance.Start(ctx) })
	return nil
}

// DisablePlugin flips Enabled off and calls the instance's Stop hook.
func (r *Runtime) DisablePlugin(name string) error {
	lp, ctx, ok := r.markEnabled(name, false)
	if !ok {
		return apperr.PluginNotFound(name)
	}
	r.safeCall(name, "stop", func() error { return lp.Instance.Stop(ctx) })
	return nil
}

func (r *Runtime) markEnabled(name string, enabled bool) (*LoadedPlugin, *PluginContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.plugins[name]
	if !ok {
		return nil, nil, false
	}
	lp.Enabled = enabled
	return lp, &PluginContext{PluginName: name, Capability: lp.Capability}, true
}

// UnloadPlugin is C12's destructive path: a strict, twelve-step teardown
// where every step runs regardless of whether an earlier one panicked or
// errored, so later resources are still released. Unloading a name that
// isn't loaded is a no-op, not an error.
func (r *Runtime) UnloadPlugin(name string) {
	r.mu.Lock()
	lp, ok := r.plugins[name]
	r.mu.Unlock()
	if !ok {
		return
	}

	ctx := &PluginContext{PluginName: name, Capability: lp.Capability}

	// 1. stop, for script plugins only
	if lp.Manifest.Type == models.PluginTypeScript {
		r.safeStep(name, "stop", func() { r.safeCall(name, "stop", func() error { return lp.Instance.Stop(ctx) }) })
	}

	// 2. destroy
	r.safeStep(name, "destroy", func() { r.safeCall(name, "destroy", func() error { return lp.Instance.Destroy(ctx) }) })

	// 3. event subscriptions
	r.safeStep(name, "remove listeners", func() {
		r.events.RemovePluginListeners(name)
		r.events.RemovePluginRequestHandlers(name)
	})

	// 4. UI entries
	r.safeStep(name, "remove ui entries", func() { r.ui.RemoveAllByOwner(name) })

	// 5. scoped storage, synchronously cleared (the in-memory half is
	// synchronous already; the durable half is enqueued and not awaited,
	// matching the rest of C4's async-write design)
	r.safeStep(name, "clear storage", func() { r.storage.Clear(name) })

	// 6. stream resolvers
	r.safeStep(name, "unregister resolvers", func() { r.resolvers.UnregisterAllByOwner(name) })

	// 7. rate limiters
	r.safeStep(name, "reset rate limiter", func() {
		if lp.Limiter != nil {
			lp.Limiter.Reset()
		}
	})

	// 8. script-plugin handoff/legacy-global teardown
	r.safeStep(name, "purge legacy global", func() { PurgeLegacyGlobal(lp.Manifest.SafeName) })

	// 9. native plugin handle: nothing to release explicitly — Go's plugin
	// package has no Close/unload primitive, so dropping the reference
	// below (step 11) is the whole of this step.

	// 10. permissions
	r.safeStep(name, "revoke permissions", func() { r.ledger.Revoke(name) })

	// 11. plugin record
	r.mu.Lock()
	delete(r.plugins, name)
	r.mu.Unlock()

	// 12. cross-plugin cache
	r.safeStep(name, "invalidate cross-plugin cache", func() { r.crossPlugin.Invalidate(name) })
}

// safeStep runs one teardown step with panic recovery, logging but never
// propagating, so the remaining steps still execute.
func (r *Runtime) safeStep(pluginName, step string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Runtime().Warn().Str("plugin", pluginName).Str("step", step).
				Interface("panic", rec).Msg("unload step panicked")
		}
	}()
	fn()
}

// safeCall runs one lifecycle hook, catching a panic and logging (and
// reporting via the configured error callback) both a panic and a returned
// error, matching the spec's "catch via defer recover() / error return"
// rule for Init/Start/Stop/Destroy.
func (r *Runtime) safeCall(pluginName, hook string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%s panicked: %v", hook, rec)
			logger.Runtime().Warn().Str("plugin", pluginName).Str("hook", hook).Err(err).Msg("lifecycle hook failed")
			r.reportError(pluginName, err)
		}
	}()
	if err := fn(); err != nil {
		logger.Runtime().Warn().Str("plugin", pluginName).Str("hook", hook).Err(err).Msg("lifecycle hook returned error")
		r.reportError(pluginName, err)
	}
}
