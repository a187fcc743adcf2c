package plugins

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveform-labs/pluginhost/internal/config"
	"github.com/waveform-labs/pluginhost/internal/hostservices"
	"github.com/waveform-labs/pluginhost/internal/models"
)

func testRuntime() *Runtime {
	cfg := config.Default()
	cfg.APICallLimit = config.RateLimitConfig{Capacity: 100, RefillRate: 100}
	cfg.StorageWriteLimit = config.RateLimitConfig{Capacity: 100, RefillRate: 100}
	return NewRuntime(cfg, hostservices.NewDemo(), nil, nil)
}

func manifest(name string, perms ...models.Permission) *models.PluginManifest {
	grants := make(map[models.Permission]bool, len(perms))
	for _, p := range perms {
		grants[p] = true
	}
	return &models.PluginManifest{
		Name:        name,
		SafeName:    name,
		Version:     "1.0.0",
		Author:      "test",
		Type:        models.PluginTypeScript,
		Entry:       "index.js",
		Permissions: grants,
		Category:    models.CategoryUtility,
	}
}

// trackChangeListener is a minimal builtin plugin used to exercise S1: it
// subscribes to trackChange in Init and counts deliveries.
type trackChangeListener struct {
	BasePlugin
	received int32
}

func (p *trackChangeListener) Init(ctx *PluginContext) error {
	ctx.Capability.Events.On("trackChange", func(data interface{}) error {
		atomic.AddInt32(&p.received, 1)
		return nil
	})
	return nil
}

func TestRuntime_ScriptPluginLifecycle_S1(t *testing.T) {
	r := testRuntime()
	listener := &trackChangeListener{}
	RegisterBuiltinPlugin("kb", func() PluginHandler { return listener })

	m := manifest("kb", models.PermPlayerControl, models.PermPlayerRead)
	m.SafeName = "kb"
	require.NoError(t, r.LoadPlugin(m))
	require.Len(t, r.List(), 1)

	r.events.Emit("trackChange", map[string]interface{}{})
	assert.Equal(t, int32(1), atomic.LoadInt32(&listener.received))

	r.UnloadPlugin("kb")
	assert.Empty(t, r.List())

	r.events.Emit("trackChange", map[string]interface{}{})
	assert.Equal(t, int32(1), atomic.LoadInt32(&listener.received), "no listeners should remain after unload")
}

func TestRuntime_DoubleLoadRejected(t *testing.T) {
	r := testRuntime()
	RegisterBuiltinPlugin("dup", func() PluginHandler { return &BasePlugin{Name: "dup"} })
	m := manifest("dup")
	m.SafeName = "dup"

	require.NoError(t, r.LoadPlugin(m))
	err := r.LoadPlugin(m)
	assert.Error(t, err)
}

func TestRuntime_UnloadOfAbsentIsNoOp(t *testing.T) {
	r := testRuntime()
	assert.NotPanics(t, func() { r.UnloadPlugin("nope") })
}

func TestRuntime_UnloadCleansStorage_S5(t *testing.T) {
	r := testRuntime()
	RegisterBuiltinPlugin("p", func() PluginHandler { return &BasePlugin{Name: "p"} })
	m := manifest("p", models.PermScopedStorage)
	m.SafeName = "p"
	require.NoError(t, r.LoadPlugin(m))

	r.storage.Set("p", "a", "1")
	r.storage.Set("p", "b", "2")
	r.storage.Set("p", "c", "3")

	r.UnloadPlugin("p")

	require.NoError(t, r.LoadPlugin(m))
	for _, key := range []string{"a", "b", "c"} {
		_, found := r.storage.Get("p", key)
		assert.False(t, found)
	}
}

func TestRuntime_StreamResolutionFallback_S6(t *testing.T) {
	r := testRuntime()
	assert.Equal(t, "", r.resolvers.Resolve("remote", "id-1", nil))

	r.resolvers.Register("remote", "r", func(externalID string, options map[string]interface{}) (string, error) {
		return "https://example.test/" + externalID, nil
	})
	assert.Equal(t, "https://example.test/id-1", r.resolvers.Resolve("remote", "id-1", nil))
}

func TestRuntime_UnloadPurgesResolversAndUIEntries(t *testing.T) {
	r := testRuntime()
	RegisterBuiltinPlugin("res", func() PluginHandler { return &BasePlugin{Name: "res"} })
	m := manifest("res", models.PermUIInject)
	m.SafeName = "res"
	require.NoError(t, r.LoadPlugin(m))

	r.resolvers.Register("custom", "res", func(string, map[string]interface{}) (string, error) { return "x", nil })
	r.ui.Add("sidebar", "res", "<div>hi</div>", 10)

	r.UnloadPlugin("res")

	assert.Equal(t, "", r.resolvers.Resolve("custom", "id", nil))
	assert.Empty(t, r.ui.Entries("sidebar"))
}
