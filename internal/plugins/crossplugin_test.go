package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/models"
)

func manifestWithAccess(name, target string, methods ...string) *models.PluginManifest {
	return &models.PluginManifest{
		Name: name,
		CrossPluginAccess: []models.CrossPluginAccess{
			{Target: target, Methods: methods},
		},
	}
}

func TestCrossPluginManager_SamePluginAlwaysAllowed(t *testing.T) {
	m := NewCrossPluginManager(func(string) *models.PluginManifest { return nil })
	assert.NoError(t, m.Allowed("a", "a", "anything"))
}

func TestCrossPluginManager_DeclaredAccessAllowed(t *testing.T) {
	manifests := map[string]*models.PluginManifest{
		"a": manifestWithAccess("a", "b", "doThing"),
	}
	m := NewCrossPluginManager(func(name string) *models.PluginManifest { return manifests[name] })
	assert.NoError(t, m.Allowed("a", "b", "doThing"))
}

func TestCrossPluginManager_UndeclaredAccessDeniedWithActionableMessage(t *testing.T) {
	manifests := map[string]*models.PluginManifest{
		"a": manifestWithAccess("a", "b", "doThing"),
	}
	m := NewCrossPluginManager(func(name string) *models.PluginManifest { return manifests[name] })

	err := m.Allowed("a", "c", "otherThing")
	require.Error(t, err)
	appErr, ok := err.(*apperr.AppError)
	require.True(t, ok)
	assert.Equal(t, "CROSS_PLUGIN_ACCESS_DENIED", appErr.Code)
	assert.Contains(t, appErr.Message, "cross_plugin_access")
	assert.Contains(t, appErr.Message, "otherThing")
}

func TestCrossPluginManager_VerdictIsCached(t *testing.T) {
	calls := 0
	manifests := map[string]*models.PluginManifest{
		"a": manifestWithAccess("a", "b", "doThing"),
	}
	m := NewCrossPluginManager(func(name string) *models.PluginManifest {
		calls++
		return manifests[name]
	})

	require.NoError(t, m.Allowed("a", "b", "doThing"))
	require.NoError(t, m.Allowed("a", "b", "doThing"))
	assert.Equal(t, 1, calls)
}

func TestCrossPluginManager_InvalidateClearsCachedVerdict(t *testing.T) {
	manifests := map[string]*models.PluginManifest{
		"a": manifestWithAccess("a", "b", "doThing"),
	}
	m := NewCrossPluginManager(func(name string) *models.PluginManifest { return manifests[name] })

	require.NoError(t, m.Allowed("a", "b", "doThing"))
	delete(manifests, "a")
	m.Invalidate("a")

	err := m.Allowed("a", "b", "doThing")
	assert.Error(t, err)
}
