package plugins

import (
	"fmt"
	"path/filepath"
	"time"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/models"
)

// loadPluginArtifact is C11's top-level entry point: it picks the load path
// by manifest.Type and returns a plugin instance plus its fingerprint
// (native plugins only; "" for script and builtin). It never calls Init —
// that is the lifecycle manager's job.
func loadPluginArtifact(manifest *models.PluginManifest, pluginDir string, handoffTimeout time.Duration) (PluginHandler, string, error) {
	if factory, ok := GetBuiltinPlugin(manifest.SafeName); ok {
		return factory(), "", nil
	}

	switch manifest.Type {
	case models.PluginTypeNative:
		entryPath := filepath.Join(pluginDir, manifest.SafeName, manifest.Entry)
		return loadNativePlugin(entryPath)
	case models.PluginTypeScript:
		instance, err := loadScriptPlugin(manifest.SafeName, manifest.Name, handoffTimeout)
		return instance, "", err
	default:
		return nil, "", apperr.ModuleLoadFailed(fmt.Errorf("unknown plugin type %q", manifest.Type))
	}
}
