package manifest

import (
	"os"
	"path/filepath"

	"github.com/waveform-labs/pluginhost/internal/logger"
	"github.com/waveform-labs/pluginhost/internal/models"
)

// manifestFilename is the descriptor every plugin directory must carry.
const manifestFilename = "manifest.yaml"

// Discover walks the immediate subdirectories of pluginDir looking for a
// manifest.yaml in each, parsing and validating every one it finds. A
// directory with no manifest is skipped; a directory whose manifest fails
// validation is skipped with a warning rather than aborting discovery for
// every other plugin.
func Discover(pluginDir string) ([]*models.PluginManifest, error) {
	entries, err := os.ReadDir(pluginDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var manifests []*models.PluginManifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(pluginDir, entry.Name(), manifestFilename)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			logger.Loader().Warn().Str("path", path).Err(err).Msg("failed reading plugin manifest")
			continue
		}
		m, err := ParseAndValidate(data)
		if err != nil {
			logger.Loader().Warn().Str("path", path).Err(err).Msg("plugin manifest failed validation, skipping")
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
