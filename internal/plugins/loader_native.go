package plugins

import (
	"encoding/hex"
	"fmt"
	"os"
	"plugin"

	"golang.org/x/crypto/blake2b"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/logger"
)

// loadNativePlugin opens a compiled .so artifact at entryPath with Go's
// plugin package and reads back its exported NewPlugin constructor. There
// is no imports/bridge object to assemble the way a WASM host would: a
// native plugin gets the same Go PluginHandler interface and capability
// object as a script plugin, via the context passed to Init. The artifact
// is fingerprinted with blake2b and the hex digest is stored on the
// loaded-plugin record for diagnostics; nothing compares it across loads.
func loadNativePlugin(entryPath string) (PluginHandler, string, error) {
	data, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, "", apperr.ArtifactFetchFailed(err)
	}
	sum := blake2b.Sum256(data)
	fingerprint := hex.EncodeToString(sum[:])

	p, err := plugin.Open(entryPath)
	if err != nil {
		return nil, fingerprint, apperr.ModuleLoadFailed(err)
	}

	symbol, err := p.Lookup("NewPlugin")
	if err != nil {
		return nil, fingerprint, apperr.ModuleLoadFailed(fmt.Errorf("missing NewPlugin export: %w", err))
	}

	factory, ok := symbol.(func() PluginHandler)
	if !ok {
		return nil, fingerprint, apperr.ModuleLoadFailed(fmt.Errorf("NewPlugin has the wrong signature, expected func() PluginHandler"))
	}

	logger.Loader().Info().Str("path", entryPath).Str("fingerprint", fingerprint).Msg("native plugin opened")
	return factory(), fingerprint, nil
}
