package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/models"
)

func validRaw() *models.RawManifest {
	return &models.RawManifest{
		Name:        "Keyboard Shortcuts",
		Version:     "1.0.0",
		Author:      "jane",
		Type:        "script",
		Entry:       "index.js",
		Permissions: []string{"player-read", "player-control"},
		Category:    "ui",
	}
}

func TestValidate_Valid(t *testing.T) {
	m, err := Validate(validRaw())
	require.NoError(t, err)
	assert.Equal(t, "keyboard-shortcuts", m.SafeName)
	assert.True(t, m.HasPermission(models.PermPlayerRead))
	assert.True(t, m.HasPermission(models.PermPlayerControl))
	assert.False(t, m.HasPermission(models.PermLibraryWrite))
}

func TestValidate_MissingRequiredField(t *testing.T) {
	raw := validRaw()
	raw.Name = ""
	_, err := Validate(raw)
	require.Error(t, err)
	appErr, ok := err.(*apperr.AppError)
	require.True(t, ok)
	assert.Equal(t, apperr.ErrCodeManifestMissingField, appErr.Code)
}

func TestValidate_WrongType(t *testing.T) {
	raw := validRaw()
	raw.Type = "remote"
	_, err := Validate(raw)
	require.Error(t, err)
	appErr, ok := err.(*apperr.AppError)
	require.True(t, ok)
	assert.Equal(t, apperr.ErrCodeManifestInvalidType, appErr.Code)
}

func TestValidate_UnknownPermission(t *testing.T) {
	raw := validRaw()
	raw.Permissions = append(raw.Permissions, "nuke-everything")
	_, err := Validate(raw)
	require.Error(t, err)
	appErr, ok := err.(*apperr.AppError)
	require.True(t, ok)
	assert.Equal(t, apperr.ErrCodeManifestUnknownPerm, appErr.Code)
}

func TestValidate_UnknownCategory(t *testing.T) {
	raw := validRaw()
	raw.Category = "spreadsheet"
	_, err := Validate(raw)
	require.Error(t, err)
	appErr, ok := err.(*apperr.AppError)
	require.True(t, ok)
	assert.Equal(t, apperr.ErrCodeManifestUnknownCat, appErr.Code)
}

func TestValidate_DuplicatedPermissionsDeduplicated(t *testing.T) {
	raw := validRaw()
	raw.Permissions = []string{"player-read", "player-read", "player-control"}
	m, err := Validate(raw)
	require.NoError(t, err)
	assert.Len(t, m.Permissions, 2)
}

func TestValidate_MalformedCrossPluginAccess(t *testing.T) {
	raw := validRaw()
	raw.CrossPluginAccess = []models.CrossPluginAccess{{Target: "search", Methods: []string{""}}}
	_, err := Validate(raw)
	require.Error(t, err)
	appErr, ok := err.(*apperr.AppError)
	require.True(t, ok)
	assert.Equal(t, apperr.ErrCodeManifestBadCrossPlugin, appErr.Code)
}

func TestValidate_CrossPluginAccessUnknownMethodRejected(t *testing.T) {
	raw := validRaw()
	raw.CrossPluginAccess = []models.CrossPluginAccess{{Target: "search", Methods: []string{"search.query"}}}
	_, err := Validate(raw)
	require.Error(t, err, "search.query is a plugin-registered request channel, not a C8 dispatch method; it must be granted via the wildcard")
	appErr, ok := err.(*apperr.AppError)
	require.True(t, ok)
	assert.Equal(t, apperr.ErrCodeManifestBadCrossPlugin, appErr.Code)
}

func TestValidate_CrossPluginAccessKnownDispatchMethodAccepted(t *testing.T) {
	raw := validRaw()
	raw.CrossPluginAccess = []models.CrossPluginAccess{{Target: "library", Methods: []string{"library.read"}}}
	_, err := Validate(raw)
	require.NoError(t, err)
}

func TestValidate_CrossPluginAccessWildcardAccepted(t *testing.T) {
	raw := validRaw()
	raw.CrossPluginAccess = []models.CrossPluginAccess{{Target: "search", Methods: []string{"*"}}}
	_, err := Validate(raw)
	require.NoError(t, err)
}
