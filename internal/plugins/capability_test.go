package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waveform-labs/pluginhost/internal/models"
)

func TestBuildCapability_ClosureMatchesGrantedPermissions(t *testing.T) {
	r := testRuntime()
	r.ledger.Grant("p", map[models.Permission]bool{
		models.PermPlayerRead: true,
		models.PermUIInject:   true,
	})

	cap := r.buildCapability("p")

	assert.NotNil(t, cap.Player, "player-read should yield a Player surface")
	assert.NotNil(t, cap.UI, "ui-inject should yield a UI surface")
	assert.Nil(t, cap.Library, "no library permission should leave Library nil")
	assert.Nil(t, cap.Storage, "no scoped-storage permission should leave Storage nil")
	assert.Nil(t, cap.Settings, "no settings-write permission should leave Settings nil")
	assert.Nil(t, cap.Fetch, "no network-fetch permission should leave Fetch nil")

	assert.NotNil(t, cap.Events.On, "events surface is always present")
	assert.NotNil(t, cap.Request, "request is always present")
	assert.NotNil(t, cap.HandleRequest, "handleRequest is always present")
}

func TestBuildCapability_ScopedStorageAloneAlsoGrantsSettings(t *testing.T) {
	r := testRuntime()
	r.ledger.Grant("storage-only", map[models.Permission]bool{
		models.PermScopedStorage: true,
	})

	cap := r.buildCapability("storage-only")

	assert.NotNil(t, cap.Storage, "scoped-storage should yield a Storage surface")
	assert.NotNil(t, cap.Settings, "scoped-storage alone should also yield a Settings surface per spec 4.9")
}

func TestBuildCapability_NoPermissionsYieldsOnlyAlwaysOnSurfaces(t *testing.T) {
	r := testRuntime()
	cap := r.buildCapability("bare")

	assert.Nil(t, cap.Player)
	assert.Nil(t, cap.Library)
	assert.Nil(t, cap.UI)
	assert.Nil(t, cap.Storage)
	assert.Nil(t, cap.Settings)
	assert.Nil(t, cap.Fetch)
	assert.NotNil(t, cap.Events.On)
}
