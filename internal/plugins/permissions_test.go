package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waveform-labs/pluginhost/internal/models"
)

func TestPermissionLedger_GrantIsIdempotentUnion(t *testing.T) {
	l := NewPermissionLedger()
	l.Grant("kb", map[models.Permission]bool{models.PermPlayerRead: true})
	l.Grant("kb", map[models.Permission]bool{models.PermPlayerRead: true, models.PermPlayerControl: true})

	assert.True(t, l.Has("kb", models.PermPlayerRead))
	assert.True(t, l.Has("kb", models.PermPlayerControl))
	assert.Len(t, l.Granted("kb"), 2)
}

func TestPermissionLedger_RevokeRemovesWholePlugin(t *testing.T) {
	l := NewPermissionLedger()
	l.Grant("kb", map[models.Permission]bool{models.PermPlayerRead: true})
	l.Revoke("kb")
	assert.False(t, l.Has("kb", models.PermPlayerRead))
	assert.Empty(t, l.Granted("kb"))
}

func TestPermissionLedger_UnknownTagDropped(t *testing.T) {
	l := NewPermissionLedger()
	l.Grant("kb", map[models.Permission]bool{models.Permission("not-a-real-tag"): true})
	assert.Empty(t, l.Granted("kb"))
}
