package plugins

import (
	"sync"

	"github.com/waveform-labs/pluginhost/internal/models"
)

// PermissionLedger is C2: the single source of truth for which permission
// tags a plugin currently holds. Consulted both at capability-object
// construction (C9) and at every host dispatch (C8 re-checks, defence in
// depth).
type PermissionLedger struct {
	mu     sync.RWMutex
	grants map[string]map[models.Permission]bool
}

// NewPermissionLedger creates an empty ledger.
func NewPermissionLedger() *PermissionLedger {
	return &PermissionLedger{grants: make(map[string]map[models.Permission]bool)}
}

// Grant idempotently unions the given tags into the plugin's grant set.
// Unknown tags are dropped rather than stored, preserving the closed-
// vocabulary invariant even if a caller bypasses C1 validation.
func (l *PermissionLedger) Grant(pluginName string, tags map[models.Permission]bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.grants[pluginName]
	if !ok {
		set = make(map[models.Permission]bool)
		l.grants[pluginName] = set
	}
	for tag, held := range tags {
		if held && models.KnownPermissions[tag] {
			set[tag] = true
		}
	}
}

// Revoke removes every permission the named plugin holds.
func (l *PermissionLedger) Revoke(pluginName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.grants, pluginName)
}

// Has reports whether the named plugin currently holds the given tag.
func (l *PermissionLedger) Has(pluginName string, tag models.Permission) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.grants[pluginName][tag]
}

// Granted returns a copy of the permission set currently held by the named
// plugin.
func (l *PermissionLedger) Granted(pluginName string) map[models.Permission]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[models.Permission]bool, len(l.grants[pluginName]))
	for tag, held := range l.grants[pluginName] {
		out[tag] = held
	}
	return out
}
