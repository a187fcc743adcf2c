package plugins

import (
	"fmt"
	"sync"

	"github.com/waveform-labs/pluginhost/internal/logger"
)

// StreamResolver turns an opaque external id into a playable URL. Returning
// an error is treated exactly like returning "", nil by ResolverRegistry.Resolve.
type StreamResolver func(externalID string, options map[string]interface{}) (string, error)

type resolverEntry struct {
	owner    string
	resolver StreamResolver
}

// ResolverRegistry is C7: maps a source-type tag to a plugin-provided
// resolver function. At most one resolver per source-type; last writer
// wins, but only the registering owner may unregister it.
type ResolverRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]resolverEntry
}

// NewResolverRegistry creates an empty registry.
func NewResolverRegistry() *ResolverRegistry {
	return &ResolverRegistry{resolvers: make(map[string]resolverEntry)}
}

// Register installs owner's resolver for sourceType, replacing any existing
// one regardless of its owner (last-writer-wins on registration; only
// unregistration is owner-gated).
func (r *ResolverRegistry) Register(sourceType, owner string, resolver StreamResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[sourceType] = resolverEntry{owner: owner, resolver: resolver}
}

// Unregister removes the resolver for sourceType, but only if owner matches
// the plugin that registered it.
func (r *ResolverRegistry) Unregister(sourceType, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.resolvers[sourceType]; ok && entry.owner == owner {
		delete(r.resolvers, sourceType)
	}
}

// UnregisterAllByOwner removes every resolver owner registered. Used by C12
// on unload.
func (r *ResolverRegistry) UnregisterAllByOwner(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sourceType, entry := range r.resolvers {
		if entry.owner == owner {
			delete(r.resolvers, sourceType)
		}
	}
}

// PurgeUnlessOwnerIn removes every resolver whose owner is not a key of
// loaded. Used by the sweeper to clean up after a plugin that vanished
// without going through UnregisterAllByOwner.
func (r *ResolverRegistry) PurgeUnlessOwnerIn(loaded map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sourceType, entry := range r.resolvers {
		if !loaded[entry.owner] {
			delete(r.resolvers, sourceType)
		}
	}
}

// Resolve looks up and invokes the resolver for sourceType. If none is
// registered, or the resolver errors, it returns "" without panicking — the
// playback engine treats an empty result as "unplayable".
func (r *ResolverRegistry) Resolve(sourceType, externalID string, options map[string]interface{}) string {
	r.mu.RLock()
	entry, ok := r.resolvers[sourceType]
	r.mu.RUnlock()

	if !ok {
		return ""
	}

	url, err := r.invoke(entry, externalID, options)
	if err != nil {
		logger.Events().Warn().Str("source_type", sourceType).Err(err).Msg("resolver failed")
		return ""
	}
	return url
}

func (r *ResolverRegistry) invoke(entry resolverEntry, externalID string, options map[string]interface{}) (url string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("resolver panicked: %v", rec)
		}
	}()
	return entry.resolver(externalID, options)
}
