package plugins

import (
	"context"

	"github.com/waveform-labs/pluginhost/internal/hostservices"
	"github.com/waveform-labs/pluginhost/internal/models"
)

// Capability is C9: the API surface object a plugin instance actually holds.
// Its method set is a function of the plugin's granted permissions — a
// sub-surface the ledger does not grant is left nil, so a plugin calling
// through it gets the same "missing member" failure invariant 1 calls for,
// expressed as Go's nil-pointer-dereference rather than a thrown exception.
// Events, Request and HandleRequest are always present: every plugin may
// listen and answer requests regardless of its permission grants.
type Capability struct {
	Player   *PlayerSurface
	Library  *LibrarySurface
	UI       *UISurface
	Storage  *StorageSurface
	Settings *SettingsSurface
	Fetch    FetchFunc

	Events        EventsSurface
	Request       func(requestName string, data interface{}) (interface{}, error)
	HandleRequest func(requestName string, handler RequestHandler)
}

type FetchFunc func(method, url string, headers map[string]string, body []byte) (*hostservices.FetchResult, error)

// EventsSurface is always granted; it is a thin adapter over the shared
// event bus that tags every subscription with the owning plugin's name so
// RemovePluginListeners can purge it on unload.
type EventsSurface struct {
	On   func(eventName string, handler EventHandler)
	Once func(eventName string, handler EventHandler)
	Off  func(eventName string)
}

type PlayerSurface struct {
	Toggle         func()
	Next           func()
	Previous       func()
	Seek           func(positionSecs float64)
	SetTrack       func(track *hostservices.Track)
	GetState       func() *hostservices.PlaybackState
	GetCurrentTime func() float64
	QueueAdd       func(track *hostservices.Track)
	QueueRemove    func(trackID string)
	QueueReorder   func(trackIDs []string)
	QueueClear     func()
}

type LibrarySurface struct {
	Read               func() []*hostservices.Track
	AddExternalTrack   func(track *hostservices.Track)
	CreatePlaylist     func(name string) string
	AddTrackToPlaylist func(playlistID, trackID string)
	UpdatePlaylistCover func(playlistID, coverURL string)
	UpdateTrackCover   func(trackID, coverURL string)
	DownloadTrack      func(track *hostservices.Track, destPath, destDir string)
}

type UISurface struct {
	Inject func(slot, fragment string, priority int)
}

type StorageSurface struct {
	Get func(key string) (string, bool)
	Set func(key, value string) bool
}

type SettingsSurface struct {
	SetDownloadLocation func(path string) bool
}

// buildCapability composes the capability object for a freshly loaded
// plugin, gating each sub-surface on the ledger's current grants. It is
// called once at load time, before Init runs, and the result is handed to
// every lifecycle hook via PluginContext.
func (r *Runtime) buildCapability(pluginName string) *Capability {
	surface := &Capability{
		Events:        r.buildEventsSurface(pluginName),
		Request:       r.buildRequestFunc(pluginName),
		HandleRequest: func(name string, h RequestHandler) { r.events.HandleRequest(name, pluginName, h) },
	}

	granted := r.ledger.Granted(pluginName)
	if granted[models.PermPlayerRead] || granted[models.PermPlayerControl] {
		surface.Player = r.buildPlayerSurface(pluginName)
	}
	if granted[models.PermLibraryRead] || granted[models.PermLibraryWrite] {
		surface.Library = r.buildLibrarySurface(pluginName)
	}
	if granted[models.PermUIInject] {
		surface.UI = r.buildUISurface(pluginName)
	}
	if granted[models.PermScopedStorage] {
		surface.Storage = r.buildStorageSurface(pluginName)
	}
	if granted[models.PermSettingsWrite] || granted[models.PermScopedStorage] {
		surface.Settings = r.buildSettingsSurface(pluginName)
	}
	if granted[models.PermNetworkFetch] {
		surface.Fetch = r.buildFetchSurface(pluginName)
	}
	return surface
}

// buildRequestFunc wraps the event bus's request rendezvous with C10's
// cross-plugin gate: a request whose registered handler belongs to another
// plugin must be granted by the caller's own cross_plugin_access entry for
// that plugin. Since internal/manifest rejects request names there, the
// grant that passes validation is the "*" wildcard.
func (r *Runtime) buildRequestFunc(pluginName string) func(string, interface{}) (interface{}, error) {
	return func(requestName string, data interface{}) (interface{}, error) {
		owner, ok := r.events.RequestOwner(requestName)
		if ok && owner != pluginName {
			if err := r.crossPlugin.Allowed(pluginName, owner, requestName); err != nil {
				return nil, err
			}
		}
		return r.events.Request(requestName, data)
	}
}

func (r *Runtime) buildEventsSurface(pluginName string) EventsSurface {
	return EventsSurface{
		On:   func(eventName string, handler EventHandler) { r.events.On(eventName, pluginName, handler) },
		Once: func(eventName string, handler EventHandler) { r.events.Once(eventName, pluginName, handler) },
		Off:  func(eventName string) { r.events.Off(eventName, pluginName) },
	}
}

func (r *Runtime) buildPlayerSurface(pluginName string) *PlayerSurface {
	ctx := context.Background()
	return &PlayerSurface{
		Toggle:   func() { r.Dispatch(ctx, pluginName, MethodPlayerToggle, nil) },
		Next:     func() { r.Dispatch(ctx, pluginName, MethodPlayerNext, nil) },
		Previous: func() { r.Dispatch(ctx, pluginName, MethodPlayerPrevious, nil) },
		Seek: func(positionSecs float64) {
			r.Dispatch(ctx, pluginName, MethodPlayerSeek, map[string]interface{}{"position_secs": positionSecs})
		},
		SetTrack: func(track *hostservices.Track) {
			r.Dispatch(ctx, pluginName, MethodPlayerSetTrack, map[string]interface{}{"track": track})
		},
		GetState: func() *hostservices.PlaybackState {
			v := r.Dispatch(ctx, pluginName, MethodPlayerGetState, nil)
			state, _ := v.(*hostservices.PlaybackState)
			return state
		},
		GetCurrentTime: func() float64 {
			v := r.Dispatch(ctx, pluginName, MethodPlayerGetCurrentTime, nil)
			t, _ := v.(float64)
			return t
		},
		QueueAdd: func(track *hostservices.Track) {
			r.Dispatch(ctx, pluginName, MethodPlayerQueueAdd, map[string]interface{}{"track": track})
		},
		QueueRemove: func(trackID string) {
			r.Dispatch(ctx, pluginName, MethodPlayerQueueRemove, map[string]interface{}{"track_id": trackID})
		},
		QueueReorder: func(trackIDs []string) {
			r.Dispatch(ctx, pluginName, MethodPlayerQueueReorder, map[string]interface{}{"track_ids": trackIDs})
		},
		QueueClear: func() { r.Dispatch(ctx, pluginName, MethodPlayerQueueClear, nil) },
	}
}

func (r *Runtime) buildLibrarySurface(pluginName string) *LibrarySurface {
	ctx := context.Background()
	return &LibrarySurface{
		Read: func() []*hostservices.Track {
			v := r.Dispatch(ctx, pluginName, MethodLibraryRead, nil)
			tracks, _ := v.([]*hostservices.Track)
			return tracks
		},
		AddExternalTrack: func(track *hostservices.Track) {
			r.Dispatch(ctx, pluginName, MethodLibraryAddExternalTrack, map[string]interface{}{"track": track})
		},
		CreatePlaylist: func(name string) string {
			v := r.Dispatch(ctx, pluginName, MethodLibraryCreatePlaylist, map[string]interface{}{"name": name})
			id, _ := v.(string)
			return id
		},
		AddTrackToPlaylist: func(playlistID, trackID string) {
			r.Dispatch(ctx, pluginName, MethodLibraryAddTrackToPlaylist, map[string]interface{}{
				"playlist_id": playlistID, "track_id": trackID,
			})
		},
		UpdatePlaylistCover: func(playlistID, coverURL string) {
			r.Dispatch(ctx, pluginName, MethodLibraryUpdatePlaylistCover, map[string]interface{}{
				"playlist_id": playlistID, "cover_url": coverURL,
			})
		},
		UpdateTrackCover: func(trackID, coverURL string) {
			r.Dispatch(ctx, pluginName, MethodLibraryUpdateTrackCover, map[string]interface{}{
				"track_id": trackID, "cover_url": coverURL,
			})
		},
		DownloadTrack: func(track *hostservices.Track, destPath, destDir string) {
			r.Dispatch(ctx, pluginName, MethodLibraryDownloadTrack, map[string]interface{}{
				"track": track, "dest_path": destPath, "dest_dir": destDir,
			})
		},
	}
}

func (r *Runtime) buildUISurface(pluginName string) *UISurface {
	ctx := context.Background()
	return &UISurface{
		Inject: func(slot, fragment string, priority int) {
			r.Dispatch(ctx, pluginName, MethodUIInject, map[string]interface{}{
				"slot": slot, "fragment": fragment, "priority": priority,
			})
		},
	}
}

func (r *Runtime) buildStorageSurface(pluginName string) *StorageSurface {
	ctx := context.Background()
	return &StorageSurface{
		Get: func(key string) (string, bool) {
			v := r.Dispatch(ctx, pluginName, MethodStorageGet, map[string]interface{}{"key": key})
			if v == nil {
				return "", false
			}
			s, _ := v.(string)
			return s, true
		},
		Set: func(key, value string) bool {
			v := r.Dispatch(ctx, pluginName, MethodStorageSet, map[string]interface{}{"key": key, "value": value})
			ok, _ := v.(bool)
			return ok
		},
	}
}

func (r *Runtime) buildSettingsSurface(pluginName string) *SettingsSurface {
	ctx := context.Background()
	return &SettingsSurface{
		SetDownloadLocation: func(path string) bool {
			v := r.Dispatch(ctx, pluginName, MethodSettingsSetDownloadLocation, map[string]interface{}{"path": path})
			ok, _ := v.(bool)
			return ok
		},
	}
}

func (r *Runtime) buildFetchSurface(pluginName string) FetchFunc {
	ctx := context.Background()
	return func(method, url string, headers map[string]string, body []byte) (*hostservices.FetchResult, error) {
		v := r.Dispatch(ctx, pluginName, MethodFetch, map[string]interface{}{
			"method": method, "url": url, "headers": headers, "body": body,
		})
		result, _ := v.(*hostservices.FetchResult)
		return result, nil
	}
}
