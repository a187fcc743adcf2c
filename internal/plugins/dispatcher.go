package plugins

import (
	"context"
	"fmt"

	"github.com/waveform-labs/pluginhost/internal/hostservices"
	"github.com/waveform-labs/pluginhost/internal/logger"
	"github.com/waveform-labs/pluginhost/internal/models"
	"github.com/waveform-labs/pluginhost/internal/ratelimit"
)

// MethodName is the closed enumeration of dispatchable host methods,
// replacing the source's single switch on a bare string (see §9 design
// notes: typed handler map over a closed enum rather than a string switch).
type MethodName string

const (
	MethodPlayerToggle         MethodName = "player.toggle"
	MethodPlayerNext           MethodName = "player.next"
	MethodPlayerPrevious       MethodName = "player.previous"
	MethodPlayerSeek           MethodName = "player.seek"
	MethodPlayerSetTrack       MethodName = "player.setTrack"
	MethodPlayerGetState       MethodName = "player.getState"
	MethodPlayerGetCurrentTime MethodName = "player.getCurrentTime"
	MethodPlayerQueueAdd       MethodName = "player.queueAdd"
	MethodPlayerQueueRemove    MethodName = "player.queueRemove"
	MethodPlayerQueueReorder   MethodName = "player.queueReorder"
	MethodPlayerQueueClear     MethodName = "player.queueClear"

	MethodLibraryRead               MethodName = "library.read"
	MethodLibraryAddExternalTrack   MethodName = "library.addExternalTrack"
	MethodLibraryCreatePlaylist     MethodName = "library.createPlaylist"
	MethodLibraryAddTrackToPlaylist MethodName = "library.addTrackToPlaylist"
	MethodLibraryUpdatePlaylistCover MethodName = "library.updatePlaylistCover"
	MethodLibraryUpdateTrackCover   MethodName = "library.updateTrackCover"
	MethodLibraryDownloadTrack     MethodName = "library.downloadTrack"

	MethodUIInject MethodName = "ui.inject"

	MethodStorageGet MethodName = "storage.get"
	MethodStorageSet MethodName = "storage.set"

	MethodSettingsSetDownloadLocation MethodName = "settings.setDownloadLocation"

	MethodFetch MethodName = "fetch"
)

// DispatchMethodNames returns every MethodName in the closed dispatch
// vocabulary, in declaration order. internal/manifest uses it to validate
// cross_plugin_access entries that name a dispatch-gated method rather than
// a plugin-registered request channel.
func DispatchMethodNames() []MethodName {
	return []MethodName{
		MethodPlayerToggle,
		MethodPlayerNext,
		MethodPlayerPrevious,
		MethodPlayerSeek,
		MethodPlayerSetTrack,
		MethodPlayerGetState,
		MethodPlayerGetCurrentTime,
		MethodPlayerQueueAdd,
		MethodPlayerQueueRemove,
		MethodPlayerQueueReorder,
		MethodPlayerQueueClear,
		MethodLibraryRead,
		MethodLibraryAddExternalTrack,
		MethodLibraryCreatePlaylist,
		MethodLibraryAddTrackToPlaylist,
		MethodLibraryUpdatePlaylistCover,
		MethodLibraryUpdateTrackCover,
		MethodLibraryDownloadTrack,
		MethodUIInject,
		MethodStorageGet,
		MethodStorageSet,
		MethodSettingsSetDownloadLocation,
		MethodFetch,
	}
}

// dispatchHandler is the typed closure behind one MethodName. args is a
// per-method argument bag; each handler is responsible for its own typed
// decoding, matching the capability adapter that built it.
type dispatchHandler func(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error)

// Dispatch is C8: the single funnel every capability-object method calls
// through. It resolves the caller, consumes one api-token, and only then
// executes the mapped host action. Every failure here is soft — it logs
// and returns nil — except that a caller which has vanished from the
// plugins map (already unloaded) is likewise a soft nil, never a panic.
func (r *Runtime) Dispatch(ctx context.Context, callerName string, method MethodName, args map[string]interface{}) interface{} {
	r.mu.RLock()
	caller, ok := r.plugins[callerName]
	r.mu.RUnlock()
	if !ok {
		logger.Dispatch().Warn().Str("plugin", callerName).Str("method", string(method)).
			Msg("dispatch from a plugin not in the plugins map")
		return nil
	}

	if !caller.Limiter.TryConsume(ratelimit.ChannelAPICalls) {
		logger.Dispatch().Warn().Str("plugin", callerName).Str("method", string(method)).
			Msg("api-call rate limit exceeded")
		return nil
	}

	handler, ok := r.dispatchTable[method]
	if !ok {
		logger.Dispatch().Warn().Str("plugin", callerName).Str("method", string(method)).Msg("unknown dispatch method")
		return nil
	}

	result, err := r.callHandler(ctx, handler, caller, args)
	if err != nil {
		logger.Dispatch().Warn().Str("plugin", callerName).Str("method", string(method)).Err(err).Msg("dispatch failed")
		return nil
	}
	return result
}

// callHandler runs a handler and recovers a panicking handler into a soft
// error, the same isolation discipline the event bus applies to listeners.
// ctx is not passed on: handlers call host services with
// context.Background().
func (r *Runtime) callHandler(ctx context.Context, h dispatchHandler, caller *LoadedPlugin, args map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return h(r, caller, args)
}

func buildDispatchTable() map[MethodName]dispatchHandler {
	return map[MethodName]dispatchHandler{
		MethodPlayerToggle:   handlePlayerToggle,
		MethodPlayerNext:     handlePlayerNext,
		MethodPlayerPrevious: handlePlayerPrevious,
		MethodPlayerSeek:     handlePlayerSeek,
		MethodPlayerSetTrack: handlePlayerSetTrack,
		MethodPlayerGetState: handlePlayerGetState,
		MethodPlayerGetCurrentTime: handlePlayerGetCurrentTime,
		MethodPlayerQueueAdd:     handlePlayerQueueAdd,
		MethodPlayerQueueRemove:  handlePlayerQueueRemove,
		MethodPlayerQueueReorder: handlePlayerQueueReorder,
		MethodPlayerQueueClear:   handlePlayerQueueClear,

		MethodLibraryRead:                handleLibraryRead,
		MethodLibraryAddExternalTrack:    handleLibraryAddExternalTrack,
		MethodLibraryCreatePlaylist:      handleLibraryCreatePlaylist,
		MethodLibraryAddTrackToPlaylist:  handleLibraryAddTrackToPlaylist,
		MethodLibraryUpdatePlaylistCover: handleLibraryUpdatePlaylistCover,
		MethodLibraryUpdateTrackCover:    handleLibraryUpdateTrackCover,
		MethodLibraryDownloadTrack:       handleLibraryDownloadTrack,

		MethodUIInject: handleUIInject,

		MethodStorageGet: handleStorageGet,
		MethodStorageSet: handleStorageSet,

		MethodSettingsSetDownloadLocation: handleSettingsSetDownloadLocation,

		MethodFetch: handleFetch,
	}
}

func requirePermission(r *Runtime, caller *LoadedPlugin, perm models.Permission) bool {
	return r.ledger.Has(caller.Manifest.Name, perm)
}

// player.*

func handlePlayerToggle(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	return nil, r.host.TogglePlay(context.Background())
}

func handlePlayerNext(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	return nil, r.host.Next(context.Background())
}

func handlePlayerPrevious(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	return nil, r.host.Previous(context.Background())
}

func handlePlayerSeek(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	pos, _ := args["position_secs"].(float64)
	return nil, r.host.Seek(context.Background(), pos)
}

func handlePlayerSetTrack(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	track, _ := args["track"].(*hostservices.Track)
	previous, err := r.host.SetTrack(context.Background(), track)
	if err != nil {
		return nil, err
	}
	r.events.Emit("trackChange", map[string]interface{}{"previous": previous, "current": track})
	return nil, nil
}

func handlePlayerGetState(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerRead) {
		return nil, nil
	}
	return r.host.GetPlaybackState(context.Background())
}

func handlePlayerGetCurrentTime(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerRead) {
		return nil, nil
	}
	state, err := r.host.GetPlaybackState(context.Background())
	if err != nil {
		return nil, err
	}
	return state.PositionSecs, nil
}

func handlePlayerQueueAdd(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	track, _ := args["track"].(*hostservices.Track)
	return nil, r.host.AddToQueue(context.Background(), track)
}

func handlePlayerQueueRemove(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	trackID, _ := args["track_id"].(string)
	return nil, r.host.RemoveFromQueue(context.Background(), trackID)
}

func handlePlayerQueueReorder(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	ids, _ := args["track_ids"].([]string)
	return nil, r.host.ReorderQueue(context.Background(), ids)
}

func handlePlayerQueueClear(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermPlayerControl) {
		return nil, nil
	}
	return nil, r.host.ClearQueue(context.Background())
}

// library.*

func handleLibraryRead(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermLibraryRead) {
		return nil, nil
	}
	return r.host.ReadLibrary(context.Background())
}

func handleLibraryAddExternalTrack(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermLibraryWrite) {
		return nil, nil
	}
	track, _ := args["track"].(*hostservices.Track)
	return nil, r.host.AddExternalTrack(context.Background(), track)
}

func handleLibraryCreatePlaylist(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermLibraryWrite) {
		return nil, nil
	}
	name, _ := args["name"].(string)
	return r.host.CreatePlaylist(context.Background(), name)
}

func handleLibraryAddTrackToPlaylist(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermLibraryWrite) {
		return nil, nil
	}
	playlistID, _ := args["playlist_id"].(string)
	trackID, _ := args["track_id"].(string)
	return nil, r.host.AddTrackToPlaylist(context.Background(), playlistID, trackID)
}

func handleLibraryUpdatePlaylistCover(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermLibraryWrite) {
		return nil, nil
	}
	playlistID, _ := args["playlist_id"].(string)
	coverURL, _ := args["cover_url"].(string)
	return nil, r.host.UpdatePlaylistCover(context.Background(), playlistID, coverURL)
}

func handleLibraryUpdateTrackCover(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermLibraryWrite) {
		return nil, nil
	}
	trackID, _ := args["track_id"].(string)
	coverURL, _ := args["cover_url"].(string)
	return nil, r.host.UpdateTrackCover(context.Background(), trackID, coverURL)
}

// handleLibraryDownloadTrack triggers a library rescan of the destination
// directory after a successful download; a rescan failure is logged but
// does not fail the download, per §4.8.
func handleLibraryDownloadTrack(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermLibraryWrite) {
		return nil, nil
	}
	track, _ := args["track"].(*hostservices.Track)
	destPath, _ := args["dest_path"].(string)
	destDir, _ := args["dest_dir"].(string)

	if err := r.host.DownloadTrack(context.Background(), track, destPath); err != nil {
		return nil, err
	}
	if err := r.host.RescanDirectory(context.Background(), destDir); err != nil {
		logger.Dispatch().Warn().Str("plugin", caller.Manifest.Name).Err(err).Msg("post-download rescan failed")
	}
	return nil, nil
}

// ui.inject

const defaultUIPriority = 50

func handleUIInject(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermUIInject) {
		return nil, nil
	}
	slot, _ := args["slot"].(string)
	fragment, _ := args["fragment"].(string)
	priority := defaultUIPriority
	if p, ok := args["priority"].(int); ok {
		priority = p
	}

	sanitized := SanitizeFragment(fragment)
	r.ui.Add(slot, caller.Manifest.Name, sanitized, priority)
	return nil, nil
}

// storage.get / storage.set

func handleStorageGet(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermScopedStorage) {
		return nil, nil
	}
	key, _ := args["key"].(string)
	value, found := r.storage.Get(caller.Manifest.Name, key)
	if !found {
		return nil, nil
	}
	return value, nil
}

func handleStorageSet(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermScopedStorage) {
		return nil, nil
	}
	if !caller.Limiter.TryConsume(ratelimit.ChannelStorageWrites) {
		logger.Dispatch().Warn().Str("plugin", caller.Manifest.Name).Msg("storage-write rate limit exceeded")
		return false, nil
	}
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	return r.storage.Set(caller.Manifest.Name, key, value), nil
}

// settings.setDownloadLocation

func handleSettingsSetDownloadLocation(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermSettingsWrite) && !requirePermission(r, caller, models.PermScopedStorage) {
		return nil, nil
	}
	path, _ := args["path"].(string)
	return r.host.SetDownloadLocation(context.Background(), path), nil
}

// fetch

func handleFetch(r *Runtime, caller *LoadedPlugin, args map[string]interface{}) (interface{}, error) {
	if !requirePermission(r, caller, models.PermNetworkFetch) {
		return nil, nil
	}
	method, _ := args["method"].(string)
	url, _ := args["url"].(string)
	headers, _ := args["headers"].(map[string]string)
	body, _ := args["body"].([]byte)
	return r.host.ProxyFetch(context.Background(), method, url, headers, body)
}
