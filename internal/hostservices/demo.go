package hostservices

import (
	"context"
	"fmt"
	"sync"
)

// Demo is a minimal in-memory Services implementation used by tests and the
// development harness in cmd/pluginhost. It has no real playback engine or
// library store behind it — it just tracks enough state to make the
// dispatcher's contract observable.
type Demo struct {
	mu sync.Mutex

	state            PlaybackState
	downloadLocation string
	rescanned        []string
	libraryTracks    []*Track
	playlists        map[string][]string
}

// NewDemo creates a Demo host-services implementation with an empty library.
func NewDemo() *Demo {
	return &Demo{playlists: make(map[string][]string)}
}

func (d *Demo) TogglePlay(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Playing = !d.state.Playing
	return nil
}

func (d *Demo) Next(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.state.Queue) == 0 {
		return nil
	}
	d.state.CurrentTrack = d.state.Queue[0]
	d.state.Queue = d.state.Queue[1:]
	return nil
}

func (d *Demo) Previous(ctx context.Context) error { return nil }

func (d *Demo) Seek(ctx context.Context, positionSecs float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.PositionSecs = positionSecs
	return nil
}

func (d *Demo) SetTrack(ctx context.Context, track *Track) (*Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	previous := d.state.CurrentTrack
	d.state.CurrentTrack = track
	return previous, nil
}

func (d *Demo) GetPlaybackState(ctx context.Context) (*PlaybackState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := d.state
	return &cp, nil
}

func (d *Demo) AddToQueue(ctx context.Context, track *Track) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Queue = append(d.state.Queue, track)
	return nil
}

func (d *Demo) RemoveFromQueue(ctx context.Context, trackID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.state.Queue[:0]
	for _, t := range d.state.Queue {
		if t.ID != trackID {
			kept = append(kept, t)
		}
	}
	d.state.Queue = kept
	return nil
}

func (d *Demo) ReorderQueue(ctx context.Context, trackIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	byID := make(map[string]*Track, len(d.state.Queue))
	for _, t := range d.state.Queue {
		byID[t.ID] = t
	}
	reordered := make([]*Track, 0, len(trackIDs))
	for _, id := range trackIDs {
		if t, ok := byID[id]; ok {
			reordered = append(reordered, t)
		}
	}
	d.state.Queue = reordered
	return nil
}

func (d *Demo) ClearQueue(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Queue = nil
	return nil
}

func (d *Demo) ReadLibrary(ctx context.Context) ([]*Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Track(nil), d.libraryTracks...), nil
}

func (d *Demo) AddExternalTrack(ctx context.Context, track *Track) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.libraryTracks = append(d.libraryTracks, track)
	return nil
}

func (d *Demo) CreatePlaylist(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := fmt.Sprintf("playlist-%d", len(d.playlists)+1)
	d.playlists[id] = nil
	return id, nil
}

func (d *Demo) AddTrackToPlaylist(ctx context.Context, playlistID, trackID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playlists[playlistID] = append(d.playlists[playlistID], trackID)
	return nil
}

func (d *Demo) UpdatePlaylistCover(ctx context.Context, playlistID, coverURL string) error { return nil }
func (d *Demo) UpdateTrackCover(ctx context.Context, trackID, coverURL string) error        { return nil }

func (d *Demo) DownloadTrack(ctx context.Context, track *Track, destPath string) error {
	return nil
}

func (d *Demo) RescanDirectory(ctx context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rescanned = append(d.rescanned, path)
	return nil
}

func (d *Demo) ProxyFetch(ctx context.Context, method, url string, headers map[string]string, body []byte) (*FetchResult, error) {
	return &FetchResult{OK: true, Status: 200, Headers: map[string]string{}, Body: []byte("{}")}, nil
}

func (d *Demo) RefreshTheme(ctx context.Context) error { return nil }

func (d *Demo) SetDownloadLocation(ctx context.Context, path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.downloadLocation = path
	return true
}

func (d *Demo) GetDownloadLocation(ctx context.Context) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.downloadLocation
}
