// Package playlist caches a collection's known video list between runs and
// guards its mutation with change tokens that persist exactly once on exit.
package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/quidnu/subtubular/internal/domain"
)

// Playlist is the cached video list of one channel or playlist scope. It is
// mutated during a run (background refreshes append newly discovered
// videos, searches write back resolved upload dates) and persisted through
// a change token.
type Playlist struct {
	key   string
	title string

	mu        sync.RWMutex
	videos    []*domain.Video
	byID      map[string]*domain.Video
	refreshed time.Time
	dirty     bool
}

// persisted is the JSON shape stored in the data store.
type persisted struct {
	Key       string          `json:"key"`
	Title     string          `json:"title,omitempty"`
	Refreshed time.Time       `json:"refreshed"`
	Videos    []*domain.Video `json:"videos"`
}

// New creates an empty playlist cache for the given storage key.
func New(key string) *Playlist {
	return &Playlist{key: key, byID: make(map[string]*domain.Video)}
}

// Load reads the cached playlist for key from the store, or returns an
// empty one if nothing was persisted yet.
func Load(ctx context.Context, store domain.DataStore, key string) (*Playlist, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load playlist %s: %w", key, err)
	}
	if data == nil {
		return New(key), nil
	}

	var stored persisted
	if err := json.Unmarshal(data, &stored); err != nil {
		// A cache that no longer parses is rebuilt from source, same as
		// a corrupt index shard.
		return New(key), nil
	}

	p := New(key)
	p.title = stored.Title
	p.refreshed = stored.Refreshed
	for _, v := range stored.Videos {
		p.videos = append(p.videos, v)
		p.byID[v.ID] = v
	}
	return p, nil
}

// Key returns the playlist's storage key.
func (p *Playlist) Key() string { return p.key }

// Title returns the collection title, if known.
func (p *Playlist) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.title
}

// SetTitle records the collection title.
func (p *Playlist) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.title != title {
		p.title = title
		p.dirty = true
	}
}

// GetVideos returns the known videos in list order.
func (p *Playlist) GetVideos() []*domain.Video {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*domain.Video, len(p.videos))
	copy(out, p.videos)
	return out
}

// Get returns the known video with the given id, or nil.
func (p *Playlist) Get(id string) *domain.Video {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byID[id]
}

// Update inserts the video or replaces the known instance with the same id,
// preserving list order for replacements and appending new videos.
func (p *Playlist) Update(v *domain.Video) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.byID[v.ID]; ok {
		for i := range p.videos {
			if p.videos[i] == existing {
				p.videos[i] = v
				break
			}
		}
	} else {
		p.videos = append(p.videos, v)
	}
	p.byID[v.ID] = v
	p.dirty = true
}

// Refreshed returns when the video list was last synced against upstream.
func (p *Playlist) Refreshed() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.refreshed
}

// SetRefreshed records a completed upstream sync.
func (p *Playlist) SetRefreshed(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed = t
	p.dirty = true
}

// Stale reports whether the cached list is older than the given freshness
// threshold.
func (p *Playlist) Stale(freshness time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.refreshed) > freshness
}

// Encode serializes the playlist for the data store and clears the dirty
// flag.
func (p *Playlist) Encode() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := json.Marshal(persisted{
		Key:       p.key,
		Title:     p.title,
		Refreshed: p.refreshed,
		Videos:    p.videos,
	})
	if err != nil {
		return nil, fmt.Errorf("encode playlist %s: %w", p.key, err)
	}
	p.dirty = false
	return data, nil
}

// Dirty reports whether the playlist changed since the last Encode.
func (p *Playlist) Dirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}
