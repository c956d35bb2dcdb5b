package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// manifestVersion is the current schema version
	manifestVersion = 1

	// manifestFilename is the access-time manifest filename
	manifestFilename = "shards.json"
)

// accessManifest records when each shard key was last opened or created.
// Age-based retention uses it to find abandoned shards; keys missing from
// the manifest fall back to the shard directory's modification time.
type accessManifest struct {
	Version  int                  `json:"version"`
	Accessed map[string]time.Time `json:"accessed"`

	path string
	mu   sync.RWMutex
}

// loadManifest reads the manifest from disk, or creates an empty one if it
// doesn't exist or fails to parse. A broken manifest only costs access
// times, never shard data, so it is not worth failing over.
func loadManifest(dir string) *accessManifest {
	m := &accessManifest{
		Version:  manifestVersion,
		Accessed: make(map[string]time.Time),
		path:     filepath.Join(dir, manifestFilename),
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return m
	}
	var stored accessManifest
	if err := json.Unmarshal(data, &stored); err != nil || stored.Accessed == nil {
		return m
	}
	m.Accessed = stored.Accessed
	return m
}

// save writes the manifest to disk atomically via temp-file + rename.
func (m *accessManifest) save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal shard manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write shard manifest temp file: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename shard manifest: %w", err)
	}
	return nil
}

// touch records an access to the given shard key.
func (m *accessManifest) touch(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accessed[key] = time.Now()
}

// remove forgets the given shard key.
func (m *accessManifest) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Accessed, key)
}

// lastAccess returns the recorded access time for key and whether one exists.
func (m *accessManifest) lastAccess(key string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.Accessed[key]
	return t, ok
}
