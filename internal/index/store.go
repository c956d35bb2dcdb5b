package index

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
)

// IndexSuffix is the suffix of shard directories under the storage dir.
const IndexSuffix = ".idx"

// Store maps storage keys to shards, loading from or initializing backing
// files under one directory. A shard whose backing files fail to
// deserialize is deleted and reported as absent; the caller rebuilds it
// from source metadata, so corruption is never fatal.
type Store struct {
	dir      string
	manifest *accessManifest

	mu   sync.Mutex
	open map[string]*TextIndex
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	return &Store{
		dir:      dir,
		manifest: loadManifest(dir),
		open:     make(map[string]*TextIndex),
	}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) shardPath(key string) string {
	return filepath.Join(s.dir, key+IndexSuffix)
}

// Get returns the shard for key, or nil if it was never persisted. A shard
// that exists but cannot be opened is removed and nil is returned.
func (s *Store) Get(key string) (*TextIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key)
}

func (s *Store) get(key string) (*TextIndex, error) {
	if t, ok := s.open[key]; ok {
		return t, nil
	}

	path := s.shardPath(key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat shard %s: %w", key, err)
	}

	idx, err := bleve.Open(path)
	if err != nil {
		// The backing files no longer round-trip. Drop them and let the
		// caller rebuild from source metadata.
		slog.Warn("Shard failed to load, deleting for rebuild", "key", key, "error", err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("remove corrupt shard %s: %w", key, rmErr)
		}
		s.manifest.remove(key)
		return nil, nil
	}

	t := &TextIndex{key: key, path: path, idx: idx}
	s.open[key] = t
	s.touch(key)
	return t, nil
}

// GetOrBuild returns the shard for key, creating an empty one if none was
// ever persisted.
func (s *Store) GetOrBuild(key string) (*TextIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, err := s.get(key); err != nil || t != nil {
		return t, err
	}

	im, err := buildMapping()
	if err != nil {
		return nil, err
	}
	path := s.shardPath(key)
	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create shard %s: %w", key, err)
	}

	t := &TextIndex{key: key, path: path, idx: idx}
	s.open[key] = t
	s.touch(key)
	return t, nil
}

// GetShard returns the shard for the composite key
// "<collectionKey>.<shardNumber>", creating it if needed. Sharding exists
// because the indexing engine has a practical per-index size ceiling;
// callers assign videos to shards.
func (s *Store) GetShard(collectionKey string, shardNumber int) (*TextIndex, error) {
	return s.GetOrBuild(ShardKey(collectionKey, shardNumber))
}

// ShardKey builds the composite key for a collection's numbered shard.
func ShardKey(collectionKey string, shardNumber int) string {
	return fmt.Sprintf("%s.%d", collectionKey, shardNumber)
}

func (s *Store) touch(key string) {
	s.manifest.touch(key)
	if err := s.manifest.save(); err != nil {
		slog.Warn("Failed to save shard manifest", "error", err)
	}
}

// DeleteOptions selects shards for bulk removal. Provided criteria combine
// conjunctively; at least one must be set. With Simulate the candidate set
// is computed but nothing is deleted.
type DeleteOptions struct {
	Key            string
	KeyPrefix      string
	NotAccessedFor time.Duration
	Simulate       bool
}

// Delete removes (or, with Simulate, lists) the shards matching the given
// criteria and returns their keys.
func (s *Store) Delete(opts DeleteOptions) ([]string, error) {
	if opts.Key == "" && opts.KeyPrefix == "" && opts.NotAccessedFor == 0 {
		return nil, errors.New("delete requires a key, a key prefix or an access age")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read index directory: %w", err)
	}

	var matched []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), IndexSuffix) {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), IndexSuffix)

		if opts.Key != "" && key != opts.Key {
			continue
		}
		if opts.KeyPrefix != "" && !strings.HasPrefix(key, opts.KeyPrefix) {
			continue
		}
		if opts.NotAccessedFor > 0 {
			last, ok := s.manifest.lastAccess(key)
			if !ok {
				info, err := entry.Info()
				if err != nil {
					continue
				}
				last = info.ModTime()
			}
			if time.Since(last) < opts.NotAccessedFor {
				continue
			}
		}
		matched = append(matched, key)
	}

	if opts.Simulate {
		return matched, nil
	}

	for _, key := range matched {
		if t, ok := s.open[key]; ok {
			if err := t.Close(); err != nil {
				slog.Warn("Failed to close shard before delete", "key", key, "error", err)
			}
			delete(s.open, key)
		}
		if err := os.RemoveAll(s.shardPath(key)); err != nil {
			return matched, fmt.Errorf("delete shard %s: %w", key, err)
		}
		s.manifest.remove(key)
	}
	if len(matched) > 0 {
		if err := s.manifest.save(); err != nil {
			slog.Warn("Failed to save shard manifest", "error", err)
		}
	}
	return matched, nil
}

// Close releases every open shard.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for key, t := range s.open {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close shard %s: %w", key, err))
		}
		delete(s.open, key)
	}
	return errors.Join(errs...)
}
