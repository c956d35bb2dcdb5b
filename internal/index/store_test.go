package index

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/quidnu/subtubular/internal/domain"
)

func TestShardKey(t *testing.T) {
	if got := ShardKey("channel UC123", 2); got != "channel UC123.2" {
		t.Errorf("ShardKey = %q", got)
	}
}

func TestGetAbsentShard(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	shard, err := store.Get("videos.0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if shard != nil {
		t.Error("absent shard should be nil")
	}
}

func TestShardSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	shard, err := store.GetShard("videos", 0)
	if err != nil {
		t.Fatalf("GetShard failed: %v", err)
	}
	if err := shard.AddOrUpdate(&domain.Video{ID: "a", Title: "Lasting Love"}); err != nil {
		t.Fatalf("AddOrUpdate failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("second NewStore failed: %v", err)
	}
	defer store2.Close()

	reopened, err := store2.Get("videos.0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if reopened == nil {
		t.Fatal("persisted shard not found after reopen")
	}
	hits, err := reopened.Search(context.Background(), "love", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestCorruptShardDeletedOnLoad(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	shard, err := store.GetShard("videos", 0)
	if err != nil {
		t.Fatalf("GetShard failed: %v", err)
	}
	path := shard.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Break the shard's metadata so it no longer opens.
	if err := os.WriteFile(filepath.Join(path, "index_meta.json"), []byte("garbage"), 0644); err != nil {
		t.Fatalf("corrupting shard failed: %v", err)
	}

	store2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("second NewStore failed: %v", err)
	}
	defer store2.Close()

	got, err := store2.Get("videos.0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("corrupt shard should read as absent")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt shard files should be deleted")
	}

	// The caller can now rebuild it from scratch.
	rebuilt, err := store2.GetShard("videos", 0)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	count, err := rebuilt.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("rebuilt shard has %d docs", count)
	}
}

func TestDeleteRequiresCriteria(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	if _, err := store.Delete(DeleteOptions{}); err == nil {
		t.Error("Delete without criteria should fail")
	}
}

func TestDeleteByKeyAndPrefix(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	for _, key := range []string{"channel UC1.0", "channel UC1.1", "playlist PL1.0"} {
		if _, err := store.GetOrBuild(key); err != nil {
			t.Fatalf("GetOrBuild(%s) failed: %v", key, err)
		}
	}

	simulated, err := store.Delete(DeleteOptions{KeyPrefix: "channel UC1.", Simulate: true})
	if err != nil {
		t.Fatalf("simulated Delete failed: %v", err)
	}
	if len(simulated) != 2 {
		t.Errorf("simulated = %v, want 2 keys", simulated)
	}
	if shard, _ := store.Get("channel UC1.0"); shard == nil {
		t.Error("simulate must not delete")
	}

	deleted, err := store.Delete(DeleteOptions{KeyPrefix: "channel UC1."})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(deleted) != 2 || !slices.Contains(deleted, "channel UC1.0") {
		t.Errorf("deleted = %v", deleted)
	}
	if shard, _ := store.Get("channel UC1.0"); shard != nil {
		t.Error("deleted shard still present")
	}
	if shard, _ := store.Get("playlist PL1.0"); shard == nil {
		t.Error("unrelated shard deleted")
	}

	one, err := store.Delete(DeleteOptions{Key: "playlist PL1.0"})
	if err != nil {
		t.Fatalf("Delete by key failed: %v", err)
	}
	if len(one) != 1 {
		t.Errorf("deleted = %v", one)
	}
}

func TestDeleteByAccessAge(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	if _, err := store.GetOrBuild("videos.0"); err != nil {
		t.Fatalf("GetOrBuild failed: %v", err)
	}

	// Everything was just accessed; a generous age matches nothing.
	kept, err := store.Delete(DeleteOptions{NotAccessedFor: time.Hour})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(kept) != 0 {
		t.Errorf("deleted recently accessed shards: %v", kept)
	}

	// Backdate the access record; now the shard qualifies.
	store.manifest.mu.Lock()
	store.manifest.Accessed["videos.0"] = time.Now().Add(-2 * time.Hour)
	store.manifest.mu.Unlock()

	deleted, err := store.Delete(DeleteOptions{NotAccessedFor: time.Hour})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "videos.0" {
		t.Errorf("deleted = %v", deleted)
	}
}
