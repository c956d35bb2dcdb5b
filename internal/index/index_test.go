package index

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/quidnu/subtubular/internal/domain"
)

func newTestShard(t *testing.T) *TextIndex {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	shard, err := store.GetShard("videos", 0)
	if err != nil {
		t.Fatalf("GetShard failed: %v", err)
	}
	return shard
}

func indexVideo(t *testing.T, shard *TextIndex, v *domain.Video) {
	t.Helper()
	if err := shard.AddOrUpdate(v); err != nil {
		t.Fatalf("AddOrUpdate(%s) failed: %v", v.ID, err)
	}
}

func TestSearchMatchesTitle(t *testing.T) {
	shard := newTestShard(t)
	indexVideo(t, shard, &domain.Video{ID: "a", Title: "Ever-Lasting Love"})
	indexVideo(t, shard, &domain.Video{ID: "b", Title: "Something Else"})

	hits, err := shard.Search(context.Background(), "love", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("hits = %+v, want single hit for a", hits)
	}

	spans := hits[0].Spans[domain.FieldTitle]
	if len(spans) != 1 {
		t.Fatalf("title spans = %v, want one", spans)
	}
	if got := "Ever-Lasting Love"[spans[0].Start:spans[0].End()]; got != "Love" {
		t.Errorf("matched %q, want Love", got)
	}
}

func TestSearchInsideCompoundToken(t *testing.T) {
	shard := newTestShard(t)
	indexVideo(t, shard, &domain.Video{ID: "a", Title: "Ever-Lasting Love"})

	// Hyphens stay inside tokens, so "lasting" only hits through the
	// infix wildcard against "ever-lasting".
	hits, err := shard.Search(context.Background(), "lasting", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("hits = %+v, want single hit for a", hits)
	}
}

func TestSearchFuzzy(t *testing.T) {
	shard := newTestShard(t)
	indexVideo(t, shard, &domain.Video{ID: "a", Title: "Lasting Peace"})

	// Two transposed characters stay within the edit distance of a
	// 7-rune term.
	hits, err := shard.Search(context.Background(), "lastign", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("hits = %+v, want single hit for a", hits)
	}
}

func TestSearchCaseAndAccentInsensitive(t *testing.T) {
	shard := newTestShard(t)
	indexVideo(t, shard, &domain.Video{ID: "a", Title: "CAFÉ society"})

	hits, err := shard.Search(context.Background(), "cafe", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("hits = %+v, want one", hits)
	}
}

func TestSearchCaptionField(t *testing.T) {
	shard := newTestShard(t)
	indexVideo(t, shard, &domain.Video{
		ID:    "a",
		Title: "Some Video",
		CaptionTracks: []domain.CaptionTrack{
			{Language: "en", Text: "we are no strangers to love"},
		},
	})

	hits, err := shard.Search(context.Background(), "captions.en:strangers", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %+v, want one", hits)
	}
	if len(hits[0].Spans["captions.en"]) == 0 {
		t.Errorf("no caption spans: %+v", hits[0].Spans)
	}
}

func TestSearchUnknownField(t *testing.T) {
	shard := newTestShard(t)
	indexVideo(t, shard, &domain.Video{
		ID:            "a",
		Title:         "Some Video",
		CaptionTracks: []domain.CaptionTrack{{Language: "en", Text: "hello"}},
	})

	_, err := shard.Search(context.Background(), "bogus:term", 10)
	var ufe *UnknownFieldError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want UnknownFieldError", err)
	}
	if ufe.Field != "bogus" {
		t.Errorf("Field = %q", ufe.Field)
	}
	for _, want := range []string{"title", "keywords", "description", "captions.en"} {
		if !slices.Contains(ufe.Valid, want) {
			t.Errorf("Valid = %v, missing %s", ufe.Valid, want)
		}
	}
}

func TestAddOrUpdateOverwrites(t *testing.T) {
	shard := newTestShard(t)
	indexVideo(t, shard, &domain.Video{ID: "a", Title: "Old Title"})
	indexVideo(t, shard, &domain.Video{ID: "a", Title: "New Title"})

	count, err := shard.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("DocCount = %d, want 1", count)
	}

	hits, err := shard.Search(context.Background(), "title:old", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("old title still matches: %+v", hits)
	}
}

func TestCommitClearsUnindexed(t *testing.T) {
	shard := newTestShard(t)
	v := &domain.Video{ID: "a", Title: "Some Video", Unindexed: true}
	indexVideo(t, shard, v)
	if v.Unindexed {
		t.Error("Unindexed not cleared after commit")
	}
}

func TestBatchRemove(t *testing.T) {
	shard := newTestShard(t)
	indexVideo(t, shard, &domain.Video{ID: "a", Title: "Some Video"})

	b := shard.BeginBatch()
	b.Remove("a")
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	count, err := shard.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("DocCount = %d, want 0", count)
	}
}
