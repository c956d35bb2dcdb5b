package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/quidnu/subtubular/internal/domain"
	"github.com/quidnu/subtubular/internal/index"
)

func newTestEngine(t *testing.T) (*Engine, *index.Store) {
	t.Helper()
	store, err := index.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return NewEngine(store), store
}

func indexInShard(t *testing.T, store *index.Store, key string, n int, videos ...*domain.Video) {
	t.Helper()
	shard, err := store.GetShard(key, n)
	if err != nil {
		t.Fatalf("GetShard failed: %v", err)
	}
	for _, v := range videos {
		if err := shard.AddOrUpdate(v); err != nil {
			t.Fatalf("AddOrUpdate(%s) failed: %v", v.ID, err)
		}
	}
}

// videoMap serves GetVideoFunc lookups and counts fetches per id.
type videoMap struct {
	videos  map[string]*domain.Video
	fetches map[string]int
}

func newVideoMap(videos ...*domain.Video) *videoMap {
	m := &videoMap{videos: make(map[string]*domain.Video), fetches: make(map[string]int)}
	for _, v := range videos {
		m.videos[v.ID] = v
	}
	return m
}

func (m *videoMap) get(ctx context.Context, id string) (*domain.Video, error) {
	m.fetches[id]++
	v, ok := m.videos[id]
	if !ok {
		return nil, fmt.Errorf("unknown video %s", id)
	}
	return v, nil
}

func collect(t *testing.T, e *Engine, p Params, get GetVideoFunc) []*domain.SearchResult {
	t.Helper()
	var results []*domain.SearchResult
	err := e.Search(context.Background(), p, get, func(r *domain.SearchResult) error {
		results = append(results, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	return results
}

func date(year int) *time.Time {
	d := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.Search(context.Background(), Params{Query: "  "}, nil, nil)
	if err == nil {
		t.Error("empty query accepted")
	}
}

func TestSearchOrdersByScore(t *testing.T) {
	e, store := newTestEngine(t)
	a := &domain.Video{ID: "a", Title: "love love love"}
	b := &domain.Video{ID: "b", Title: "love alone"}
	indexInShard(t, store, "videos", 0, a, b)
	vm := newVideoMap(a, b)

	p := Params{Query: "love", CollectionKey: "videos", ShardNumbers: []int{0}}
	results := collect(t, e, p, vm.get)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Errorf("descending order violated: %f < %f", results[0].Score, results[1].Score)
	}
	if results[0].Video.ID != "a" {
		t.Errorf("first result = %s, want the denser match", results[0].Video.ID)
	}

	p.Order = Order{By: ByScore, Ascending: true}
	ascending := collect(t, e, p, vm.get)
	if ascending[0].Video.ID != results[1].Video.ID {
		t.Errorf("ascending order is not the reverse: %s", ascending[0].Video.ID)
	}
}

func TestSearchOrdersByUploaded(t *testing.T) {
	e, store := newTestEngine(t)
	a := &domain.Video{ID: "a", Title: "love one", Uploaded: date(2020)}
	b := &domain.Video{ID: "b", Title: "love two", Uploaded: date(2021)}
	indexInShard(t, store, "videos", 0, a, b)
	vm := newVideoMap(a, b)

	p := Params{
		Query:         "love",
		Order:         Order{By: ByUploaded},
		CollectionKey: "videos",
		ShardNumbers:  []int{0},
		Relevant:      map[string]*time.Time{"a": a.Uploaded, "b": b.Uploaded},
	}
	results := collect(t, e, p, vm.get)
	if len(results) != 2 || results[0].Video.ID != "b" {
		t.Errorf("newest-first violated: %+v", ids(results))
	}

	p.Order.Ascending = true
	results = collect(t, e, p, vm.get)
	if len(results) != 2 || results[0].Video.ID != "a" {
		t.Errorf("oldest-first violated: %+v", ids(results))
	}
}

func TestSearchResolvesMissingDates(t *testing.T) {
	e, store := newTestEngine(t)
	a := &domain.Video{ID: "a", Title: "love one", Uploaded: date(2020)}
	b := &domain.Video{ID: "b", Title: "love two", Uploaded: date(2021)}
	indexInShard(t, store, "videos", 0, a, b)
	vm := newVideoMap(a, b)

	// Neither date is known up front; ordering must fetch both.
	p := Params{
		Query:         "love",
		Order:         Order{By: ByUploaded},
		CollectionKey: "videos",
		ShardNumbers:  []int{0},
		Relevant:      map[string]*time.Time{"a": nil, "b": nil},
	}
	results := collect(t, e, p, vm.get)
	if len(results) != 2 || results[0].Video.ID != "b" {
		t.Errorf("order after resolution: %+v", ids(results))
	}
	if vm.fetches["a"] != 1 || vm.fetches["b"] != 1 {
		t.Errorf("fetch counts = %v, want one each", vm.fetches)
	}
}

func TestSearchFiltersToRelevantWindow(t *testing.T) {
	e, store := newTestEngine(t)
	a := &domain.Video{ID: "a", Title: "love one"}
	b := &domain.Video{ID: "b", Title: "love two"}
	indexInShard(t, store, "videos", 0, a, b)
	vm := newVideoMap(a, b)

	p := Params{
		Query:         "love",
		CollectionKey: "videos",
		ShardNumbers:  []int{0},
		Relevant:      map[string]*time.Time{"a": nil},
	}
	results := collect(t, e, p, vm.get)
	if len(results) != 1 || results[0].Video.ID != "a" {
		t.Errorf("results = %v, want only a", ids(results))
	}
}

func TestSearchRepairsStaleHit(t *testing.T) {
	e, store := newTestEngine(t)

	// The shard holds the old title; the live video changed upstream and
	// is flagged for re-indexing.
	indexInShard(t, store, "videos", 0, &domain.Video{ID: "a", Title: "love old"})
	live := &domain.Video{ID: "a", Title: "love new", Unindexed: true}
	vm := newVideoMap(live)

	p := Params{Query: "love", CollectionKey: "videos", ShardNumbers: []int{0}}
	results := collect(t, e, p, vm.get)

	if len(results) != 1 {
		t.Fatalf("got %d results, want exactly one", len(results))
	}
	if results[0].Video.Title != "love new" {
		t.Errorf("Title = %q, want the repaired video", results[0].Video.Title)
	}
	if live.Unindexed {
		t.Error("Unindexed not cleared by the repair")
	}
	if vm.fetches["a"] != 1 {
		t.Errorf("fetched %d times, want once per call", vm.fetches["a"])
	}

	// The repair persisted: a fresh search sees the new title directly.
	p2 := Params{Query: "title:new", CollectionKey: "videos", ShardNumbers: []int{0}}
	repaired := collect(t, e, p2, vm.get)
	if len(repaired) != 1 {
		t.Errorf("repaired index misses the new title: %v", ids(repaired))
	}
}

func TestSearchBuildsHighlights(t *testing.T) {
	e, store := newTestEngine(t)
	v := &domain.Video{
		ID:       "a",
		Title:    "Ever-Lasting Love",
		Keywords: []string{"ever", "lastinglove"},
		CaptionTracks: []domain.CaptionTrack{
			{Language: "en", Text: "all about love here"},
		},
	}
	indexInShard(t, store, "videos", 0, v)
	vm := newVideoMap(v)

	p := Params{Query: "love", CollectionKey: "videos", ShardNumbers: []int{0}}
	results := collect(t, e, p, vm.get)
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	r := results[0]

	if r.TitleMatches == nil {
		t.Fatal("no title matches")
	}
	if got := r.TitleMatches.Highlight("<", ">"); got != "Ever-Lasting <Love>" {
		t.Errorf("title highlight = %q", got)
	}
	if len(r.KeywordMatches) == 0 {
		t.Error("no keyword matches for the concatenated field")
	}
	if len(r.CaptionMatches) != 1 || r.CaptionMatches[0].Language != "en" {
		t.Errorf("caption matches = %+v", r.CaptionMatches)
	}
}

func TestParseOrderBy(t *testing.T) {
	for name, want := range map[string]OrderBy{"": ByScore, "score": ByScore, "Uploaded": ByUploaded} {
		got, err := ParseOrderBy(name)
		if err != nil || got != want {
			t.Errorf("ParseOrderBy(%q) = (%v, %v), want %v", name, got, err, want)
		}
	}
	if _, err := ParseOrderBy("views"); err == nil {
		t.Error("unknown ordering accepted")
	}
}

func ids(results []*domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Video.ID
	}
	return out
}
