package index

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/quidnu/subtubular/internal/domain"
)

// TextIndex is one shard: a bounded, independently persisted text index
// over part of a collection's videos.
//
// All mutations (add/update, batch commit) are serialized by one exclusive
// permit per shard, so a mutation and its persistence never interleave with
// another. Searches intentionally do not take the permit: a search racing a
// commit sees either the old or the new snapshot, both consistent, and the
// query engine's stale repair corrects outdated hits within the same query.
type TextIndex struct {
	key  string
	path string
	idx  bleve.Index
	mu   sync.Mutex
}

// Key returns the shard's composite storage key.
func (t *TextIndex) Key() string { return t.key }

// Path returns the shard's on-disk location.
func (t *TextIndex) Path() string { return t.path }

// DocCount returns the number of indexed videos.
func (t *TextIndex) DocCount() (uint64, error) {
	return t.idx.DocCount()
}

// Close releases the underlying index.
func (t *TextIndex) Close() error {
	return t.idx.Close()
}

// AddOrUpdate inserts or replaces the document keyed by the video's id as
// an implicit single-item batch. On success the video's Unindexed flag is
// cleared.
func (t *TextIndex) AddOrUpdate(v *domain.Video) error {
	b := t.BeginBatch()
	if err := b.AddOrUpdate(v); err != nil {
		return err
	}
	return b.Commit()
}

// Batch brackets one or more mutations for atomic commit and persistence.
type Batch struct {
	t     *TextIndex
	b     *bleve.Batch
	added []*domain.Video
}

// BeginBatch starts a new mutation batch.
func (t *TextIndex) BeginBatch() *Batch {
	return &Batch{t: t, b: t.idx.NewBatch()}
}

// AddOrUpdate stages an insert-or-replace for the video. A duplicate key
// within the batch or against the index overwrites.
func (b *Batch) AddOrUpdate(v *domain.Video) error {
	if err := b.b.Index(v.ID, documentFields(v)); err != nil {
		return fmt.Errorf("stage video %s: %w", v.ID, err)
	}
	b.added = append(b.added, v)
	return nil
}

// Remove stages a delete for the given video id.
func (b *Batch) Remove(id string) {
	b.b.Delete(id)
}

// Commit applies the batch under the shard's mutation permit and persists
// it, then clears the Unindexed flag of every staged video. The batch is
// spent afterwards.
func (b *Batch) Commit() error {
	b.t.mu.Lock()
	defer b.t.mu.Unlock()

	if err := b.t.idx.Batch(b.b); err != nil {
		return fmt.Errorf("commit batch on shard %s: %w", b.t.key, err)
	}
	for _, v := range b.added {
		v.Unindexed = false
	}
	b.added = nil
	b.b = b.t.idx.NewBatch()
	return nil
}

// Hit is one raw query hit: the video id, the shard-local relevance score
// and the match spans per field, ordered by start offset.
type Hit struct {
	ID    string
	Score float64
	Spans map[string][]domain.Span
}

// SearchableFields enumerates the shard's valid field names, static schema
// first, then the dynamic caption fields present in its documents.
func (t *TextIndex) SearchableFields() ([]string, error) {
	return searchableFields(t.idx)
}

// Search runs the fuzzy query and returns raw hits with their match
// locations. It fails with an UnknownFieldError when the query scopes a
// term to a field the shard does not know.
func (t *TextIndex) Search(ctx context.Context, queryStr string, limit int) ([]Hit, error) {
	terms := parseTerms(queryStr)
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty query")
	}

	fields, err := t.SearchableFields()
	if err != nil {
		return nil, err
	}
	if err := validateFields(terms, fields); err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(buildQuery(terms, fields), limit, 0, false)
	req.IncludeLocations = true

	res, err := t.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search shard %s: %w", t.key, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		spans := make(map[string][]domain.Span, len(h.Locations))
		for field, terms := range h.Locations {
			var ss []domain.Span
			for _, locs := range terms {
				for _, l := range locs {
					ss = append(ss, domain.Span{Start: int(l.Start), Length: int(l.End - l.Start)})
				}
			}
			sort.Slice(ss, func(i, j int) bool {
				if ss[i].Start != ss[j].Start {
					return ss[i].Start < ss[j].Start
				}
				return ss[i].Length < ss[j].Length
			})
			// The fuzzy and wildcard legs of the query may report the
			// same location twice.
			spans[field] = slices.Compact(ss)
		}
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Spans: spans})
	}
	return hits, nil
}
