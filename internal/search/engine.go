package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quidnu/subtubular/internal/domain"
	"github.com/quidnu/subtubular/internal/index"
)

const (
	// DefaultLimit caps raw hits per shard when the caller does not.
	DefaultLimit = 100

	// DefaultFetchConcurrency bounds concurrent video fetches while
	// resolving upload dates.
	DefaultFetchConcurrency = 4
)

// OrderBy selects the result ordering key.
type OrderBy int

const (
	// ByScore orders by relevance score (the default).
	ByScore OrderBy = iota
	// ByUploaded orders by upload date, resolving missing dates.
	ByUploaded
)

// Order is the requested result ordering. The zero value is score
// descending.
type Order struct {
	By        OrderBy
	Ascending bool
}

// ParseOrderBy maps a user-facing ordering name to its OrderBy. The empty
// string means ByScore.
func ParseOrderBy(name string) (OrderBy, error) {
	switch strings.ToLower(name) {
	case "", "score":
		return ByScore, nil
	case "uploaded":
		return ByUploaded, nil
	default:
		return ByScore, fmt.Errorf("unknown ordering %q, expected score or uploaded", name)
	}
}

// GetVideoFunc fetches or cache-loads one video's current metadata.
type GetVideoFunc func(ctx context.Context, id string) (*domain.Video, error)

// VideoUpdater receives videos whose upload date was resolved during
// ordering, so the caller's cached playlist picks the date up as a side
// effect of the search.
type VideoUpdater interface {
	Update(v *domain.Video)
}

// Params describes one search call.
type Params struct {
	// Query is the fuzzy full-text query. Must be non-empty.
	Query string

	// Order is the requested result ordering.
	Order Order

	// CollectionKey and ShardNumbers select the shards in scope.
	CollectionKey string
	ShardNumbers  []int

	// Relevant, when non-nil, constrains hits to a caller-defined active
	// window of video ids, mapped to their upload date where known. Hits
	// outside the window are dropped even if the shards hold more.
	Relevant map[string]*time.Time

	// Playlist, when non-nil, receives videos whose upload date was
	// resolved during ordering.
	Playlist VideoUpdater

	// Limit caps raw hits per shard. 0 means DefaultLimit.
	Limit int

	// FetchConcurrency bounds concurrent date-resolution fetches.
	// 0 means DefaultFetchConcurrency.
	FetchConcurrency int
}

// Engine executes queries against one or more shards, reconciles index
// hits with live video metadata, orders results and lazily repairs stale
// index entries within the same call.
type Engine struct {
	store *index.Store
}

// NewEngine creates a query engine over the given shard store.
func NewEngine(store *index.Store) *Engine {
	return &Engine{store: store}
}

// shardHit pairs a raw hit with the shard that produced it, so a stale hit
// can be re-indexed in place.
type shardHit struct {
	index.Hit
	shard *index.TextIndex
	video *domain.Video
}

// Search streams results to yield. Results are delivered lazily in final
// order: the ordered fresh hits first. If stale entries were discovered
// and repaired, the results of one retry pass restricted to
// the repaired videos. Returning an error from yield aborts the search.
func (e *Engine) Search(ctx context.Context, p Params, getVideo GetVideoFunc, yield func(*domain.SearchResult) error) error {
	if strings.TrimSpace(p.Query) == "" {
		return errors.New("query must not be empty")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var shards []*index.TextIndex
	for _, n := range p.ShardNumbers {
		t, err := e.store.Get(index.ShardKey(p.CollectionKey, n))
		if err != nil {
			return err
		}
		if t != nil {
			shards = append(shards, t)
		}
	}

	// Videos fetched once per call; the retry pass serves these instances
	// instead of re-fetching.
	fetched := make(map[string]*domain.Video)
	relevant := p.Relevant

	// Stale repair runs as a worklist: each iteration queries, yields the
	// fresh hits and re-indexes the stale ones, then retries restricted
	// to exactly those. A repaired video is no longer flagged, so every
	// video is retried at most once and the loop is bounded.
	for {
		var hits []*shardHit
		for _, sh := range shards {
			raw, err := sh.Search(ctx, p.Query, limit)
			if err != nil {
				return err
			}
			for _, h := range raw {
				if relevant != nil {
					if _, ok := relevant[h.ID]; !ok {
						continue
					}
				}
				hits = append(hits, &shardHit{Hit: h, shard: sh})
			}
		}

		if len(hits) > 1 {
			if err := e.order(ctx, p, hits, relevant, fetched, getVideo); err != nil {
				return err
			}
		}

		var stale []*shardHit
		for _, h := range hits {
			v := h.video
			if v == nil {
				v = fetched[h.ID]
			}
			if v == nil {
				var err error
				v, err = getVideo(ctx, h.ID)
				if err != nil {
					return fmt.Errorf("fetch video %s: %w", h.ID, err)
				}
				fetched[h.ID] = v
			}
			h.video = v
			if v.Unindexed {
				// Skipped without raising; repaired and retried below.
				stale = append(stale, h)
				continue
			}
			if err := yield(buildResult(v, h.Hit)); err != nil {
				return err
			}
		}

		if len(stale) == 0 {
			return nil
		}

		if err := reindex(stale); err != nil {
			return err
		}

		// Restrict the next pass to the repaired videos.
		relevant = make(map[string]*time.Time, len(stale))
		shards = shards[:0]
		seen := make(map[string]bool)
		for _, h := range stale {
			relevant[h.ID] = h.video.Uploaded
			if !seen[h.shard.Key()] {
				seen[h.shard.Key()] = true
				shards = append(shards, h.shard)
			}
		}
	}
}

// order sorts hits in place by the requested key. Sorting is stable, so
// ties preserve the index-returned relative order. Ordering by upload date
// resolves missing dates by fetching the videos concurrently; any fetch
// failure aborts the search with an aggregate error.
func (e *Engine) order(ctx context.Context, p Params, hits []*shardHit, relevant map[string]*time.Time, fetched map[string]*domain.Video, getVideo GetVideoFunc) error {
	if p.Order.By == ByUploaded {
		if err := e.resolveDates(ctx, p, hits, relevant, fetched, getVideo); err != nil {
			return err
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		var c int
		if p.Order.By == ByUploaded {
			c = uploadedOf(a, relevant).Compare(uploadedOf(b, relevant))
		} else {
			c = cmp.Compare(a.Score, b.Score)
		}
		if p.Order.Ascending {
			return c < 0
		}
		return c > 0
	})
	return nil
}

func uploadedOf(h *shardHit, relevant map[string]*time.Time) time.Time {
	if h.video != nil && h.video.Uploaded != nil {
		return *h.video.Uploaded
	}
	if relevant != nil {
		if d, ok := relevant[h.ID]; ok && d != nil {
			return *d
		}
	}
	return time.Time{}
}

// resolveDates fetches the videos whose upload date is unknown, bounded by
// the configured concurrency, and writes resolved dates back into the
// caller's playlist.
func (e *Engine) resolveDates(ctx context.Context, p Params, hits []*shardHit, relevant map[string]*time.Time, fetched map[string]*domain.Video, getVideo GetVideoFunc) error {
	var missing []*shardHit
	for _, h := range hits {
		if d, ok := relevant[h.ID]; ok && d != nil {
			continue
		}
		if v, ok := fetched[h.ID]; ok {
			h.video = v
			continue
		}
		missing = append(missing, h)
	}
	if len(missing) == 0 {
		return nil
	}

	concurrency := p.FetchConcurrency
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}

	sem := make(chan struct{}, concurrency)
	errCh := make(chan error, len(missing))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, h := range missing {
		wg.Add(1)
		go func(h *shardHit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			v, err := getVideo(ctx, h.ID)
			if err != nil {
				errCh <- fmt.Errorf("resolve upload date of %s: %w", h.ID, err)
				return
			}
			mu.Lock()
			h.video = v
			fetched[h.ID] = v
			mu.Unlock()
			if p.Playlist != nil && v.Uploaded != nil {
				p.Playlist.Update(v)
			}
		}(h)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// reindex removes and re-adds the stale videos, one atomic batch per shard.
func reindex(stale []*shardHit) error {
	batches := make(map[*index.TextIndex]*index.Batch)
	var order []*index.TextIndex
	for _, h := range stale {
		b, ok := batches[h.shard]
		if !ok {
			b = h.shard.BeginBatch()
			batches[h.shard] = b
			order = append(order, h.shard)
		}
		b.Remove(h.ID)
		if err := b.AddOrUpdate(h.video); err != nil {
			return err
		}
	}
	for _, sh := range order {
		if err := batches[sh].Commit(); err != nil {
			return err
		}
	}
	return nil
}

// buildResult materializes one hit against the live video, clipping every
// span to its field's bounds.
func buildResult(v *domain.Video, h index.Hit) *domain.SearchResult {
	r := &domain.SearchResult{Video: v, Score: h.Score}

	if spans := clipSpans(h.Spans[domain.FieldTitle], len(v.Title)); len(spans) > 0 {
		r.TitleMatches = &domain.MatchedText{Text: v.Title, Spans: spans}
	}
	if spans := clipSpans(h.Spans[domain.FieldDescription], len(v.Description)); len(spans) > 0 {
		r.DescMatches = &domain.MatchedText{Text: v.Description, Spans: spans}
	}
	if spans := h.Spans[domain.FieldKeywords]; len(spans) > 0 {
		r.KeywordMatches = MapKeywordMatches(v.Keywords, spans)
	}

	for field, spans := range h.Spans {
		if !strings.HasPrefix(field, domain.CaptionFieldPrefix) {
			continue
		}
		lang := strings.TrimPrefix(field, domain.CaptionFieldPrefix)
		track := v.CaptionTrack(lang)
		if track == nil {
			continue
		}
		clipped := clipSpans(spans, len(track.Text))
		if len(clipped) == 0 {
			continue
		}
		r.CaptionMatches = append(r.CaptionMatches, domain.CaptionMatch{
			Language:    lang,
			MatchedText: domain.MatchedText{Text: track.Text, Spans: clipped},
		})
	}
	sort.Slice(r.CaptionMatches, func(i, j int) bool {
		return r.CaptionMatches[i].Language < r.CaptionMatches[j].Language
	})
	return r
}

func clipSpans(spans []domain.Span, textLen int) []domain.Span {
	var out []domain.Span
	for _, s := range spans {
		if s.Start < 0 || s.Start >= textLen || s.Length <= 0 {
			continue
		}
		if s.End() > textLen {
			s.Length = textLen - s.Start
		}
		out = append(out, s)
	}
	return out
}
