package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quidnu/subtubular/internal/domain"
	"github.com/quidnu/subtubular/internal/index"
	"github.com/quidnu/subtubular/internal/playlist"
	"github.com/quidnu/subtubular/internal/search"
)

// VideosCollectionKey files explicitly listed videos, which belong to no
// channel or playlist, under one shared collection.
const VideosCollectionKey = "videos"

// Refresher syncs a collection's known video list against upstream truth.
// The sync may continue in the background; the returned wait function joins
// it and is nil when nothing was started.
type Refresher interface {
	RefreshPlaylist(ctx context.Context, scope *domain.Scope, pl *playlist.Playlist) (wait func() error, err error)
}

// Pipeline bundles the collaborators shared by all scope tasks.
type Pipeline struct {
	Source      domain.VideoSource
	Store       *index.Store
	Engine      *search.Engine
	Data        domain.DataStore
	Refresher   Refresher
	Concurrency int
}

func (p *Pipeline) concurrency() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return search.DefaultFetchConcurrency
}

// SearchTask builds the per-scope task running the given query and
// streaming its results.
func (p *Pipeline) SearchTask(query string, order search.Order, limit int) Task[*domain.SearchResult] {
	return func(ctx context.Context, scope *domain.Scope, emit func(*domain.SearchResult)) error {
		if scope.Type == domain.ScopeVideos {
			return p.searchVideos(ctx, scope, query, order, limit, emit)
		}
		return p.searchCollection(ctx, scope, query, order, limit, emit)
	}
}

// ListTask builds the per-scope task streaming the windowed videos that
// already carry the requested field.
func (p *Pipeline) ListTask(hasField func(*domain.Video) bool) Task[*domain.Video] {
	return func(ctx context.Context, scope *domain.Scope, emit func(*domain.Video)) error {
		if scope.Type == domain.ScopeVideos {
			return p.listVideos(ctx, scope, hasField, emit)
		}
		return p.listCollection(ctx, scope, hasField, emit)
	}
}

// acquirePlaylist loads the scope's cached playlist and issues the change
// token that persists it on release.
func (p *Pipeline) acquirePlaylist(ctx context.Context, scope *domain.Scope) (*playlist.Playlist, *playlist.ChangeToken, error) {
	key := scope.StorageKey()
	pl, err := playlist.Load(ctx, p.Data, key)
	if err != nil {
		return nil, nil, err
	}
	token := pl.CreateChangeToken(func(ctx context.Context) error {
		data, err := pl.Encode()
		if err != nil {
			return err
		}
		return p.Data.Set(ctx, key, data)
	})
	return pl, token, nil
}

// beginRefresh starts a background refresh when the cache is stale. When
// nothing is cached yet it awaits the refresh, since there is no window to
// work on before the first sync.
func (p *Pipeline) beginRefresh(ctx context.Context, scope *domain.Scope, pl *playlist.Playlist) (func() error, error) {
	if p.Refresher == nil || !pl.Stale(scope.Freshness) {
		return nil, nil
	}
	wait, err := p.Refresher.RefreshPlaylist(ctx, scope, pl)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", scope, err)
	}
	if wait != nil && len(pl.GetVideos()) == 0 {
		if err := wait(); err != nil {
			return nil, fmt.Errorf("refresh %s: %w", scope, err)
		}
		return nil, nil
	}
	return wait, nil
}

func (p *Pipeline) searchCollection(ctx context.Context, scope *domain.Scope, query string, order search.Order, limit int, emit func(*domain.SearchResult)) (err error) {
	key := scope.StorageKey()
	pl, token, err := p.acquirePlaylist(ctx, scope)
	if err != nil {
		return err
	}
	defer func() {
		// Mutations made during the run persist exactly once on every
		// exit path, cancellation included.
		if perr := token.Release(context.WithoutCancel(ctx)); perr != nil && err == nil {
			err = perr
		}
	}()

	wait, err := p.beginRefresh(ctx, scope, pl)
	if err != nil {
		return err
	}

	window := windowOf(pl.GetVideos(), scope.Skip, scope.Take)
	ids := videoIDs(window)
	scope.QueueVideos(ids)
	scope.Report(domain.StatusSearching)

	if err := p.indexUnindexed(ctx, key, pl, window); err != nil {
		return err
	}

	relevant := make(map[string]*time.Time, len(window))
	var shardNumbers []int
	seen := make(map[int]bool)
	for _, v := range window {
		relevant[v.ID] = v.Uploaded
		if !seen[v.ShardNumber] {
			seen[v.ShardNumber] = true
			shardNumbers = append(shardNumbers, v.ShardNumber)
		}
	}

	getVideo := func(ctx context.Context, id string) (*domain.Video, error) {
		if v := pl.Get(id); v != nil {
			return v, nil
		}
		v, err := p.Source.GetVideo(ctx, id, key)
		if err != nil {
			return nil, err
		}
		pl.Update(v)
		return v, nil
	}

	err = p.Engine.Search(ctx, search.Params{
		Query:            query,
		Order:            order,
		CollectionKey:    key,
		ShardNumbers:     shardNumbers,
		Relevant:         relevant,
		Playlist:         pl,
		Limit:            limit,
		FetchConcurrency: p.concurrency(),
	}, getVideo, func(r *domain.SearchResult) error {
		emit(r)
		return nil
	})
	for _, id := range ids {
		scope.ReportVideo(id, domain.StatusSearched)
	}
	if err != nil {
		return err
	}

	// The synchronous window is done; the scope counts as searched even
	// while the background refresh keeps running.
	scope.Report(domain.StatusSearched)
	if wait != nil {
		if err := wait(); err != nil {
			return fmt.Errorf("background refresh of %s: %w", scope, err)
		}
	}
	return nil
}

func (p *Pipeline) searchVideos(ctx context.Context, scope *domain.Scope, query string, order search.Order, limit int, emit func(*domain.SearchResult)) error {
	ids := normalizeIDs(scope.VideoIDs)
	if len(ids) == 0 {
		return errors.New("no video ids given")
	}
	scope.QueueVideos(ids)
	scope.Report(domain.StatusSearching)

	videos, err := p.fetchAll(ctx, scope, ids)
	if err != nil {
		return err
	}

	byID := make(map[string]*domain.Video, len(videos))
	relevant := make(map[string]*time.Time, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
		relevant[v.ID] = v.Uploaded
	}

	if err := p.indexUnindexed(ctx, VideosCollectionKey, nil, videos); err != nil {
		return err
	}

	var shardNumbers []int
	seen := make(map[int]bool)
	for _, v := range videos {
		if !seen[v.ShardNumber] {
			seen[v.ShardNumber] = true
			shardNumbers = append(shardNumbers, v.ShardNumber)
		}
	}

	getVideo := func(ctx context.Context, id string) (*domain.Video, error) {
		if v, ok := byID[id]; ok {
			return v, nil
		}
		return p.Source.GetVideo(ctx, id, VideosCollectionKey)
	}

	return p.Engine.Search(ctx, search.Params{
		Query:            query,
		Order:            order,
		CollectionKey:    VideosCollectionKey,
		ShardNumbers:     shardNumbers,
		Relevant:         relevant,
		Limit:            limit,
		FetchConcurrency: p.concurrency(),
	}, getVideo, func(r *domain.SearchResult) error {
		emit(r)
		return nil
	})
}

func (p *Pipeline) listCollection(ctx context.Context, scope *domain.Scope, hasField func(*domain.Video) bool, emit func(*domain.Video)) (err error) {
	pl, token, err := p.acquirePlaylist(ctx, scope)
	if err != nil {
		return err
	}
	defer func() {
		if perr := token.Release(context.WithoutCancel(ctx)); perr != nil && err == nil {
			err = perr
		}
	}()

	wait, err := p.beginRefresh(ctx, scope, pl)
	if err != nil {
		return err
	}

	window := windowOf(pl.GetVideos(), scope.Skip, scope.Take)
	scope.QueueVideos(videoIDs(window))
	scope.Report(domain.StatusSearching)

	for _, v := range window {
		if hasField(v) {
			emit(v)
		}
		// Reported regardless: videos still missing the field get picked
		// up by the refresh for the next run.
		scope.ReportVideo(v.ID, domain.StatusSearched)
	}

	scope.Report(domain.StatusSearched)
	if wait != nil {
		if err := wait(); err != nil {
			return fmt.Errorf("background refresh of %s: %w", scope, err)
		}
	}
	return nil
}

func (p *Pipeline) listVideos(ctx context.Context, scope *domain.Scope, hasField func(*domain.Video) bool, emit func(*domain.Video)) error {
	ids := normalizeIDs(scope.VideoIDs)
	if len(ids) == 0 {
		return errors.New("no video ids given")
	}
	scope.QueueVideos(ids)
	scope.Report(domain.StatusSearching)

	videos, err := p.fetchAll(ctx, scope, ids)
	if err != nil {
		return err
	}
	for _, v := range videos {
		if hasField(v) {
			emit(v)
		}
	}
	return nil
}

// fetchAll resolves the given ids against the source with bounded
// concurrency, reporting per-video status transitions. Fetch failures are
// aggregated; successfully fetched videos are still returned so partial
// progress is visible on the scope.
func (p *Pipeline) fetchAll(ctx context.Context, scope *domain.Scope, ids []string) ([]*domain.Video, error) {
	videos := make([]*domain.Video, len(ids))
	errCh := make(chan error, len(ids))
	sem := make(chan struct{}, p.concurrency())
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			scope.ReportVideo(id, domain.StatusSearching)
			v, err := p.Source.GetVideo(ctx, id, scope.StorageKey())
			if err != nil {
				scope.ReportVideo(id, domain.StatusFailed)
				errCh <- fmt.Errorf("fetch video %s: %w", id, err)
				return
			}
			videos[i] = v
			scope.ReportVideo(id, domain.StatusSearched)
		}(i, id)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return videos, nil
}

// indexUnindexed merges the unindexed videos of the window into their
// shards, one atomic batch per shard. Videos cached without caption data
// are fetched in full first and written back to the playlist.
func (p *Pipeline) indexUnindexed(ctx context.Context, key string, pl *playlist.Playlist, window []*domain.Video) error {
	byShard := make(map[int][]*domain.Video)
	var order []int
	for _, v := range window {
		if !v.Unindexed {
			continue
		}
		if _, ok := byShard[v.ShardNumber]; !ok {
			order = append(order, v.ShardNumber)
		}
		byShard[v.ShardNumber] = append(byShard[v.ShardNumber], v)
	}

	for _, n := range order {
		shard, err := p.Store.GetShard(key, n)
		if err != nil {
			return err
		}
		batch := shard.BeginBatch()
		for _, v := range byShard[n] {
			full := v
			if len(full.CaptionTracks) == 0 {
				full, err = p.Source.GetVideo(ctx, v.ID, key)
				if err != nil {
					return fmt.Errorf("fetch video %s: %w", v.ID, err)
				}
				full.ShardNumber = v.ShardNumber
				full.Unindexed = true
				if pl != nil {
					pl.Update(full)
				}
			}
			if err := batch.AddOrUpdate(full); err != nil {
				return err
			}
		}
		if err := batch.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func windowOf(videos []*domain.Video, skip, take int) []*domain.Video {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(videos) {
		return nil
	}
	end := len(videos)
	if take > 0 && skip+take < end {
		end = skip + take
	}
	return videos[skip:end]
}

func videoIDs(videos []*domain.Video) []string {
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	return ids
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
