package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/quidnu/subtubular/internal/domain"
	"github.com/quidnu/subtubular/internal/index"
	"github.com/quidnu/subtubular/internal/pipeline"
)

// ClearRequest selects what clear-index removes. Scopes and the access age
// combine conjunctively; with no scope the age alone selects.
type ClearRequest struct {
	Channels  []string
	Playlists []string

	// Videos clears the shared collection of explicitly searched videos.
	Videos bool

	// NotAccessedFor keeps anything accessed more recently than this.
	NotAccessedFor time.Duration

	// Simulate lists what would be removed without removing it.
	Simulate bool
}

// ClearIndex removes the selected shards and their cached video lists,
// writing the affected shard keys to out.
func (a *App) ClearIndex(ctx context.Context, req ClearRequest, out io.Writer) error {
	var collections []string
	for _, id := range req.Channels {
		collections = append(collections, (&domain.Scope{Type: domain.ScopeChannel, ID: id}).StorageKey())
	}
	for _, id := range req.Playlists {
		collections = append(collections, (&domain.Scope{Type: domain.ScopePlaylist, ID: id}).StorageKey())
	}
	if req.Videos {
		collections = append(collections, pipeline.VideosCollectionKey)
	}
	if len(collections) == 0 && req.NotAccessedFor <= 0 {
		return errors.New("nothing selected: pass a scope or --not-accessed-for")
	}

	var cleared []string
	if len(collections) == 0 {
		keys, err := a.Store.Delete(index.DeleteOptions{
			NotAccessedFor: req.NotAccessedFor,
			Simulate:       req.Simulate,
		})
		if err != nil {
			return err
		}
		cleared = keys
	} else {
		for _, key := range collections {
			// Shards of a collection are keyed "<key>.<number>".
			keys, err := a.Store.Delete(index.DeleteOptions{
				KeyPrefix:      key + ".",
				NotAccessedFor: req.NotAccessedFor,
				Simulate:       req.Simulate,
			})
			if err != nil {
				return err
			}
			cleared = append(cleared, keys...)
			if !req.Simulate {
				if err := a.Data.Delete(ctx, key); err != nil {
					return err
				}
			}
		}
	}

	if !req.Simulate && len(collections) == 0 && req.NotAccessedFor > 0 {
		n, err := a.Data.DeleteNotAccessedFor(ctx, req.NotAccessedFor)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d stale cache entries removed\n", n)
	}

	verb := "cleared"
	if req.Simulate {
		verb = "would clear"
	}
	for _, key := range cleared {
		fmt.Fprintf(out, "%s %s\n", verb, key)
	}
	if len(cleared) == 0 {
		fmt.Fprintln(out, "nothing to clear")
	}
	return nil
}
