package domain

import "context"

// VideoSource fetches or cache-loads one video's metadata, including caption
// transcripts. Implementations decide how scopeHint influences caching.
type VideoSource interface {
	GetVideo(ctx context.Context, id string, scopeHint string) (*Video, error)
}

// DataStore is the persistence sink for cached collection state. It is
// invoked by a playlist change-token's persist action.
type DataStore interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
