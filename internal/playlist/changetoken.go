package playlist

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ChangeToken scopes one task's ownership of a mutable playlist. Releasing
// the token runs the persist action exactly once, whether the task
// finished, failed or was canceled, so mutations made during the run are
// never lost and never written twice.
type ChangeToken struct {
	id      uuid.UUID
	p       *Playlist
	persist func(context.Context) error

	once sync.Once
	err  error
}

// CreateChangeToken issues a token whose Release persists the playlist
// through the given action if it was mutated while the token was held.
func (p *Playlist) CreateChangeToken(persist func(context.Context) error) *ChangeToken {
	return &ChangeToken{id: uuid.New(), p: p, persist: persist}
}

// ID returns the token's unique identity.
func (t *ChangeToken) ID() uuid.UUID { return t.id }

// Release persists the playlist if it is dirty. Subsequent calls are no-ops
// returning the first call's result. Safe to defer on every exit path.
func (t *ChangeToken) Release(ctx context.Context) error {
	t.once.Do(func() {
		if !t.p.Dirty() {
			return
		}
		t.err = t.persist(ctx)
	})
	return t.err
}
