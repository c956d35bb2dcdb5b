// Package pipeline runs one listing or search task per requested scope
// concurrently and merges their streamed output into a single
// consumer-visible sequence, isolating per-scope failures.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quidnu/subtubular/internal/domain"
)

// Task produces one scope's items. emit enqueues without ever blocking on
// the consumer. Returning an error fails the scope; returning the context's
// cancellation error marks it canceled.
type Task[T any] func(ctx context.Context, scope *domain.Scope, emit func(T)) error

// Run executes task once per scope concurrently and funnels the emitted
// items into consume. Item delivery preserves each producer's emission
// order but interleaves across producers.
//
// A failing scope is isolated: its status becomes "failed" with an attached
// notification while sibling scopes keep producing. Cooperative
// cancellation maps to status "canceled" and raises nothing. Only after
// every producer has finished and the consumer has drained the queue does
// Run return the aggregate of the per-scope failures (plus the consumer's
// own error, if any).
func Run[T any](ctx context.Context, scopes []*domain.Scope, task Task[T], consume func(T) error) error {
	q := newQueue[T]()
	scopeErrs := make([]error, len(scopes))

	var wg sync.WaitGroup
	for i, scope := range scopes {
		wg.Add(1)
		go func(i int, scope *domain.Scope) {
			defer wg.Done()
			err := task(ctx, scope, func(v T) { q.in <- v })
			switch {
			case err == nil:
				scope.Report(domain.StatusSearched)
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				scope.Report(domain.StatusCanceled)
			default:
				scope.Report(domain.StatusFailed)
				scope.Notify("search failed", err)
				scopeErrs[i] = fmt.Errorf("%s: %w", scope, err)
			}
		}(i, scope)
	}

	// The queue closes for reading only after every producer, successful
	// or not, has finished.
	go func() {
		wg.Wait()
		close(q.in)
	}()

	var consumeErr error
	for v := range q.out {
		if consumeErr != nil {
			continue // keep draining so producers are joined
		}
		consumeErr = consume(v)
	}

	errs := make([]error, 0, len(scopeErrs)+1)
	if consumeErr != nil {
		errs = append(errs, consumeErr)
	}
	for _, err := range scopeErrs {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
