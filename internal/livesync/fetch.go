package livesync

import (
	"context"
	"sync"
)

// Fetch runs q once: it subscribes, waits for the first snapshot and cancels. Index refusals fall back the
// same way Watch does.
func Fetch(ctx context.Context, backend Backend, q Query) ([]Document, error) {
	type result struct {
		docs []Document
		err  error
	}
	done := make(chan result, 1)
	var once sync.Once
	finish := func(r result) {
		once.Do(func() { done <- r })
	}

	sub, err := Watch(ctx, backend, InlineLoop{}, q,
		func(docs []Document) { finish(result{docs: docs}) },
		func(err error) { finish(result{err: err}) },
	)
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	select {
	case r := <-done:
		return r.docs, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
