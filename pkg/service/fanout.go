package service

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for indexes 0..n-1 with at most limit calls in flight.
// With limit 1 the calls run in index order. The first error cancels the
// shared context; tasks not yet started return without calling fn.
func forEach(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) error) error {
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i // per-iteration copy; keeps Go 1.22 loop-variable semantics under go 1.21
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
