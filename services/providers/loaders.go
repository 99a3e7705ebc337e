package providers

import (
	"context"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// runLoaders fans n loader slots out concurrently and waits for all of them.
// A panicking loader must not take the other providers down with it, so each
// slot recovers locally; the slot's contribution stays empty.
func runLoaders(ctx context.Context, n int, run func(i int)) {
	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Provider loader panicked", "panic", r, "stack", string(debug.Stack()))
				}
			}()
			run(i)
			return nil
		})
	}
	// Loaders never return errors; failures degrade to empty contributions.
	_ = g.Wait()
}
