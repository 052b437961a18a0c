package api

import (
	"context"
	"log/slog"
	"sync"
)

// TaskGroup tracks fire-and-forget background tasks so a shutting-down
// server can wait for in-flight command fulfillments instead of tearing
// them down. Spawning never blocks the caller.
type TaskGroup struct {
	wg sync.WaitGroup
}

// Go runs fn in a new goroutine. The task runs to completion regardless of
// the request that spawned it; a panic is logged and absorbed so one bad
// command cannot take the process down.
func (g *TaskGroup) Go(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked", "panic", r)
			}
		}()
		fn()
	}()
}

// Wait blocks until all spawned tasks finish or ctx expires.
func (g *TaskGroup) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
