package api

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskGroupWaitsForTasks(t *testing.T) {
	var g TaskGroup
	var done atomic.Int32

	release := make(chan struct{})
	for i := 0; i < 5; i++ {
		g.Go(func() {
			<-release
			done.Add(1)
		})
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := done.Load(); got != 5 {
		t.Fatalf("done = %d, want 5", got)
	}
}

func TestTaskGroupWaitHonorsContext(t *testing.T) {
	var g TaskGroup
	release := make(chan struct{})
	g.Go(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); err == nil {
		t.Fatal("expected context error for a task that never finishes")
	}
}

func TestTaskGroupRecoversPanic(t *testing.T) {
	var g TaskGroup
	g.Go(func() { panic("task exploded") })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("wait after panic: %v", err)
	}
}
