package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_NeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	g := New(capacity)

	var (
		wg      sync.WaitGroup
		current atomic.Int64
		over    atomic.Bool
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			if current.Add(1) > capacity {
				over.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
			g.Release()
		}()
	}
	wg.Wait()

	if over.Load() {
		t.Fatal("more holders than capacity")
	}
	if g.Peak() > capacity || g.Peak() < 1 {
		t.Fatalf("peak %d out of range", g.Peak())
	}
	if g.InFlight() != 0 {
		t.Fatalf("want 0 in flight after all released, got %d", g.InFlight())
	}
}

func TestGate_AcquireHonoursContext(t *testing.T) {
	g := New(1)
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if g.InFlight() != 1 {
		t.Fatalf("failed acquire must not count, got %d", g.InFlight())
	}
	g.Release()
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("capacity not returned: %v", err)
	}
}

func TestGate_Capacity(t *testing.T) {
	if New(0).Capacity() != 1 {
		t.Fatal("capacity below 1 must be raised to 1")
	}
	if New(10).Capacity() != 10 {
		t.Fatal("capacity not kept")
	}
}
