// Package gate bounds the number of probe attempts in flight across all
// targets.
package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/hamed0406/webmon/internal/metrics"
)

// Gate is a fixed-capacity counting limiter. Waiters are admitted in FIFO
// order. It holds no per-target state and is safe for concurrent use.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
	peak     atomic.Int64
}

// New returns a gate admitting at most capacity holders. Capacity below 1 is
// raised to 1.
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	metrics.SetGateCapacity(capacity)
	return &Gate{sem: semaphore.NewWeighted(int64(capacity)), capacity: capacity}
}

// Acquire blocks until a unit is free or ctx is done. On error nothing is held.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := g.inFlight.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	metrics.GateAcquired()
	return nil
}

// Release returns one unit. Every successful Acquire must be paired with
// exactly one Release.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	metrics.GateReleased()
	g.sem.Release(1)
}

func (g *Gate) Capacity() int { return g.capacity }
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Peak is the highest InFlight value seen since the gate was created.
func (g *Gate) Peak() int { return int(g.peak.Load()) }
