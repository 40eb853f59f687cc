package probe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAborted is returned when shutdown arrives before the first attempt of a
// check could start. No result should be recorded for such a check.
var ErrAborted = errors.New("check aborted before first attempt")

type RetryPolicy struct {
	Attempts       int           // total attempts per check, >= 1
	Backoff        time.Duration // delay after the first failed attempt
	MaxBackoff     time.Duration // cap for the doubling delay; 0 means no cap
	AttemptTimeout time.Duration // per-attempt bound; the check deadline still applies
}

// Delay returns the wait after the n-th failed attempt: Backoff * 2^(n-1), capped.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 || p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Executor runs one scheduled check: gated attempts with retry on transient
// failures. Each attempt holds one unit of the admitter only for its network
// call, never across the backoff wait.
type Executor struct {
	prober  Prober
	gate    Admitter
	policy  RetryPolicy
	onRetry func(attempt int, out Outcome)
}

func NewExecutor(p Prober, gate Admitter, policy RetryPolicy) *Executor {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Executor{prober: p, gate: gate, policy: policy}
}

// OnRetry registers a hook called before each backoff wait.
func (e *Executor) OnRetry(fn func(attempt int, out Outcome)) { e.onRetry = fn }

// Execute performs the check against url. ctx carries the check budget as its
// deadline and is cancelled on shutdown. Cancellation stops further attempts
// and gate waits; an attempt already on the wire is allowed to finish within
// its own timeout.
func (e *Executor) Execute(ctx context.Context, url string) (Outcome, error) {
	var last Outcome
	tried := 0
	for tried < e.policy.Attempts {
		out, err := e.admitted(ctx, url)
		if err != nil {
			if tried > 0 {
				break
			}
			if errors.Is(err, context.DeadlineExceeded) {
				werr := fmt.Errorf("admission wait exceeded check budget: %w", err)
				return Outcome{Err: werr, Failure: FailureTimeout, StartedAt: time.Now()}, nil
			}
			return Outcome{}, ErrAborted
		}
		last = out
		tried++
		last.Attempts = tried

		if last.Err == nil || !Transient(last.Err) || tried == e.policy.Attempts {
			break
		}
		if e.onRetry != nil {
			e.onRetry(tried, last)
		}
		if !sleep(ctx, e.policy.Delay(tried)) {
			break
		}
	}
	return last, nil
}

// admitted runs one attempt while holding a gate unit. The unit is returned
// even if the prober panics.
func (e *Executor) admitted(ctx context.Context, url string) (Outcome, error) {
	if err := e.gate.Acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer e.gate.Release()
	return e.attempt(ctx, url), nil
}

func (e *Executor) attempt(ctx context.Context, url string) Outcome {
	deadline, hasDeadline := ctx.Deadline()
	if t := e.policy.AttemptTimeout; t > 0 {
		if d := time.Now().Add(t); !hasDeadline || d.Before(deadline) {
			deadline, hasDeadline = d, true
		}
	}
	base := context.WithoutCancel(ctx)
	if !hasDeadline {
		return e.prober.Do(base, url)
	}
	actx, cancel := context.WithDeadline(base, deadline)
	defer cancel()
	return e.prober.Do(actx, url)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
