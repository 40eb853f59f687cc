package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// scripted prober: returns the queued outcomes in order, then the last one forever
type scriptProber struct {
	mu    sync.Mutex
	outs  []Outcome
	calls int
}

func (s *scriptProber) Do(ctx context.Context, url string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.outs) {
		i = len(s.outs) - 1
	}
	s.calls++
	out := s.outs[i]
	out.StartedAt = time.Now()
	return out
}

type countingGate struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (g *countingGate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	g.acquired++
	g.mu.Unlock()
	return nil
}

func (g *countingGate) Release() {
	g.mu.Lock()
	g.released++
	g.mu.Unlock()
}

// blockingGate never admits anyone.
type blockingGate struct{}

func (blockingGate) Acquire(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (blockingGate) Release()                          {}

var (
	timeoutOut = Outcome{Err: fmt.Errorf("get: %w", context.DeadlineExceeded), Failure: FailureTimeout}
	okOut      = Outcome{StatusCode: 200, Body: []byte("ok")}
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, AttemptTimeout: time.Second}
}

func TestExecutor_SucceedsAfterRetry(t *testing.T) {
	p := &scriptProber{outs: []Outcome{timeoutOut, okOut}}
	g := &countingGate{}
	var retried []int
	ex := NewExecutor(p, g, fastPolicy(3))
	ex.OnRetry(func(n int, _ Outcome) { retried = append(retried, n) })

	out, err := ex.Execute(context.Background(), "https://a.test:443")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.StatusCode != 200 || out.Attempts != 2 {
		t.Fatalf("want 200 after 2 attempts, got %d after %d", out.StatusCode, out.Attempts)
	}
	if g.acquired != 2 || g.released != 2 {
		t.Fatalf("gate unbalanced: acquired=%d released=%d", g.acquired, g.released)
	}
	if len(retried) != 1 || retried[0] != 1 {
		t.Fatalf("want one retry hook call, got %v", retried)
	}
}

func TestExecutor_HTTPErrorIsFinal(t *testing.T) {
	p := &scriptProber{outs: []Outcome{{StatusCode: 500}}}
	out, err := NewExecutor(p, &countingGate{}, fastPolicy(3)).Execute(context.Background(), "u")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.StatusCode != 500 || p.calls != 1 || out.Attempts != 1 {
		t.Fatalf("want single 500 attempt, got %+v calls=%d", out, p.calls)
	}
}

func TestExecutor_NonTransientTransportErrorIsFinal(t *testing.T) {
	p := &scriptProber{outs: []Outcome{{Err: errors.New("x509: certificate has expired"), Failure: FailureTransport}}}
	out, _ := NewExecutor(p, &countingGate{}, fastPolicy(3)).Execute(context.Background(), "u")
	if p.calls != 1 || out.Failure != FailureTransport {
		t.Fatalf("want single attempt, got calls=%d out=%+v", p.calls, out)
	}
}

func TestExecutor_ExhaustsRetries(t *testing.T) {
	p := &scriptProber{outs: []Outcome{timeoutOut}}
	g := &countingGate{}
	out, err := NewExecutor(p, g, fastPolicy(4)).Execute(context.Background(), "u")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if p.calls != 4 || out.Attempts != 4 || out.Failure != FailureTimeout {
		t.Fatalf("want 4 timed out attempts, got calls=%d out=%+v", p.calls, out)
	}
	if g.acquired != g.released {
		t.Fatalf("gate unbalanced: %d/%d", g.acquired, g.released)
	}
}

func TestExecutor_RetriesStayInsideBudget(t *testing.T) {
	p := &scriptProber{outs: []Outcome{timeoutOut}}
	policy := RetryPolicy{Attempts: 5, Backoff: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	out, err := NewExecutor(p, &countingGate{}, policy).Execute(ctx, "u")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("retries overran the budget: %v", time.Since(start))
	}
	if out.Attempts != 1 || out.Failure != FailureTimeout {
		t.Fatalf("want the single attempt's outcome, got %+v", out)
	}
}

func TestExecutor_AbortedBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptProber{outs: []Outcome{okOut}}
	_, err := NewExecutor(p, &countingGate{}, fastPolicy(3)).Execute(ctx, "u")
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("want ErrAborted, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("prober must not be called, got %d", p.calls)
	}
}

func TestExecutor_GateStarvationIsATimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := &scriptProber{outs: []Outcome{okOut}}
	out, err := NewExecutor(p, blockingGate{}, fastPolicy(3)).Execute(ctx, "u")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Failure != FailureTimeout || out.Attempts != 0 || p.calls != 0 {
		t.Fatalf("want timeout without attempts, got %+v calls=%d", out, p.calls)
	}
}

// slowProber finishes after d and reports whether its context was cancelled.
type slowProber struct{ d time.Duration }

func (s slowProber) Do(ctx context.Context, url string) Outcome {
	select {
	case <-time.After(s.d):
		return Outcome{StatusCode: 200, StartedAt: time.Now()}
	case <-ctx.Done():
		return Outcome{Err: ctx.Err(), Failure: FailureOf(ctx.Err()), StartedAt: time.Now()}
	}
}

func TestExecutor_InFlightAttemptSurvivesShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	out, err := NewExecutor(slowProber{d: 60 * time.Millisecond}, &countingGate{}, fastPolicy(1)).Execute(ctx, "u")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.StatusCode != 200 {
		t.Fatalf("in-flight attempt was cut short: %+v", out)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Backoff: 100 * time.Millisecond, MaxBackoff: time.Second}
	want := []time.Duration{0, 100, 200, 400, 800, 1000, 1000}
	for n, w := range want {
		if got := p.Delay(n); got != w*time.Millisecond {
			t.Fatalf("Delay(%d)=%v want %v", n, got, w*time.Millisecond)
		}
	}
	if d := (RetryPolicy{Backoff: 10 * time.Millisecond}).Delay(4); d != 80*time.Millisecond {
		t.Fatalf("uncapped Delay(4)=%v", d)
	}
}

type panicProber struct{}

func (panicProber) Do(ctx context.Context, url string) Outcome { panic("boom") }

func TestExecutor_PanicReturnsGateUnit(t *testing.T) {
	g := &countingGate{}
	func() {
		defer func() { _ = recover() }()
		_, _ = NewExecutor(panicProber{}, g, fastPolicy(1)).Execute(context.Background(), "u")
	}()
	if g.acquired != 1 || g.released != 1 {
		t.Fatalf("gate unit leaked: acquired=%d released=%d", g.acquired, g.released)
	}
}
