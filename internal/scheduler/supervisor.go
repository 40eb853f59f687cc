// Package scheduler runs one worker per target and coordinates shutdown.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/metrics"
	"github.com/hamed0406/webmon/internal/probe"
	"github.com/hamed0406/webmon/internal/registry"
)

var ErrNoTargets = errors.New("no targets to monitor")

// Sink is the writer side the supervisor hands to workers and closes at the end.
type Sink interface {
	ResultWriter
	Close()
}

type Config struct {
	ChecksPerTarget int           // <= 0 runs until ctx is done
	CheckBudget     time.Duration // 0 uses each target's interval
	Retry           probe.RetryPolicy
	Session         probe.SessionOptions
}

// Summary is the outcome of one supervised run.
type Summary struct {
	RunID       string
	Targets     int
	Checks      int
	Failures    int
	WriteErrors int
	Panics      int
	// Completed is true when every worker reached ChecksPerTarget. Always
	// false for unbounded runs.
	Completed bool
	Workers   []WorkerStats
}

type Supervisor struct {
	gate probe.Admitter
	sink Sink
	log  *zap.Logger
	cfg  Config

	sessionOptions func(domain.Target) probe.SessionOptions
}

func NewSupervisor(gate probe.Admitter, sink Sink, log *zap.Logger, cfg Config) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{gate: gate, sink: sink, log: log, cfg: cfg}
}

// WithSessionOptions overrides session options per target.
func (s *Supervisor) WithSessionOptions(fn func(domain.Target) probe.SessionOptions) *Supervisor {
	s.sessionOptions = fn
	return s
}

func (s *Supervisor) optionsFor(t domain.Target) probe.SessionOptions {
	if s.sessionOptions != nil {
		return s.sessionOptions(t)
	}
	return s.cfg.Session
}

// Run starts one worker per target and blocks until all of them stop, either
// because they finished their checks or because ctx was cancelled. The sink
// is closed exactly once, after the last worker returned, or right away when
// there is nothing to monitor. Run may be called again with a fresh sink.
func (s *Supervisor) Run(ctx context.Context, reg *registry.Registry) (Summary, error) {
	if reg == nil || reg.Len() == 0 {
		s.sink.Close()
		return Summary{}, ErrNoTargets
	}
	targets := reg.Targets()
	sum := Summary{RunID: uuid.NewString(), Targets: len(targets)}
	log := s.log.With(zap.String("run_id", sum.RunID))
	log.Info("supervisor_started",
		zap.Int("targets", len(targets)),
		zap.Int("checks_per_target", s.cfg.ChecksPerTarget))

	stats := make([]WorkerStats, len(targets))
	sessions := make([]*probe.Session, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		sess := probe.NewSession(s.optionsFor(t))
		sessions[i] = sess

		wlog := log.With(zap.Int64("target_id", int64(t.ID)), zap.String("url", t.URL))
		exec := probe.NewExecutor(sess, s.gate, s.cfg.Retry)
		exec.OnRetry(func(attempt int, out probe.Outcome) {
			metrics.ObserveRetry(t.URL)
			wlog.Debug("probe_retry", zap.Int("attempt", attempt),
				zap.Stringer("failure", out.Failure), zap.Error(out.Err))
		})
		w := NewWorker(t, exec, s.sink, log, WorkerConfig{
			Checks:      s.cfg.ChecksPerTarget,
			CheckBudget: s.cfg.CheckBudget,
		})

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats[i] = w.Run(ctx)
		}(i)
	}
	wg.Wait()

	for _, sess := range sessions {
		sess.Close()
	}
	s.sink.Close()

	sum.Workers = stats
	sum.Completed = s.cfg.ChecksPerTarget > 0
	for _, st := range stats {
		sum.Checks += st.Checks
		sum.Failures += st.Failures
		sum.WriteErrors += st.WriteErrors
		sum.Panics += st.Panics
		if !st.Completed {
			sum.Completed = false
		}
	}
	log.Info("supervisor_stopped",
		zap.Int("checks", sum.Checks),
		zap.Int("failures", sum.Failures),
		zap.Int("write_errors", sum.WriteErrors),
		zap.Bool("completed", sum.Completed))
	return sum, nil
}
