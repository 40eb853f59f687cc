package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/webmon/internal/classify"
	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/metrics"
	"github.com/hamed0406/webmon/internal/probe"
)

// Executor runs one check, retries included.
type Executor interface {
	Execute(ctx context.Context, url string) (probe.Outcome, error)
}

// ResultWriter persists one result. Errors are expected to be transient.
type ResultWriter interface {
	Write(ctx context.Context, r *domain.CheckResult) error
}

type WorkerConfig struct {
	Checks      int           // checks to run; <= 0 runs until ctx is done
	CheckBudget time.Duration // cap for one check; 0 or above the interval means the interval
}

// WorkerStats summarizes one worker's run.
type WorkerStats struct {
	TargetID    domain.TargetID
	URL         string
	Checks      int // results produced
	Failures    int // results with success=false
	WriteErrors int
	Panics      int
	Completed   bool // reached the configured number of checks
}

// Worker owns the schedule of exactly one target. Checks run serially: the
// next check starts one interval after the previous one started, or right
// away when the previous one overran.
type Worker struct {
	target  domain.Target
	exec    Executor
	matcher *classify.Matcher
	writer  ResultWriter
	log     *zap.Logger
	cfg     WorkerConfig
}

func NewWorker(t domain.Target, exec Executor, w ResultWriter, log *zap.Logger, cfg WorkerConfig) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	wk := &Worker{
		target:  t,
		exec:    exec,
		matcher: classify.NewMatcher(t.Pattern),
		writer:  w,
		log:     log.With(zap.Int64("target_id", int64(t.ID)), zap.String("url", t.URL)),
		cfg:     cfg,
	}
	if wk.matcher != nil && wk.matcher.Literal() {
		wk.log.Warn("pattern_matched_literally", zap.String("pattern", wk.matcher.Pattern()))
	}
	return wk
}

func (w *Worker) budget() time.Duration {
	iv := w.target.Interval()
	if b := w.cfg.CheckBudget; b > 0 && b < iv {
		return b
	}
	return iv
}

// Run loops until the configured number of checks is reached or ctx is
// cancelled. A check already running when ctx is cancelled is finished and
// recorded; no new check starts.
func (w *Worker) Run(ctx context.Context) WorkerStats {
	stats := WorkerStats{TargetID: w.target.ID, URL: w.target.URL}
	next := time.Now()
	for w.cfg.Checks <= 0 || stats.Checks < w.cfg.Checks {
		if !waitUntil(ctx, next) {
			break
		}
		start := time.Now()
		next = start.Add(w.target.Interval())

		res, err := w.check(ctx, start, &stats)
		if errors.Is(err, probe.ErrAborted) {
			break
		}
		stats.Checks++
		if !res.Success {
			stats.Failures++
		}
		metrics.ObserveCheck(w.target.URL, *res)

		if err := w.write(ctx, res, &stats); err != nil {
			stats.WriteErrors++
		}
	}
	stats.Completed = w.cfg.Checks > 0 && stats.Checks >= w.cfg.Checks
	w.log.Info("worker_stopped",
		zap.Int("checks", stats.Checks),
		zap.Int("failures", stats.Failures),
		zap.Int("write_errors", stats.WriteErrors),
		zap.Bool("completed", stats.Completed))
	return stats
}

// check runs and classifies one scheduled check. A panic inside the probe is
// turned into a transport-error result carrying a correlation id.
func (w *Worker) check(ctx context.Context, start time.Time, stats *WorkerStats) (res *domain.CheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			id := w.logPanic("probe", r)
			stats.Panics++
			msg := fmt.Sprintf("internal error during check (correlation_id: %s)", id)
			res = &domain.CheckResult{
				TargetID:     w.target.ID,
				CheckedAt:    time.Now().UTC(),
				StatusCode:   classify.StatusTransportError,
				PatternMatch: domain.MatchNA,
				ErrorMessage: &msg,
			}
			err = nil
		}
	}()

	cctx, cancel := context.WithDeadline(ctx, start.Add(w.budget()))
	defer cancel()

	out, err := w.exec.Execute(cctx, w.target.URL)
	if err != nil {
		return nil, err
	}
	r := classify.Classify(out, w.matcher)
	r.TargetID = w.target.ID
	r.CheckedAt = r.CheckedAt.UTC()
	return &r, nil
}

func (w *Worker) write(ctx context.Context, res *domain.CheckResult, stats *WorkerStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			id := w.logPanic("write", r)
			stats.Panics++
			err = fmt.Errorf("write panic (correlation_id: %s)", id)
		}
	}()

	fields := []zap.Field{
		zap.Int("status_code", res.StatusCode),
		zap.Bool("success", res.Success),
		zap.Int("attempts", res.Attempts),
		zap.Stringer("pattern_match", res.PatternMatch),
		zap.Bool("synthetic", classify.IsSynthetic(res.StatusCode)),
	}
	if res.LatencyMS != nil {
		fields = append(fields, zap.Float64("latency_ms", *res.LatencyMS))
	}
	if res.ErrorMessage != nil {
		fields = append(fields, zap.String("error_message", *res.ErrorMessage))
	}
	if res.Success {
		w.log.Debug("check_recorded", fields...)
	} else {
		w.log.Warn("check_failed", fields...)
	}

	// the writer logs the failure itself; the schedule carries on
	return w.writer.Write(ctx, res)
}

func (w *Worker) logPanic(phase string, r any) string {
	id := uuid.NewString()
	w.log.Error("worker_panic",
		zap.String("correlation_id", id),
		zap.String("phase", phase),
		zap.String("panic", fmt.Sprintf("%v", r)),
		zap.String("stack", string(debug.Stack())))
	return id
}

// waitUntil sleeps until t. It reports false if ctx ended first.
func waitUntil(ctx context.Context, t time.Time) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	d := time.Until(t)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
