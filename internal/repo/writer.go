package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/metrics"
)

var ErrWriterClosed = errors.New("result writer closed")

// Writer persists results on behalf of all workers. Close waits for writes
// already in progress and then closes the store exactly once.
type Writer struct {
	store   Store
	log     *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	once    sync.Once
}

func NewWriter(store Store, log *zap.Logger, timeout time.Duration) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{store: store, log: log, timeout: timeout}
}

// Write appends one result. The insert is not cut short by cancellation of
// ctx, only by the writer's own timeout, so shutdown still flushes it. A
// failure is logged and returned; callers are expected to carry on.
func (w *Writer) Write(ctx context.Context, r *domain.CheckResult) error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWriterClosed
	}
	w.pending.Add(1)
	w.mu.RUnlock()
	defer w.pending.Done()

	wctx := context.WithoutCancel(ctx)
	if w.timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(wctx, w.timeout)
		defer cancel()
	}
	if err := w.store.Append(wctx, r); err != nil {
		metrics.WriteFailed()
		w.log.Warn("result_write_error",
			zap.Int64("target_id", int64(r.TargetID)),
			zap.Time("checked_at", r.CheckedAt),
			zap.Int("status_code", r.StatusCode),
			zap.Error(err))
		return fmt.Errorf("write result: %w", err)
	}
	metrics.WriteOK()
	return nil
}

// Ready reports whether the store answers. It is false once the writer is closed.
func (w *Writer) Ready(ctx context.Context) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.store.Ping(ctx)
}

// Close is idempotent. Writes arriving after Close return ErrWriterClosed.
func (w *Writer) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		w.pending.Wait()
		w.store.Close()
		w.log.Info("result_writer_closed")
	})
}
