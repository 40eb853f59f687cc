package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/registry"
	"github.com/hamed0406/webmon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

var errClosed = errors.New("memory store closed")

// Store keeps everything in process memory. It enforces the same target
// reference rule as the SQL stores.
type Store struct {
	mu      sync.RWMutex
	nextID  domain.TargetID
	byURL   map[string]domain.TargetID
	targets map[domain.TargetID]domain.Target
	results []domain.CheckResult
	closed  bool
}

func New() *Store {
	return &Store{
		byURL:   make(map[string]domain.TargetID),
		targets: make(map[domain.TargetID]domain.Target),
		results: make([]domain.CheckResult, 0, 128),
	}
}

func (m *Store) Bootstrap(ctx context.Context, mode repo.BootstrapMode) error {
	if mode == repo.BootstrapRecreate {
		return m.Drop(ctx)
	}
	return nil
}

func (m *Store) Drop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = 0
	m.byURL = make(map[string]domain.TargetID)
	m.targets = make(map[domain.TargetID]domain.Target)
	m.results = m.results[:0]
	return nil
}

func (m *Store) UpsertTargets(ctx context.Context, entries []registry.Entry) ([]domain.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Target, 0, len(entries))
	for _, e := range entries {
		id, ok := m.byURL[e.URL]
		t := m.targets[id]
		if !ok {
			m.nextID++
			id = m.nextID
			m.byURL[e.URL] = id
			t = domain.Target{ID: id, URL: e.URL, CreatedAt: time.Now().UTC()}
		}
		t.IntervalSeconds = e.IntervalSeconds
		t.Pattern = e.Pattern
		m.targets[id] = t
		out = append(out, t)
	}
	return out, nil
}

func (m *Store) ListTargets(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for id := domain.TargetID(1); id <= m.nextID; id++ {
		if t, ok := m.targets[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if _, ok := m.targets[r.TargetID]; !ok {
		return fmt.Errorf("%w: %d", repo.ErrUnknownTarget, r.TargetID)
	}
	r.ID = int64(len(m.results) + 1)
	m.results = append(m.results, *r)
	return nil
}

func (m *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Store) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Results returns the stored results for id in insertion order.
func (m *Store) Results(id domain.TargetID) []domain.CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CheckResult
	for _, r := range m.results {
		if r.TargetID == id {
			out = append(out, r)
		}
	}
	return out
}

func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}

func (m *Store) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
