// Package registry holds the set of monitored targets for one run.
package registry

import (
	"errors"
	"fmt"

	"github.com/hamed0406/webmon/internal/domain"
)

var ErrDuplicateURL = errors.New("duplicate target url")

// Registry is read-only once built and safe to share between goroutines.
type Registry struct {
	targets []domain.Target
}

func New(targets []domain.Target) (*Registry, error) {
	seen := make(map[string]struct{}, len(targets))
	out := make([]domain.Target, 0, len(targets))
	for _, t := range targets {
		if t.IntervalSeconds <= 0 {
			return nil, fmt.Errorf("target %s: %w", t.URL, ErrInvalidInterval)
		}
		if _, ok := seen[t.URL]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateURL, t.URL)
		}
		seen[t.URL] = struct{}{}
		out = append(out, t)
	}
	return &Registry{targets: out}, nil
}

// Targets returns a copy in load order.
func (r *Registry) Targets() []domain.Target {
	return append([]domain.Target(nil), r.targets...)
}

func (r *Registry) Len() int { return len(r.targets) }
