package probe

import (
	"context"
	"time"
)

// Failure says why an attempt produced no usable HTTP response.
type Failure int

const (
	FailureNone Failure = iota
	FailureDNS
	FailureTimeout
	FailureTransport
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureDNS:
		return "dns"
	case FailureTimeout:
		return "timeout"
	default:
		return "transport"
	}
}

// Outcome is the result of one probe attempt, or of the final attempt of a
// retried check.
//
// Fields:
//   - StatusCode: real HTTP status when a response arrived; 0 otherwise.
//   - Body: response body, capped by the session's body limit.
//   - Err/Failure: set when the attempt failed below HTTP.
//   - StartedAt/Latency: start and wall time of the attempt.
//   - Attempts: number of attempts the check used (0 if none could start).
type Outcome struct {
	StatusCode int
	Body       []byte
	Err        error
	Failure    Failure
	StartedAt  time.Time
	Latency    time.Duration
	Attempts   int
}

// Prober performs a single GET against url.
type Prober interface {
	Do(ctx context.Context, url string) Outcome
}

// Admitter bounds how many attempts may be in flight at once.
type Admitter interface {
	Acquire(ctx context.Context) error
	Release()
}
