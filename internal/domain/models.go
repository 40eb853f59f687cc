package domain

import "time"

type TargetID int64

// Target is one monitored site. It is never mutated after the registry is built.
type Target struct {
	ID              TargetID  `json:"id"`
	URL             string    `json:"url"` // normalized, unique within a run
	IntervalSeconds int       `json:"interval"`
	Pattern         string    `json:"pattern,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (t Target) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// PatternMatch values are persisted as-is, keep them stable.
type PatternMatch int

const (
	MatchFail PatternMatch = 0
	MatchOK   PatternMatch = 1
	MatchNA   PatternMatch = 2
)

func (m PatternMatch) String() string {
	switch m {
	case MatchFail:
		return "fail"
	case MatchOK:
		return "ok"
	default:
		return "na"
	}
}

// CheckResult is the durable outcome of one scheduled check, retries included.
type CheckResult struct {
	ID           int64        `json:"id"`
	TargetID     TargetID     `json:"target_id"`
	CheckedAt    time.Time    `json:"checked_at"` // start of the final attempt
	StatusCode   int          `json:"status_code"`
	Success      bool         `json:"success"`
	PatternMatch PatternMatch `json:"pattern_match"`
	LatencyMS    *float64     `json:"latency_ms"` // nil when no attempt ran
	Attempts     int          `json:"attempts"`
	ErrorMessage *string      `json:"error_message"`
}
