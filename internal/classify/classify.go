// Package classify turns a probe outcome into the result row that gets stored.
// Nothing here touches the network or the store.
package classify

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/probe"
)

// Synthetic status codes for checks that never got an HTTP response.
const (
	StatusDNSFailure     = 530
	StatusTransportError = 555
	StatusTimeout        = 598
)

// IsSynthetic reports whether code was produced by Classify rather than a server.
func IsSynthetic(code int) bool {
	return code == StatusDNSFailure || code == StatusTransportError || code == StatusTimeout
}

// Matcher checks a response body for a configured pattern. Patterns are
// regular expressions; one that does not compile is matched literally.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
	literal []byte
}

// NewMatcher returns nil for an empty pattern, meaning "no content rule".
func NewMatcher(pattern string) *Matcher {
	if pattern == "" {
		return nil
	}
	m := &Matcher{pattern: pattern}
	if re, err := regexp.Compile(pattern); err == nil {
		m.re = re
	} else {
		m.literal = []byte(pattern)
	}
	return m
}

func (m *Matcher) Pattern() string { return m.pattern }

// Literal is true when the pattern did not compile as an expression.
func (m *Matcher) Literal() bool { return m.re == nil }

func (m *Matcher) Match(body []byte) bool {
	if m.re != nil {
		return m.re.Match(body)
	}
	return bytes.Contains(body, m.literal)
}

// Classify maps the final outcome of a check to a result. TargetID and ID are
// left for the caller.
//
// Rules:
//   - an attempt that failed below HTTP gets a synthetic code and its error
//     text, even when headers arrived before the body read failed
//   - any status other than 200 is a failure and the pattern is not evaluated
//   - a 200 without a pattern is a success
//   - a 200 with a pattern succeeds only if the body matches
func Classify(out probe.Outcome, m *Matcher) domain.CheckResult {
	res := domain.CheckResult{
		CheckedAt:    out.StartedAt,
		StatusCode:   out.StatusCode,
		PatternMatch: domain.MatchNA,
		Attempts:     out.Attempts,
	}
	if out.Attempts > 0 {
		ms := float64(out.Latency.Microseconds()) / 1000
		res.LatencyMS = &ms
	}

	if out.Err != nil {
		res.StatusCode = syntheticCode(out.Failure)
		res.ErrorMessage = errorText(out)
		return res
	}
	if out.StatusCode == 0 {
		res.StatusCode = StatusTransportError
		res.ErrorMessage = strPtr("no response")
		return res
	}
	if out.StatusCode != 200 {
		return res
	}
	if m == nil {
		res.Success = true
		return res
	}
	if m.Match(out.Body) {
		res.Success = true
		res.PatternMatch = domain.MatchOK
		return res
	}
	res.PatternMatch = domain.MatchFail
	res.ErrorMessage = strPtr(fmt.Sprintf("pattern %q not found in response body", m.pattern))
	return res
}

func syntheticCode(f probe.Failure) int {
	switch f {
	case probe.FailureDNS:
		return StatusDNSFailure
	case probe.FailureTimeout:
		return StatusTimeout
	default:
		return StatusTransportError
	}
}

func errorText(out probe.Outcome) *string {
	msg := out.Err.Error()
	if out.Failure == probe.FailureDNS {
		if class := probe.DNSClass(out.Err); class != "" {
			msg = "dns " + class + ": " + msg
		}
	}
	return &msg
}

func strPtr(s string) *string { return &s }
