package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/webmon/internal/domain"
	"github.com/hamed0406/webmon/internal/probe"
)

func ok(code int, body string) probe.Outcome {
	return probe.Outcome{
		StatusCode: code,
		Body:       []byte(body),
		StartedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Latency:    42 * time.Millisecond,
		Attempts:   1,
	}
}

func TestClassify_NonOKIsAlwaysFailure(t *testing.T) {
	for _, code := range []int{201, 204, 301, 404, 500, 503} {
		for _, m := range []*Matcher{nil, NewMatcher("lucky")} {
			res := Classify(ok(code, "lucky"), m)
			if res.Success {
				t.Fatalf("status %d pattern=%v: want failure", code, m != nil)
			}
			if res.StatusCode != code || res.PatternMatch != domain.MatchNA || res.ErrorMessage != nil {
				t.Fatalf("status %d: unexpected result %+v", code, res)
			}
		}
	}
}

func TestClassify_OKWithoutPattern(t *testing.T) {
	res := Classify(ok(200, ""), nil)
	if !res.Success || res.StatusCode != 200 || res.PatternMatch != domain.MatchNA {
		t.Fatalf("want success, got %+v", res)
	}
	if res.LatencyMS == nil || *res.LatencyMS != 42 {
		t.Fatalf("want latency 42ms, got %v", res.LatencyMS)
	}
	if !res.CheckedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) || res.Attempts != 1 {
		t.Fatalf("timestamp/attempts not carried: %+v", res)
	}
}

func TestClassify_Pattern(t *testing.T) {
	cases := []struct {
		pattern string
		body    string
		want    bool
	}{
		{"lucky", "i feel lucky today", true},
		{"lucky", "nothing here", false},
		{`status:\s+up`, "status:   up", true},
		{`v[0-9]+\.[0-9]+`, "version v1.2", true},
		{"(unclosed", "has (unclosed paren", true},
		{"(unclosed", "unclosed", false},
	}
	for _, c := range cases {
		m := NewMatcher(c.pattern)
		// classification is deterministic: same input, same answer
		for i := 0; i < 3; i++ {
			res := Classify(ok(200, c.body), m)
			if res.Success != c.want {
				t.Fatalf("pattern %q body %q: want %v got %v", c.pattern, c.body, c.want, res.Success)
			}
			if c.want && (res.PatternMatch != domain.MatchOK || res.ErrorMessage != nil) {
				t.Fatalf("pattern %q: unexpected %+v", c.pattern, res)
			}
			if !c.want {
				if res.PatternMatch != domain.MatchFail || res.ErrorMessage == nil {
					t.Fatalf("pattern %q: want mismatch recorded, got %+v", c.pattern, res)
				}
				if !strings.Contains(*res.ErrorMessage, "not found") {
					t.Fatalf("mismatch message should say not found: %q", *res.ErrorMessage)
				}
			}
		}
	}
}

func TestNewMatcher(t *testing.T) {
	if NewMatcher("") != nil {
		t.Fatal("empty pattern must mean no matcher")
	}
	if NewMatcher("a+b").Literal() {
		t.Fatal("valid expression compiled as literal")
	}
	if !NewMatcher("[oops").Literal() {
		t.Fatal("invalid expression should fall back to literal")
	}
}

func TestClassify_SyntheticCodes(t *testing.T) {
	dns := &net.DNSError{Err: "no such host", Name: "b.test", IsNotFound: true}
	cases := []struct {
		name    string
		out     probe.Outcome
		code    int
		msgPart string
	}{
		{"dns", probe.Outcome{Err: dns, Failure: probe.FailureDNS, Attempts: 3}, StatusDNSFailure, "NXDOMAIN"},
		{"timeout", probe.Outcome{Err: fmt.Errorf("get: %w", context.DeadlineExceeded), Failure: probe.FailureTimeout, Attempts: 3}, StatusTimeout, "deadline"},
		{"transport", probe.Outcome{Err: errors.New("x509: certificate has expired"), Failure: probe.FailureTransport, Attempts: 1}, StatusTransportError, "x509"},
		{"no response", probe.Outcome{Attempts: 1}, StatusTransportError, "no response"},
	}
	for _, c := range cases {
		res := Classify(c.out, NewMatcher("lucky"))
		if res.StatusCode != c.code || res.Success {
			t.Fatalf("%s: want failed %d, got %+v", c.name, c.code, res)
		}
		if !IsSynthetic(res.StatusCode) {
			t.Fatalf("%s: %d should be synthetic", c.name, res.StatusCode)
		}
		if res.ErrorMessage == nil || !strings.Contains(*res.ErrorMessage, c.msgPart) {
			t.Fatalf("%s: want message containing %q, got %v", c.name, c.msgPart, res.ErrorMessage)
		}
		if res.PatternMatch != domain.MatchNA {
			t.Fatalf("%s: pattern must not be evaluated", c.name)
		}
	}
}

func TestClassify_BodyReadFailureAfterHeaders(t *testing.T) {
	cases := []struct {
		name    string
		failure probe.Failure
		err     error
		code    int
	}{
		{"stalled body", probe.FailureTimeout, fmt.Errorf("read body: %w", context.DeadlineExceeded), StatusTimeout},
		{"truncated body", probe.FailureTransport, fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), StatusTransportError},
	}
	for _, c := range cases {
		for _, m := range []*Matcher{nil, NewMatcher("part")} {
			out := ok(200, "partial")
			out.Err, out.Failure = c.err, c.failure
			res := Classify(out, m)
			if res.Success || res.StatusCode != c.code {
				t.Fatalf("%s pattern=%v: want failed %d, got %+v", c.name, m != nil, c.code, res)
			}
			if res.PatternMatch != domain.MatchNA {
				t.Fatalf("%s: truncated body must not be matched", c.name)
			}
			if res.ErrorMessage == nil || !strings.Contains(*res.ErrorMessage, "read body") {
				t.Fatalf("%s: want error text stored, got %v", c.name, res.ErrorMessage)
			}
		}
	}
}

func TestClassify_NoAttemptHasNoLatency(t *testing.T) {
	out := probe.Outcome{Err: context.DeadlineExceeded, Failure: probe.FailureTimeout}
	res := Classify(out, nil)
	if res.LatencyMS != nil || res.Attempts != 0 || res.StatusCode != StatusTimeout {
		t.Fatalf("unexpected %+v", res)
	}
}
