package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	DefaultBodyLimit = 1 << 20 // 1MB
	DefaultUserAgent = "webmon/1.0 (+health-check)"
)

type SessionOptions struct {
	BodyLimit int64
	UserAgent string
	// Transport replaces the session's own transport; tests use it to break
	// one session without touching the others.
	Transport http.RoundTripper
}

// Session owns the connection state for exactly one target. Sessions are
// never shared: a stalled or broken connection pool stays with its target.
type Session struct {
	client    *http.Client
	transport *http.Transport
	bodyLimit int64
	userAgent string
}

func NewSession(opts SessionOptions) *Session {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	s := &Session{bodyLimit: opts.BodyLimit, userAgent: opts.UserAgent}

	rt := opts.Transport
	if rt == nil {
		s.transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          2,
			MaxIdleConnsPerHost:   1,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
		rt = s.transport
	}
	// no client timeout: the executor bounds every attempt through its context
	s.client = &http.Client{Transport: rt}
	return s
}

// Do issues one GET. It never returns an error separately; failures are
// captured in the Outcome.
func (s *Session) Do(ctx context.Context, url string) Outcome {
	start := time.Now()
	fail := func(err error) Outcome {
		return Outcome{Err: err, Failure: FailureOf(err), StartedAt: start, Latency: time.Since(start)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.bodyLimit))
	if err != nil {
		out := fail(fmt.Errorf("read body: %w", err))
		out.StatusCode = resp.StatusCode
		return out
	}
	return Outcome{
		StatusCode: resp.StatusCode,
		Body:       body,
		StartedAt:  start,
		Latency:    time.Since(start),
	}
}

// Close drops idle connections. The session stays usable.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.transport != nil {
		s.transport.CloseIdleConnections()
		return
	}
	s.client.CloseIdleConnections()
}
