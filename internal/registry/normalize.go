package registry

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Normalize turns a listing entry into the canonical form used as the
// uniqueness key: lowercase scheme and host, explicit port, no trailing slash.
//
//	example.com              -> https://example.com:443
//	foo.bar:8080/health/     -> http://foo.bar:8080/health
//	HTTP://Foo.bar           -> http://foo.bar:80
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(s, "://") {
		s = "//" + s
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("parse %q: %w", raw, err)
		}
		// no scheme: https unless a non-443 port says otherwise
		if p := u.Port(); p != "" && p != "443" {
			s = "http:" + s
		} else {
			s = "https:" + s
		}
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if scheme == "http" {
			port = "80"
		}
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("invalid port %q in %q", port, raw)
	}

	out := scheme + "://" + net.JoinHostPort(host, port) + strings.TrimRight(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, nil
}
