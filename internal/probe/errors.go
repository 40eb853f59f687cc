package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// FailureOf maps a transport error onto the failure taxonomy. An expired
// deadline wins over the layer it expired in, so a lookup cut short by the
// check budget counts as a timeout.
func FailureOf(err error) Failure {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return FailureDNS
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	return FailureTransport
}

// Transient reports whether another attempt could plausibly succeed.
// TLS, redirect and malformed-request errors are final.
func Transient(err error) bool {
	switch FailureOf(err) {
	case FailureNone:
		return false
	case FailureDNS, FailureTimeout:
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return oe.Op == "dial" || oe.Op == "read"
	}
	return false
}

// DNSClass condenses a resolver error: "NXDOMAIN" | "SERVFAIL_or_TIMEOUT" | "DNS_ERROR".
// It returns "" when err carries no *net.DNSError.
func DNSClass(err error) string {
	var de *net.DNSError
	if !errors.As(err, &de) {
		return ""
	}
	switch {
	case de.IsNotFound:
		return "NXDOMAIN"
	case de.IsTemporary || de.Timeout():
		return "SERVFAIL_or_TIMEOUT"
	default:
		return "DNS_ERROR"
	}
}
