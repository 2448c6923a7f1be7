// Package errdefs defines the error taxonomy shared by the client, the raw
// streaming transport and the stream demultiplexer. Every failure surfaced to
// a caller wraps exactly one of the sentinel errors below, so callers can
// branch with errors.Is (or the Is* helpers) instead of string matching.
package errdefs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrInvalidArgument reports a malformed call before any I/O happens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout reports a connect or total-request deadline expiring.
	ErrTimeout = errors.New("timeout")

	// ErrConnectionFailed reports refused, unreachable or unresolvable peers.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrTransportIO reports a connection dying mid-transfer (reset, broken
	// pipe, unexpected EOF).
	ErrTransportIO = errors.New("transport i/o failure")

	// ErrResponseTooLarge reports the configured response cap being hit.
	// The in-flight request is aborted; the buffered prefix is not a result.
	ErrResponseTooLarge = errors.New("response too large")

	// ErrNotFound corresponds to HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied corresponds to HTTP 401 and 403.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConflict corresponds to HTTP 409.
	ErrConflict = errors.New("conflict")

	// ErrRemoteInternal corresponds to HTTP 5xx.
	ErrRemoteInternal = errors.New("remote internal error")

	// ErrRemoteOther corresponds to any remaining 4xx status.
	ErrRemoteOther = errors.New("remote error")

	// ErrMalformedResponse reports a response the core cannot interpret:
	// a missing header/body delimiter, an oversized header section or an
	// unrecognized frame selector.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrTruncatedFrame reports end-of-stream inside a frame. Only returned
	// by the demultiplexer in strict mode.
	ErrTruncatedFrame = errors.New("truncated frame")
)

// FromStatus maps an HTTP status code onto the taxonomy. 2xx maps to nil.
func FromStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 404:
		return fmt.Errorf("%w: status %d", ErrNotFound, code)
	case code == 401 || code == 403:
		return fmt.Errorf("%w: status %d", ErrPermissionDenied, code)
	case code == 409:
		return fmt.Errorf("%w: status %d", ErrConflict, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrRemoteInternal, code)
	case code >= 400:
		return fmt.Errorf("%w: status %d", ErrRemoteOther, code)
	default:
		// 1xx/3xx are not expected from the daemon; treat as generic.
		return fmt.Errorf("%w: unexpected status %d", ErrRemoteOther, code)
	}
}

// FromNetError classifies a transport-level failure. Timeouts win over the
// generic classes so a deadline expiring during connect does not masquerade
// as an unreachable peer.
func FromNetError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.ENOENT) {
		// ENOENT covers a missing unix socket path.
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return fmt.Errorf("%w: %v", ErrTransportIO, err)
}

// IsNotFound reports whether err maps to HTTP 404.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsPermissionDenied reports whether err maps to HTTP 401/403.
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }

// IsConflict reports whether err maps to HTTP 409.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsTimeout reports whether err is a connect or total deadline expiry.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsConnectionFailed reports whether the peer could not be reached at all.
func IsConnectionFailed(err error) bool { return errors.Is(err, ErrConnectionFailed) }
