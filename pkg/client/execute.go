package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/g-flame-oss/libdockerexcess/pkg/buffer"
	"github.com/g-flame-oss/libdockerexcess/pkg/errdefs"
)

// Outcome describes one completed exchange. Body aliases the handle's
// response buffer and is valid until the next non-streaming request.
type Outcome struct {
	StatusCode int
	Body       []byte
}

// Do performs one HTTP exchange against the daemon: no retries, one request
// per handle at a time. path must start with "/" and is appended to the
// versioned base ("/v{api}{path}"). body may be nil; when present it is sent
// as application/json with an exact Content-Length. extra headers override
// nothing vital and may be nil.
//
// Transport failures return (nil, err) with err classified per errdefs.
// Non-2xx statuses return the outcome together with the status-class error,
// so callers can still inspect the body the daemon sent along.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, extra http.Header) (*Outcome, error) {
	if method == "" || !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: method %q path %q", errdefs.ErrInvalidArgument, method, path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearErr()
	c.buf.Reset()

	url := fmt.Sprintf("%s://%s/v%s%s", c.dialer.Scheme(), c.dialer.Authority(), c.cfg.APIVersion, path)
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		c.setErr("build request: %v", err)
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidArgument, err)
	}
	// the daemon expects a conventional request regardless of transport
	req.Host = "localhost"
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		kerr := errdefs.FromNetError(err)
		c.setErr("%s %s: %v", method, path, err)
		return nil, kerr
	}
	defer resp.Body.Close()

	if _, err := io.Copy(c.buf, resp.Body); err != nil {
		if errors.Is(err, buffer.ErrOverflow) {
			// Closing the body with unread data discards the
			// connection, aborting the peer's transfer.
			c.setErr("%s %s: response exceeds %d byte cap", method, path, c.cfg.MaxResponseBytes)
			return nil, fmt.Errorf("%w: cap %d bytes", errdefs.ErrResponseTooLarge, c.cfg.MaxResponseBytes)
		}
		// the status line arrived but the body did not; the transport
		// error wins over the stale status
		kerr := errdefs.FromNetError(err)
		c.setErr("%s %s: reading body: %v", method, path, err)
		return nil, kerr
	}

	out := &Outcome{StatusCode: resp.StatusCode, Body: c.buf.Bytes()}
	if kerr := errdefs.FromStatus(resp.StatusCode); kerr != nil {
		c.setErr("%s %s: status %d: %s", method, path, resp.StatusCode, snippet(c.buf.Bytes()))
		return out, kerr
	}
	return out, nil
}

// Ping checks connectivity with GET /_ping.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodGet, "/_ping", nil, nil)
	return err
}

// Version fetches GET /version and returns the raw JSON body. The returned
// slice is valid until the next non-streaming request on this handle.
func (c *Client) Version(ctx context.Context) ([]byte, error) {
	out, err := c.Do(ctx, http.MethodGet, "/version", nil, nil)
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Raw performs an arbitrary exchange against the versioned API. Thin alias
// of Do for callers building their own endpoints.
func (c *Client) Raw(ctx context.Context, method, path string, body []byte) (*Outcome, error) {
	return c.Do(ctx, method, path, body, nil)
}

// snippet trims a response body for diagnostics.
func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
