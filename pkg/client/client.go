// Package client implements the request/response engine against the daemon
// API: one handle owns the transport configuration, a pooled connection, the
// reusable response buffer and the last-error diagnostic. All non-streaming
// requests on a handle serialize behind its lock; streaming endpoints open
// independent connections (see Stream and the rawconn package) and are not
// serialized.
package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/g-flame-oss/libdockerexcess/pkg/buffer"
	"github.com/g-flame-oss/libdockerexcess/pkg/config"
	"github.com/g-flame-oss/libdockerexcess/pkg/errdefs"
	"github.com/g-flame-oss/libdockerexcess/pkg/transport"
)

// Client is a handle to one daemon endpoint. Safe for concurrent use; the
// underlying pooled connection carries one request at a time.
type Client struct {
	cfg    *config.Config
	dialer transport.Dialer
	httpc  *http.Client

	// mu serializes non-streaming requests and guards buf
	mu  sync.Mutex
	buf *buffer.Buffer

	// errMu guards lastErr so streaming paths can record diagnostics
	// without taking the request lock
	errMu   sync.Mutex
	lastErr string
}

// New builds a client from configuration. The connection is not opened until
// the first request.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", errdefs.ErrInvalidArgument)
	}
	d, err := transport.New(dialerOptions(cfg))
	if err != nil {
		return nil, err
	}

	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		return d.DialContext(ctx)
	}
	httpc := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			// the dialer completes TLS itself, so both hooks map to it
			DialContext:         dial,
			DialTLSContext:      dial,
			MaxConnsPerHost:     1,
			MaxIdleConnsPerHost: 1,
		},
	}

	return &Client{
		cfg:    cfg,
		dialer: d,
		httpc:  httpc,
		buf:    buffer.New(cfg.MaxResponseBytes),
	}, nil
}

func dialerOptions(cfg *config.Config) transport.Options {
	opts := transport.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		SocketPath:     cfg.Endpoint.SocketPath,
		Host:           cfg.Endpoint.Host,
		Port:           cfg.Endpoint.Port,
		PipePath:       cfg.Endpoint.PipePath,
		TLS: transport.TLSOptions{
			Enable:             cfg.Endpoint.TLS.Enable,
			CertFile:           cfg.Endpoint.TLS.CertFile,
			KeyFile:            cfg.Endpoint.TLS.KeyFile,
			CAFile:             cfg.Endpoint.TLS.CAFile,
			InsecureSkipVerify: cfg.Endpoint.TLS.InsecureSkipVerify,
		},
	}
	switch cfg.Endpoint.Kind {
	case "tcp":
		opts.Kind = transport.KindTCP
	case "npipe":
		opts.Kind = transport.KindWinPipe
	default:
		opts.Kind = transport.KindUnix
	}
	return opts
}

// Close releases the pooled connection. The handle must not be used after.
func (c *Client) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}

// LastError returns the most recent human-readable diagnostic, overwritten
// by each call on this handle. Empty when the last call succeeded.
func (c *Client) LastError() string {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

func (c *Client) setErr(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.errMu.Lock()
	c.lastErr = msg
	c.errMu.Unlock()
	zap.L().Debug("request failed", zap.String("detail", msg))
}

func (c *Client) clearErr() {
	c.errMu.Lock()
	c.lastErr = ""
	c.errMu.Unlock()
}

// ResponseBody returns the last buffered response body. Valid until the next
// non-streaming request on this handle.
func (c *Client) ResponseBody() []byte { return c.buf.Bytes() }

// ResponseSize returns the size of the last buffered response body.
func (c *Client) ResponseSize() int { return c.buf.Len() }
