package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/g-flame-oss/libdockerexcess/pkg/errdefs"
	"github.com/g-flame-oss/libdockerexcess/pkg/protocol"
	"github.com/g-flame-oss/libdockerexcess/pkg/transport/rawconn"
)

// OpenStream opens a raw streaming exchange on a fresh connection. It does
// not take the request lock: streams run alongside ordinary requests on the
// same handle. The caller owns the returned stream and must Close it;
// closing is also how a consumer cancels mid-stream.
func (c *Client) OpenStream(ctx context.Context, method, path string, body []byte) (*rawconn.Stream, error) {
	versioned := fmt.Sprintf("/v%s%s", c.cfg.APIVersion, path)
	st, err := rawconn.Open(ctx, c.dialer, method, versioned, body)
	if err != nil {
		c.setErr("%s %s: %v", method, path, err)
		return nil, err
	}
	return st, nil
}

// Stream opens a streaming exchange and pipes the body through the frame
// demultiplexer into sink until the peer closes, the context is cancelled or
// its deadline expires. With tty set the body is unframed and delivered as
// stdout verbatim.
func (c *Client) Stream(ctx context.Context, method, path string, body []byte, opts protocol.Options, sink protocol.Sink) error {
	st, err := c.OpenStream(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer st.Close()

	// cancellation is by closing the socket; the watcher makes the
	// context reach it while a read is blocked
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			st.Close()
		case <-watchDone:
		}
	}()

	if kerr := errdefs.FromStatus(st.StatusCode()); kerr != nil {
		errBody, _ := io.ReadAll(io.LimitReader(st, 512))
		c.setErr("%s %s: status %d: %s", method, path, st.StatusCode(), snippet(errBody))
		return kerr
	}

	d := protocol.NewDemuxer(sink, opts)
	if _, err := io.Copy(d, st); err != nil {
		// a read failing because the watcher closed the socket is a
		// cancellation, not a transport failure
		if cerr := ctx.Err(); cerr != nil {
			c.setErr("%s %s: %v", method, path, cerr)
			return cerr
		}
		// demux errors carry their own classification; socket errors
		// get the transport classes
		if kerr := asTaxonomy(err); kerr != nil {
			c.setErr("%s %s: %v", method, path, err)
			return kerr
		}
	}
	if err := d.Close(); err != nil {
		c.setErr("%s %s: %v", method, path, err)
		return err
	}
	return nil
}

// LogsOptions mirror the daemon's log endpoint query parameters.
type LogsOptions struct {
	Follow     bool
	Timestamps bool
	// Tail limits output to the last N lines; 0 means everything.
	Tail int
	// TTY must reflect how the container was created; the stream format
	// is not self-describing.
	TTY bool
	// Strict surfaces a truncated trailing frame instead of dropping it.
	Strict bool
}

// Logs streams a container's output to sink, demultiplexing stdout/stderr
// unless the container runs with a TTY. With Follow set the call blocks
// until the peer closes or the consumer cancels via context/socket close.
func (c *Client) Logs(ctx context.Context, containerID string, opts LogsOptions, sink protocol.Sink) error {
	if containerID == "" {
		return fmt.Errorf("%w: empty container id", errdefs.ErrInvalidArgument)
	}
	q := url.Values{}
	q.Set("stdout", "true")
	q.Set("stderr", "true")
	q.Set("follow", boolStr(opts.Follow))
	q.Set("timestamps", boolStr(opts.Timestamps))
	if opts.Tail > 0 {
		q.Set("tail", fmt.Sprintf("%d", opts.Tail))
	}
	path := fmt.Sprintf("/containers/%s/logs?%s", url.PathEscape(containerID), q.Encode())
	return c.Stream(ctx, http.MethodGet, path, nil, protocol.Options{TTY: opts.TTY, Strict: opts.Strict}, sink)
}

// asTaxonomy returns err when it already carries an errdefs class, otherwise
// wraps it as a transport failure.
func asTaxonomy(err error) error {
	for _, sentinel := range []error{
		errdefs.ErrMalformedResponse,
		errdefs.ErrTruncatedFrame,
		errdefs.ErrTimeout,
		errdefs.ErrConnectionFailed,
		errdefs.ErrTransportIO,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return errdefs.FromNetError(err)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
