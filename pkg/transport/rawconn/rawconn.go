// Package rawconn is the streaming HTTP path for endpoints whose response is
// unbounded or continuous (attach, follow-logs, attached exec). The pooled
// HTTP layer wants to own the whole response; these endpoints need the live
// socket instead, so rawconn writes a minimal request by hand, scans for the
// header/body boundary and hands the still-open connection back for
// incremental reads.
package rawconn

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/g-flame-oss/libdockerexcess/pkg/errdefs"
	"github.com/g-flame-oss/libdockerexcess/pkg/transport"
)

// maxHeaderBytes bounds the response header section. A peer that never sends
// the \r\n\r\n delimiter cannot make us buffer forever.
const maxHeaderBytes = 8 * 1024

var headerDelim = []byte("\r\n\r\n")

// noDeadline clears a connection deadline.
var noDeadline time.Time

// Stream is one live response. Read returns body bytes until the peer
// closes; Close cancels the stream by closing the socket, after which reads
// fail promptly instead of blocking.
type Stream struct {
	conn     net.Conn
	leftover []byte // body bytes that arrived in the same read as the header
	status   int
}

// Open dials a fresh connection (never the pooled one, so streams do not
// block ordinary requests), writes the request and consumes the response
// header. The returned stream is positioned at the first body byte.
func Open(ctx context.Context, d transport.Dialer, method, path string, body []byte) (*Stream, error) {
	if method == "" || !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: method %q path %q", errdefs.ErrInvalidArgument, method, path)
	}
	conn, err := d.DialContext(ctx)
	if err != nil {
		return nil, errdefs.FromNetError(err)
	}

	var req bytes.Buffer
	fmt.Fprintf(&req, "%s %s HTTP/1.1\r\n", method, path)
	req.WriteString("Host: localhost\r\n")
	req.WriteString("Content-Type: application/json\r\n")
	fmt.Fprintf(&req, "Content-Length: %d\r\n", len(body))
	req.WriteString("Connection: keep-alive\r\n\r\n")
	req.Write(body)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(req.Bytes()); err != nil {
		conn.Close()
		return nil, errdefs.FromNetError(err)
	}

	status, leftover, err := readHeader(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	// header consumed; body reads run without the connect deadline
	_ = conn.SetDeadline(noDeadline)
	return &Stream{conn: conn, leftover: leftover, status: status}, nil
}

// readHeader reads from conn until the header/body delimiter and returns the
// parsed status code plus any body bytes that arrived past the delimiter.
// Header scanning and body capture share one buffer: the transition is an
// offset split, so nothing is lost or duplicated.
func readHeader(conn net.Conn) (status int, leftover []byte, err error) {
	buf := make([]byte, 0, 1024)
	chunk := make([]byte, 1024)
	for {
		if i := bytes.Index(buf, headerDelim); i >= 0 {
			st, perr := parseStatusLine(buf[:i])
			if perr != nil {
				return 0, nil, perr
			}
			return st, buf[i+len(headerDelim):], nil
		}
		if len(buf) > maxHeaderBytes {
			return 0, nil, fmt.Errorf("%w: no header delimiter within %d bytes", errdefs.ErrMalformedResponse, maxHeaderBytes)
		}
		n, rerr := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			continue
		}
		if rerr != nil {
			return 0, nil, errdefs.FromNetError(rerr)
		}
	}
}

// parseStatusLine extracts the status code from "HTTP/1.1 200 OK".
func parseStatusLine(header []byte) (int, error) {
	line := header
	if i := bytes.IndexByte(line, '\r'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(string(line))
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return 0, fmt.Errorf("%w: bad status line %q", errdefs.ErrMalformedResponse, string(line))
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("%w: bad status code in %q", errdefs.ErrMalformedResponse, string(line))
	}
	return code, nil
}

// StatusCode returns the HTTP status parsed from the response header.
func (s *Stream) StatusCode() int { return s.status }

// Read returns the next body bytes: first whatever arrived together with the
// header, then whatever the socket delivers. io.EOF when the peer closes.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}
	return s.conn.Read(p)
}

// Close tears down the connection. Safe to call from a goroutine other than
// the reader; pending and future reads return promptly.
func (s *Stream) Close() error { return s.conn.Close() }
