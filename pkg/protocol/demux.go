// Package protocol decodes the multiplexed stream format used by the
// daemon's logs/exec/attach endpoints: discrete frames carrying a selector
// byte and a big-endian payload length, interleaving stdout and stderr over
// one connection. When the remote session was negotiated with a TTY there is
// no framing at all and the whole stream is plain stdout; the two modes are
// not self-describing, so the caller states which one is active.
package protocol

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/g-flame-oss/libdockerexcess/pkg/errdefs"
)

// Sink receives one decoded payload per complete frame, in arrival order.
// The payload slice is only valid for the duration of the call; a sink that
// retains it must copy.
type Sink func(c Channel, payload []byte)

// Options configure a Demuxer for one stream.
type Options struct {
	// TTY disables framing entirely: every byte is delivered to the sink
	// as stdout in whatever chunks it arrives.
	TTY bool
	// Strict makes end-of-stream inside a partially received frame an
	// error. Off by default: peers may close abruptly after a final flush,
	// and the trailing fragment carries no deliverable payload anyway.
	Strict bool
}

// Demuxer incrementally decodes a multiplexed byte stream. Feed it bytes
// with Write in arbitrary chunk sizes, then Close at end-of-stream. A frame
// is never delivered until its full declared length has arrived.
type Demuxer struct {
	sink Sink
	opts Options
	buf  []byte
}

// NewDemuxer returns a demuxer delivering decoded frames to sink.
func NewDemuxer(sink Sink, opts Options) *Demuxer {
	return &Demuxer{sink: sink, opts: opts}
}

// Write consumes the next chunk of the stream. It implements io.Writer so a
// raw response body can be piped straight in with io.Copy.
func (d *Demuxer) Write(p []byte) (int, error) {
	if d.opts.TTY {
		if len(p) > 0 {
			d.sink(ChannelStdout, p)
		}
		return len(p), nil
	}

	d.buf = append(d.buf, p...)
	off := 0
	for len(d.buf)-off >= headerSize {
		hdr := d.buf[off : off+headerSize]
		c := Channel(hdr[0])
		if c > ChannelStderr {
			// drop the frames already delivered in this call so a
			// retried write cannot re-deliver them
			d.buf = append(d.buf[:0], d.buf[off:]...)
			return len(p), fmt.Errorf("%w: unrecognized frame selector %d", errdefs.ErrMalformedResponse, hdr[0])
		}
		n := int(binary.BigEndian.Uint32(hdr[4:8]))
		if len(d.buf)-off-headerSize < n {
			break
		}
		payload := d.buf[off+headerSize : off+headerSize+n]
		if c != ChannelStdin {
			d.sink(c, payload)
		}
		off += headerSize + n
	}
	// keep only the unconsumed tail; reuse the allocation
	if off > 0 {
		d.buf = append(d.buf[:0], d.buf[off:]...)
	}
	return len(p), nil
}

// Close signals end-of-stream. A partially buffered frame is an error in
// strict mode; otherwise it is dropped with a debug log.
func (d *Demuxer) Close() error {
	if d.opts.TTY || len(d.buf) == 0 {
		return nil
	}
	n := len(d.buf)
	d.buf = nil
	if d.opts.Strict {
		return fmt.Errorf("%w: stream ended with %d buffered bytes", errdefs.ErrTruncatedFrame, n)
	}
	zap.L().Debug("dropping truncated trailing frame", zap.Int("bytes", n))
	return nil
}
