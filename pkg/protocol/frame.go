package protocol

import (
	"encoding/binary"
	"io"
)

// Fixed frame header layout (8 bytes) used by the daemon to interleave
// stdout and stderr on one connection. The length field is big-endian.
//
//	0        Selector u8 (0=stdin echo, 1=stdout, 2=stderr)
//	1  ..3   Reserved
//	4  ..7   PayloadLen u32 (big-endian)
const headerSize = 8

// Channel identifies the logical stream a frame belongs to.
type Channel uint8

const (
	// ChannelStdin frames are echoes of input; the demultiplexer consumes
	// and discards them.
	ChannelStdin Channel = 0
	// ChannelStdout carries standard output.
	ChannelStdout Channel = 1
	// ChannelStderr carries standard error.
	ChannelStderr Channel = 2
)

func (c Channel) String() string {
	switch c {
	case ChannelStdin:
		return "stdin"
	case ChannelStdout:
		return "stdout"
	case ChannelStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// AppendFrame appends one encoded frame (header + payload) to dst and
// returns the extended slice.
func AppendFrame(dst []byte, c Channel, payload []byte) []byte {
	var hdr [headerSize]byte
	hdr[0] = byte(c)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// WriteFrame writes one encoded frame to w.
func WriteFrame(w io.Writer, c Channel, payload []byte) error {
	_, err := w.Write(AppendFrame(nil, c, payload))
	return err
}
