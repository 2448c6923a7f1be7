// Package buffer implements the response buffer the client fills while a
// request is in flight: append-only, amortized doubling growth, and an
// optional hard cap on total size. The buffer is reset and reused between
// requests so a long-lived client settles on one allocation.
package buffer

import "errors"

// initialCapacity is the first allocation size; growth doubles from here.
const initialCapacity = 8 * 1024

// ErrOverflow is returned by Write when the configured cap is reached. The
// accepted portion is truncated to land exactly on the cap; the caller must
// treat the request as failed, not partially succeeded.
var ErrOverflow = errors.New("buffer: size cap exceeded")

// Buffer is an append-only byte buffer with an optional size cap.
// Not safe for concurrent use; ownership follows the in-flight request.
type Buffer struct {
	buf   []byte
	max   int
	grows int
}

// New returns an empty buffer. max limits total size; 0 means unbounded.
func New(max int) *Buffer {
	return &Buffer{max: max}
}

// Write appends p, growing capacity by doubling as needed. It implements
// io.Writer. When a cap is set and p does not fit, Write copies the fitting
// prefix so Len() == cap exactly, and returns ErrOverflow.
func (b *Buffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.max > 0 && len(b.buf)+n > b.max {
		n = b.max - len(b.buf)
	}
	if n > 0 {
		b.grow(len(b.buf) + n)
		b.buf = append(b.buf, p[:n]...)
	}
	if n < len(p) {
		return n, ErrOverflow
	}
	return n, nil
}

// grow ensures capacity for need bytes total, doubling until sufficient.
func (b *Buffer) grow(need int) {
	c := cap(b.buf)
	if need <= c {
		return
	}
	if c == 0 {
		c = initialCapacity
	}
	for c < need {
		c *= 2
	}
	next := make([]byte, len(b.buf), c)
	copy(next, b.buf)
	b.buf = next
	b.grows++
}

// Reset truncates to empty without releasing the backing allocation.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// Len returns the number of buffered bytes. Binary-safe: contents may hold
// NUL bytes and Len stays authoritative.
func (b *Buffer) Len() int { return len(b.buf) }

// Cap returns the current capacity of the backing allocation.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Bytes returns the buffered contents. The slice aliases the internal
// allocation and is only valid until the next Write or Reset.
func (b *Buffer) Bytes() []byte { return b.buf }

// String returns the buffered contents as a string.
func (b *Buffer) String() string { return string(b.buf) }

// Grows returns how many times the backing allocation was replaced. Useful
// for verifying the amortized growth behavior.
func (b *Buffer) Grows() int { return b.grows }
