//go:build windows

package transport

import (
	"context"
	"net"
	"time"

	winio "github.com/Microsoft/go-winio"
)

type winPipeDialer struct {
	path    string
	timeout time.Duration
}

func newWinPipeDialer(path string, timeout time.Duration) (Dialer, error) {
	return &winPipeDialer{path: path, timeout: timeout}, nil
}

func (d *winPipeDialer) Kind() Kind        { return KindWinPipe }
func (d *winPipeDialer) Scheme() string    { return "http" }
func (d *winPipeDialer) Authority() string { return "localhost" }

func (d *winPipeDialer) DialContext(ctx context.Context) (net.Conn, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return winio.DialPipeContext(ctx, d.path)
}
