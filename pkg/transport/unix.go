package transport

import (
	"context"
	"net"
	"time"
)

type unixDialer struct {
	path    string
	timeout time.Duration
}

func (d *unixDialer) Kind() Kind        { return KindUnix }
func (d *unixDialer) Scheme() string    { return "http" }
func (d *unixDialer) Authority() string { return "localhost" }

func (d *unixDialer) DialContext(ctx context.Context) (net.Conn, error) {
	nd := &net.Dialer{Timeout: d.timeout}
	return nd.DialContext(ctx, "unix", d.path)
}
