package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

type tcpDialer struct {
	addr    string
	timeout time.Duration
	tlsConf *tls.Config // nil for plaintext
}

func (d *tcpDialer) Kind() Kind { return KindTCP }

func (d *tcpDialer) Scheme() string {
	if d.tlsConf != nil {
		return "https"
	}
	return "http"
}

func (d *tcpDialer) Authority() string { return d.addr }

func (d *tcpDialer) DialContext(ctx context.Context) (net.Conn, error) {
	nd := &net.Dialer{Timeout: d.timeout}
	c, err := nd.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, err
	}
	if d.tlsConf == nil {
		return c, nil
	}
	tc := tls.Client(c, d.tlsConf)
	if err := tc.HandshakeContext(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return tc, nil
}
