// Package transport selects and opens the raw connection to the daemon:
// unix domain socket, plain TCP, TCP+TLS, or a Windows named pipe. A Dialer
// hands back ready-to-use connections (TLS handshake included), so both the
// pooled HTTP path and the raw streaming path share one way of reaching the
// daemon.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/g-flame-oss/libdockerexcess/pkg/errdefs"
)

// Kind identifies how the daemon is reached.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnix
	KindTCP
	KindWinPipe
)

func (k Kind) String() string {
	switch k {
	case KindUnix:
		return "unix"
	case KindTCP:
		return "tcp"
	case KindWinPipe:
		return "npipe"
	default:
		return "unknown"
	}
}

// Dialer opens connections to one fixed daemon endpoint.
type Dialer interface {
	Kind() Kind
	// DialContext opens a new connection. For TLS endpoints the handshake
	// has completed by the time the connection is returned.
	DialContext(ctx context.Context) (net.Conn, error)
	// Scheme is "http" or "https", for building request URLs.
	Scheme() string
	// Authority is the host:port for TCP endpoints and "localhost" for
	// local ones, matching what the daemon expects in conventional
	// requests.
	Authority() string
}

// TLSOptions carry client certificate material for TCP endpoints.
type TLSOptions struct {
	Enable             bool
	CertFile           string
	KeyFile            string
	CAFile             string
	InsecureSkipVerify bool
}

// Options select and parameterize a Dialer.
type Options struct {
	Kind           Kind
	SocketPath     string // unix
	Host           string // tcp
	Port           int    // tcp
	PipePath       string // npipe
	TLS            TLSOptions
	ConnectTimeout time.Duration
}

// New builds a Dialer from options. Exactly one transport kind is active.
func New(opts Options) (Dialer, error) {
	switch opts.Kind {
	case KindUnix:
		if opts.SocketPath == "" {
			return nil, fmt.Errorf("%w: unix transport requires a socket path", errdefs.ErrInvalidArgument)
		}
		return &unixDialer{path: opts.SocketPath, timeout: opts.ConnectTimeout}, nil
	case KindTCP:
		if opts.Host == "" || opts.Port == 0 {
			return nil, fmt.Errorf("%w: tcp transport requires host and port", errdefs.ErrInvalidArgument)
		}
		d := &tcpDialer{
			addr:    net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port)),
			timeout: opts.ConnectTimeout,
		}
		if opts.TLS.Enable {
			conf, err := loadTLSConfig(opts.TLS, opts.Host)
			if err != nil {
				return nil, err
			}
			d.tlsConf = conf
		}
		return d, nil
	case KindWinPipe:
		if opts.PipePath == "" {
			return nil, fmt.Errorf("%w: npipe transport requires a pipe path", errdefs.ErrInvalidArgument)
		}
		return newWinPipeDialer(opts.PipePath, opts.ConnectTimeout)
	default:
		return nil, fmt.Errorf("%w: unknown transport kind %d", errdefs.ErrInvalidArgument, opts.Kind)
	}
}

// loadTLSConfig assembles the client TLS material: optional CA pool and
// optional client certificate pair.
func loadTLSConfig(opts TLSOptions, serverName string) (*tls.Config, error) {
	conf := &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}
	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", errdefs.ErrInvalidArgument, opts.CAFile)
		}
		conf.RootCAs = pool
	}
	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	return conf, nil
}
