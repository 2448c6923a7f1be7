package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ApplyDockerEnv overlays the conventional client environment variables onto
// c: DOCKER_HOST (unix://, tcp:// or npipe:// endpoint), DOCKER_TLS_VERIFY,
// DOCKER_CERT_PATH (directory holding cert.pem/key.pem/ca.pem) and
// DOCKER_API_VERSION. Unset variables leave c untouched.
func (c *Config) ApplyDockerEnv() error {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		if err := c.applyHost(host); err != nil {
			return err
		}
	}
	if os.Getenv("DOCKER_TLS_VERIFY") != "" {
		c.Endpoint.TLS.Enable = true
	}
	if dir := os.Getenv("DOCKER_CERT_PATH"); dir != "" {
		c.Endpoint.TLS.Enable = true
		c.Endpoint.TLS.CertFile = filepath.Join(dir, "cert.pem")
		c.Endpoint.TLS.KeyFile = filepath.Join(dir, "key.pem")
		c.Endpoint.TLS.CAFile = filepath.Join(dir, "ca.pem")
	}
	if ver := os.Getenv("DOCKER_API_VERSION"); ver != "" {
		c.APIVersion = strings.TrimPrefix(ver, "v")
	}
	return nil
}

func (c *Config) applyHost(host string) error {
	switch {
	case strings.HasPrefix(host, "unix://"):
		c.Endpoint.Kind = "unix"
		c.Endpoint.SocketPath = strings.TrimPrefix(host, "unix://")
	case strings.HasPrefix(host, "npipe://"):
		c.Endpoint.Kind = "npipe"
		c.Endpoint.PipePath = strings.TrimPrefix(host, "npipe://")
	case strings.HasPrefix(host, "tcp://"):
		c.Endpoint.Kind = "tcp"
		rest := strings.TrimPrefix(host, "tcp://")
		h, p, err := net.SplitHostPort(rest)
		if err != nil {
			// no port in the URL; keep the default
			c.Endpoint.Host = rest
			return nil
		}
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid DOCKER_HOST port %q", p)
		}
		c.Endpoint.Host = h
		c.Endpoint.Port = port
	default:
		return fmt.Errorf("unsupported DOCKER_HOST scheme in %q", host)
	}
	return nil
}
