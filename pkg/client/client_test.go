package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/g-flame-oss/libdockerexcess/pkg/buffer"
	"github.com/g-flame-oss/libdockerexcess/pkg/config"
	"github.com/g-flame-oss/libdockerexcess/pkg/errdefs"
	"github.com/g-flame-oss/libdockerexcess/pkg/protocol"
)

// newTestClient serves handler on a throwaway unix socket and returns a
// client pointed at it.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "test.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	cfg := config.Default()
	cfg.Endpoint.SocketPath = sock
	cfg.ConnectTimeout = 2 * time.Second
	cfg.RequestTimeout = 5 * time.Second
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStatusClassification(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/v1.41/status/"))
		w.WriteHeader(code)
	}))

	cases := []struct {
		code int
		want error
	}{
		{200, nil},
		{201, nil},
		{204, nil},
		{404, errdefs.ErrNotFound},
		{403, errdefs.ErrPermissionDenied},
		{409, errdefs.ErrConflict},
		{500, errdefs.ErrRemoteInternal},
	}
	for _, tc := range cases {
		out, err := c.Do(context.Background(), http.MethodGet, fmt.Sprintf("/status/%d", tc.code), nil, nil)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("status %d: %v", tc.code, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: got %v, want %v", tc.code, err, tc.want)
		}
		if out == nil || out.StatusCode != tc.code {
			t.Fatalf("status %d: outcome should carry the status, got %+v", tc.code, out)
		}
		if c.LastError() == "" {
			t.Fatalf("status %d: LastError should be set", tc.code)
		}
	}
}

func TestRequestShape(t *testing.T) {
	var gotHost, gotPath, gotCT string
	var gotLen int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		gotLen = r.ContentLength
		w.Write([]byte("{}"))
	}))

	body := []byte(`{"Image":"alpine"}`)
	if _, err := c.Do(context.Background(), http.MethodPost, "/containers/create", body, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotHost != "localhost" {
		t.Fatalf("Host=%q want localhost", gotHost)
	}
	if gotPath != "/v1.41/containers/create" {
		t.Fatalf("path=%q, version prefix missing", gotPath)
	}
	if gotCT != "application/json" {
		t.Fatalf("content-type=%q", gotCT)
	}
	if gotLen != int64(len(body)) {
		t.Fatalf("content-length=%d want %d", gotLen, len(body))
	}
}

func TestResponseBodyAccessors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	out, err := c.Do(context.Background(), http.MethodGet, "/anything", nil, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if string(out.Body) != "payload" {
		t.Fatalf("body=%q", out.Body)
	}
	if string(c.ResponseBody()) != "payload" || c.ResponseSize() != len("payload") {
		t.Fatalf("accessors: %q/%d", c.ResponseBody(), c.ResponseSize())
	}
}

func TestResponseTooLarge(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64*1024))
	}))
	c.cfg.MaxResponseBytes = 1024
	c.buf = buffer.New(1024)

	out, err := c.Do(context.Background(), http.MethodGet, "/big", nil, nil)
	if !errors.Is(err, errdefs.ErrResponseTooLarge) {
		t.Fatalf("got %v, want ErrResponseTooLarge", err)
	}
	if out != nil {
		t.Fatalf("a capped transfer is not a success, got %+v", out)
	}
}

func TestSingleFlight(t *testing.T) {
	var inflight, violations atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inflight.Add(1) > 1 {
			violations.Add(1)
		}
		time.Sleep(50 * time.Millisecond)
		inflight.Add(-1)
		w.WriteHeader(http.StatusNoContent)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Do(context.Background(), http.MethodGet, "/serial", nil, nil); err != nil {
				t.Errorf("do: %v", err)
			}
		}()
	}
	wg.Wait()
	if violations.Load() != 0 {
		t.Fatalf("%d overlapping requests observed on one handle", violations.Load())
	}
}

func TestConnectionFailedClassification(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoint.SocketPath = filepath.Join(t.TempDir(), "absent.sock")
	cfg.ConnectTimeout = time.Second
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = c.Ping(context.Background())
	if !errdefs.IsConnectionFailed(err) {
		t.Fatalf("got %v, want connection-failed", err)
	}
	if c.LastError() == "" {
		t.Fatalf("LastError should carry the diagnostic")
	}
}

func TestPingAndVersion(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1.41/_ping":
			w.Write([]byte("OK"))
		case "/v1.41/version":
			w.Write([]byte(`{"ApiVersion":"1.41"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(string(v), "ApiVersion") {
		t.Fatalf("version body: %q", v)
	}
}

func TestLogsDemux(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1.41/containers/abc/logs") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Errorf("server does not support hijack")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Type: application/vnd.docker.raw-stream\r\n\r\n"))
		var stream []byte
		stream = protocol.AppendFrame(stream, protocol.ChannelStdout, []byte("hi"))
		stream = protocol.AppendFrame(stream, protocol.ChannelStderr, []byte("oops"))
		conn.Write(stream)
	}))

	type rec struct {
		c       protocol.Channel
		payload string
	}
	var got []rec
	err := c.Logs(context.Background(), "abc", LogsOptions{}, func(ch protocol.Channel, p []byte) {
		got = append(got, rec{ch, string(p)})
	})
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	want := []rec{{protocol.ChannelStdout, "hi"}, {protocol.ChannelStderr, "oops"}}
	if len(got) != len(want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestStreamDoesNotBlockRequests(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/logs") {
			hj, _ := w.(http.Hijacker)
			conn, _, err := hj.Hijack()
			if err != nil {
				return
			}
			defer conn.Close()
			conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
			<-release // hold the stream open
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	st, err := c.OpenStream(context.Background(), http.MethodGet, "/containers/x/logs?follow=true", nil)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer st.Close()

	// an ordinary request must complete while the stream is live
	done := make(chan error, 1)
	go func() {
		_, err := c.Do(context.Background(), http.MethodGet, "/while-streaming", nil, nil)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("request during stream: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("request blocked behind an open stream")
	}
	close(release)
}

func TestLogsCancelledByContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, _ := w.(http.Hijacker)
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		<-release // never send a byte, never close
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		done <- c.Logs(ctx, "abc", LogsOptions{Follow: true}, func(protocol.Channel, []byte) {})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, want context.Canceled", err)
		}
		if c.LastError() == "" {
			t.Fatalf("LastError should record the cancellation")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("cancelled follow stream still blocked")
	}
}

func TestStreamErrorBodyDiagnostic(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, _ := w.(http.Hijacker)
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("HTTP/1.1 404 Not Found\r\n\r\n{\"message\":\"no such container\"}"))
	}))

	err := c.Logs(context.Background(), "gone", LogsOptions{}, func(protocol.Channel, []byte) {})
	if !errdefs.IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
	if !strings.Contains(c.LastError(), "no such container") {
		t.Fatalf("LastError should carry the daemon's message, got %q", c.LastError())
	}
}
