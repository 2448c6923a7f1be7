// Command dockerexcess-ctl is a thin CLI over the client core, mainly for
// poking at a daemon while developing: ping, version, raw API calls and
// streaming container logs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/g-flame-oss/libdockerexcess/pkg/client"
	"github.com/g-flame-oss/libdockerexcess/pkg/config"
	"github.com/g-flame-oss/libdockerexcess/pkg/observability"
	"github.com/g-flame-oss/libdockerexcess/pkg/protocol"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (optional)")
	method := flag.String("method", "GET", "HTTP method for the raw verb")
	data := flag.String("data", "", "request body for the raw verb")
	follow := flag.Bool("follow", false, "follow log output")
	tail := flag.Int("tail", 0, "limit logs to the last N lines (0 = all)")
	timestamps := flag.Bool("timestamps", false, "include timestamps in logs")
	tty := flag.Bool("tty", false, "container runs with a TTY (logs are unframed)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if err := cfg.ApplyDockerEnv(); err != nil {
		fatalf("docker env: %v", err)
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		fatalf("setup logger: %v", err)
	}
	defer logger.Sync()

	c, err := client.New(cfg)
	if err != nil {
		fatalf("new client: %v", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch verb := flag.Arg(0); verb {
	case "ping":
		if err := c.Ping(ctx); err != nil {
			fatalf("ping: %v (%s)", err, c.LastError())
		}
		fmt.Println("OK")
	case "version":
		body, err := c.Version(ctx)
		if err != nil {
			fatalf("version: %v (%s)", err, c.LastError())
		}
		os.Stdout.Write(body)
		fmt.Println()
	case "raw":
		path := flag.Arg(1)
		if path == "" {
			fatalf("usage: dockerexcess-ctl raw [-method M] [-data BODY] /path")
		}
		var body []byte
		if *data != "" {
			body = []byte(*data)
		}
		out, err := c.Raw(ctx, *method, path, body)
		if err != nil && out == nil {
			fatalf("raw: %v (%s)", err, c.LastError())
		}
		zap.L().Info("exchange complete",
			zap.Int("status", out.StatusCode),
			zap.String("size", formatBytes(int64(len(out.Body)))))
		os.Stdout.Write(out.Body)
		fmt.Println()
		if err != nil {
			os.Exit(1)
		}
	case "logs":
		id := flag.Arg(1)
		if id == "" {
			fatalf("usage: dockerexcess-ctl logs [-follow] [-tail N] [-tty] CONTAINER")
		}
		opts := client.LogsOptions{
			Follow:     *follow,
			Timestamps: *timestamps,
			Tail:       *tail,
			TTY:        *tty,
		}
		err := c.Logs(ctx, id, opts, func(ch protocol.Channel, p []byte) {
			if ch == protocol.ChannelStderr {
				os.Stderr.Write(p)
				return
			}
			os.Stdout.Write(p)
		})
		if err != nil {
			fatalf("logs: %v (%s)", err, c.LastError())
		}
	default:
		fatalf("usage: dockerexcess-ctl [flags] ping|version|raw|logs ...")
	}
}

// formatBytes renders a byte count in human-readable form.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMG"[exp])
}

func fatalf(format string, a ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
