// Command realtalk streams the default microphone to the OpenAI Realtime API
// and plays back the spoken response while printing its transcript.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/realtalk/internal/config"
	"github.com/MrWong99/realtalk/internal/health"
	"github.com/MrWong99/realtalk/internal/observe"
	"github.com/MrWong99/realtalk/internal/pipeline"
	"github.com/MrWong99/realtalk/pkg/audio/miniaudio"
	"github.com/MrWong99/realtalk/pkg/realtime"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// listenOff disables the ops HTTP server.
const listenOff = "off"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	var level slog.LevelVar
	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
		applyReload(slog.Default(), &level, config.Diff(old, next))
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "realtalk: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "realtalk: %v\n", err)
		}
		return 1
	}
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	level.Set(cfg.Server.LogLevel.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("realtalk starting",
		"version", version,
		"config", *configPath,
		"model", cfg.Realtime.Model,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Audio devices ─────────────────────────────────────────────────────────
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
	}
	if cfg.Audio.CaptureEnabled() || cfg.Audio.PlaybackEnabled() {
		client, err := miniaudio.NewClient()
		if err != nil {
			// The pipeline still connects and prints transcripts.
			slog.Warn("audio unavailable, continuing without devices", "err", err)
		} else {
			defer func() {
				if err := client.Close(); err != nil {
					slog.Warn("audio close error", "err", err)
				}
			}()
			if cfg.Audio.CaptureEnabled() {
				opts = append(opts, pipeline.WithCaptureDevice(client))
			}
			if cfg.Audio.PlaybackEnabled() {
				opts = append(opts, pipeline.WithPlayer(client.NewPlayer()))
			}
		}
	}

	con := newConsole(os.Stdout)
	opts = append(opts,
		pipeline.WithTextSink(con.Text),
		pipeline.WithServerErrorHandler(con.ServerError),
	)

	// ── Realtime session ──────────────────────────────────────────────────────
	endpoint := realtime.NewEndpoint(cfg.Realtime.APIKey,
		realtime.WithModel(cfg.Realtime.Model),
		realtime.WithBaseURL(cfg.Realtime.BaseURL),
	)
	// The handshake is traced; the websocket conn itself is not.
	transport := realtime.NewWebSocketTransport(realtime.WithHTTPClient(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}))
	session := realtime.NewSession(transport, endpoint,
		realtime.WithLimits(realtime.Limits{
			ReadLimit: cfg.Realtime.ReadLimitBytes,
			SendQueue: cfg.Realtime.SendQueue,
		}),
		realtime.WithConnectTimeout(cfg.Realtime.ConnectTimeout),
	)

	p := pipeline.New(session, pipeline.Config{
		TickInterval:   cfg.Audio.TickInterval,
		BufferDuration: cfg.Audio.BufferDuration(),
		InboundQueue:   cfg.Pipeline.InboundQueue,
		DeviceID:       cfg.Audio.Device,
		Voice:          cfg.Realtime.Voice,
		Instructions:   cfg.Realtime.Instructions,
	}, opts...)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Run(gctx)
	})
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	if cfg.Server.ListenAddr != listenOff {
		srv := newOpsServer(cfg.Server.ListenAddr, metrics, p)
		g.Go(func() error {
			return serveOps(gctx, srv)
		})
	}

	slog.Info("realtalk ready, press Ctrl+C to stop", "session_id", p.ID())

	err = g.Wait()
	con.Close()
	if err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// applyReload applies the hot-reloadable parts of a config change and warns
// about the rest.
func applyReload(logger *slog.Logger, level *slog.LevelVar, diff config.ConfigDiff) {
	if diff.LogLevelChanged {
		level.Set(diff.NewLogLevel.Level())
		logger.Info("log level changed", "log_level", diff.NewLogLevel)
	}
	if len(diff.RestartRequired) > 0 {
		logger.Warn("config changes take effect on next start", "keys", diff.RestartRequired)
	}
}

// ── Ops server ────────────────────────────────────────────────────────────────

func newOpsServer(addr string, metrics *observe.Metrics, p *pipeline.Pipeline) *http.Server {
	mux := http.NewServeMux()
	health.New(health.ConnectionChecker("realtime", p.Connected)).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveOps runs srv until ctx is done, then shuts it down gracefully.
func serveOps(ctx context.Context, srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("ops server: %w", err)
	}
	slog.Info("ops server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}
