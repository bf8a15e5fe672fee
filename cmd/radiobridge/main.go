// Command radiobridge relays PCM audio between a SIP media gateway speaking
// the USRP framing and a digital-radio host gateway speaking TLV records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/radiobridge/internal/bridge"
	"github.com/MrWong99/radiobridge/internal/config"
	"github.com/MrWong99/radiobridge/internal/health"
	"github.com/MrWong99/radiobridge/internal/observe"
	"github.com/MrWong99/radiobridge/internal/plugin"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "radiobridge: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "radiobridge: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("radiobridge starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Ingress.ListenAddr,
		"target_addr", cfg.Egress.TargetAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "radiobridge",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metric instruments", "err", err)
		return 1
	}

	// ── Plugin chain ──────────────────────────────────────────────────────────
	registry := plugin.NewRegistry()
	chain, err := plugin.FromConfig(cfg.Plugins, registry)
	if err != nil {
		slog.Error("failed to build plugin chain", "err", err)
		return 1
	}

	// ── Relay ─────────────────────────────────────────────────────────────────
	relay, err := bridge.New(cfg, chain, metrics, logger)
	if err != nil {
		slog.Error("failed to initialise relay", "err", err)
		return 1
	}

	// ── Observability HTTP server ─────────────────────────────────────────────
	var httpSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(
			health.Checker{Name: "ingress", Check: func(context.Context) error {
				if relay.IngressAddr() == nil {
					return errors.New("ingress socket not bound")
				}
				return nil
			}},
			health.Checker{Name: "relay", Check: relay.Ready},
		).Register(mux)

		httpSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("observability endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("observability endpoint failed", "err", err)
			}
		}()
	}

	slog.Info("relay ready — press Ctrl+C to shut down")

	runErr := relay.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("observability endpoint shutdown error", "err", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("relay error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
