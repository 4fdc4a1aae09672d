package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/wordindex/internal/errors"
)

// Service is the indexing service the daemon hosts.
type Service interface {
	Index
	Start(ctx context.Context) error
	Stop() error
	WaitFinished(timeout time.Duration) bool
	Rescan(ctx context.Context, path string) error
	Collector() prometheus.Collector
}

// Daemon owns the single-instance lock, the socket server, the optional
// metrics endpoint and the hosted service.
type Daemon struct {
	cfg        Config
	service    Service
	pid        *PIDFile
	server     *Server
	resync     *Resyncer
	instanceID string
	logger     *slog.Logger
}

// NewDaemon creates a daemon for service.
func NewDaemon(cfg Config, service Service, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid daemon configuration", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	d := &Daemon{
		cfg:        cfg,
		service:    service,
		pid:        NewPIDFile(cfg.PIDPath),
		instanceID: id,
		logger:     logger.With(slog.String("instance", id)),
	}
	d.server = NewServer(cfg.SocketPath, service, id, d.logger)
	d.server.timeout = cfg.Timeout
	d.resync = NewResyncer(cfg, service.Roots, service.IsIdle, service.Rescan, d.logger)
	d.server.onQuery = d.resync.OnQuery
	return d, nil
}

// InstanceID identifies this daemon run.
func (d *Daemon) InstanceID() string {
	return d.instanceID
}

// Run starts the service and serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}

	locked, err := d.pid.Lock()
	if err != nil {
		return err
	}
	if !locked {
		return errors.New(errors.ErrCodeAlreadyRunning, "daemon is already running", nil).
			WithDetail("pid_path", d.cfg.PIDPath).
			WithSuggestion("Stop it with 'wordindex stop' first")
	}
	defer func() { _ = d.pid.Unlock() }()

	if err := d.pid.Write(); err != nil {
		return err
	}
	defer func() { _ = d.pid.Remove() }()

	if err := d.service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start index: %w", err)
	}
	defer d.shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.server.ListenAndServe(gctx)
	})
	if d.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return d.serveMetrics(gctx)
		})
	}
	g.Go(func() error {
		d.resync.Run(gctx)
		return nil
	})

	d.logger.Info("daemon started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("metrics", d.cfg.MetricsAddr))
	return g.Wait()
}

func (d *Daemon) shutdown() {
	if err := d.service.Stop(); err != nil && !errors.Is(err, errors.ErrNotRunning) {
		d.logger.Warn("index stop failed", slog.String("error", err.Error()))
	}
	if !d.service.WaitFinished(d.cfg.ShutdownGracePeriod) {
		d.logger.Warn("index did not finish within grace period",
			slog.Duration("grace", d.cfg.ShutdownGracePeriod))
	}
	d.logger.Info("daemon stopped")
}

// serveMetrics exposes the service collector on /metrics.
func (d *Daemon) serveMetrics(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		d.service.Collector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              d.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	d.logger.Info("metrics listening", slog.String("addr", d.cfg.MetricsAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
