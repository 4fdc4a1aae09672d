package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordindex/internal/config"
	"github.com/Aman-CERP/wordindex/internal/daemon"
	"github.com/Aman-CERP/wordindex/internal/indexer"
	"github.com/Aman-CERP/wordindex/internal/logging"
	"github.com/Aman-CERP/wordindex/internal/output"
)

// startupTimeout bounds how long a background start waits for the socket.
const startupTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the index daemon",
		Long: `Start the index daemon in the background.

The daemon indexes every configured root, follows changes, and answers
queries on a Unix socket. Use --foreground for debugging or to see logs
in real-time.`,
		Example: `  wordindex serve      # Start in background
  wordindex serve -f   # Run in foreground`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if foreground {
				return runServeForeground(cmd.Context(), cmd, cfg)
			}
			return runServeBackground(cmd, cfg)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func runServeForeground(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := output.New(cmd.OutOrStdout())

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         cfg.Log.Level,
		FilePath:      cfg.Log.File,
		MaxSizeMB:     cfg.Log.MaxSizeMB,
		MaxFiles:      cfg.Log.MaxFiles,
		WriteToStderr: true,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	ixCfg, err := indexerConfig(cfg, logger)
	if err != nil {
		return err
	}
	ix, err := indexer.New(ixCfg)
	if err != nil {
		return err
	}

	dc := daemonConfig(cfg)
	d, err := daemon.NewDaemon(dc, ix, logger)
	if err != nil {
		return err
	}

	out.Status("", "Starting daemon in foreground...")
	out.Field("Socket", dc.SocketPath)
	out.Field("Logs", cfg.Log.File)
	if dc.MetricsAddr != "" {
		out.Field("Metrics", "http://"+dc.MetricsAddr+"/metrics")
	}
	out.Status("", "Press Ctrl+C to stop")
	out.Newline()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

func runServeBackground(cmd *cobra.Command, cfg *config.Config) error {
	out := output.New(cmd.OutOrStdout())
	client := daemon.NewClient(daemonConfig(cfg))
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bg := exec.Command(execPath, "serve", "--foreground")
	bg.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := bg.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and detect an early exit.
	done := make(chan error, 1)
	go func() { done <- bg.Wait() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(startupTimeout)
	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		case <-deadline:
			return fmt.Errorf("daemon failed to start within %s", startupTimeout)
		case <-ticker.C:
			if client.IsRunning() {
				slog.Debug("daemon started", slog.Int("pid", bg.Process.Pid))
				out.Successf("Daemon started (pid: %d)", bg.Process.Pid)
				return nil
			}
		}
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long:  `Sends SIGTERM to the daemon for a graceful shutdown, then SIGKILL if it does not exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runStop(cmd, daemon.NewPIDFile(cfg.Daemon.PIDPath))
		},
	}
}

func runStop(cmd *cobra.Command, pidFile *daemon.PIDFile) error {
	out := output.New(cmd.OutOrStdout())

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}
	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Daemon stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	out.Success("Daemon killed")
	return nil
}
