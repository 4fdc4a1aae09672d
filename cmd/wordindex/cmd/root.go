// Package cmd provides the CLI commands for wordindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordindex/internal/config"
	"github.com/Aman-CERP/wordindex/internal/daemon"
	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/index"
	"github.com/Aman-CERP/wordindex/internal/indexer"
	"github.com/Aman-CERP/wordindex/internal/logging"
	"github.com/Aman-CERP/wordindex/internal/profiling"
	"github.com/Aman-CERP/wordindex/internal/tokenizer"
	"github.com/Aman-CERP/wordindex/internal/watcher"
	"github.com/Aman-CERP/wordindex/pkg/version"
)

// Profiling flags
var (
	profileOpts profiling.Options
	profiler    *profiling.Profiler
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the wordindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordindex",
		Short: "Incremental word index over directory trees",
		Long: `wordindex keeps an in-memory index from words to the files that
contain them, following file system changes as they happen.

A background daemon owns the index. Register directories with 'add',
then query with 'search', 'files', 'words' and 'stats'.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("wordindex version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.wordindex/logs/")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newFilesCmd())
	cmd.AddCommand(newWordsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts profiling and debug logging if requested.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		profiler = profiling.New(profileOpts)
		if err := profiler.Start(); err != nil {
			profiler = nil
			return err
		}
	}
	if !debugMode {
		return nil
	}

	cfg := logging.DefaultConfig()
	cfg.Level = "debug"
	cfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("debug logging enabled", slog.String("log_file", cfg.FilePath), slog.String("version", version.Short()))
	return nil
}

// stopProfilingAndLogging stops profiling, writing the heap profile, and
// closes the debug log.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads the configuration for the working directory.
func loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Load(dir)
}

// daemonConfig maps the configuration onto the daemon's settings.
func daemonConfig(cfg *config.Config) daemon.Config {
	dc := daemon.DefaultConfig()
	dc.SocketPath = cfg.Daemon.SocketPath
	dc.PIDPath = cfg.Daemon.PIDPath
	dc.MetricsAddr = cfg.Daemon.MetricsAddr
	dc.Timeout = cfg.DaemonTimeout()
	dc.ResyncInterval = cfg.ResyncInterval()
	if d := cfg.IdleTimeout(); d > 0 {
		dc.IdleTimeout = d
	}
	return dc
}

// indexerConfig maps the configuration onto the indexing service.
func indexerConfig(cfg *config.Config, logger *slog.Logger) (indexer.Config, error) {
	kind, err := tokenizer.ParseKind(cfg.Tokenizer)
	if err != nil {
		return indexer.Config{}, err
	}

	ic := index.DefaultConfig()
	ic.Tokenizer = kind
	ic.Workers = cfg.ParserThreads
	ic.WorkerQueueSize = cfg.ParserQueueSize
	ic.QueueSize = cfg.InternalQueueSize
	ic.SearchCacheSize = cfg.SearchCacheSize
	ic.Logger = logger

	wo := watcher.DefaultOptions()
	wo.DebounceWindow = cfg.DebounceWindow()
	wo.PollInterval = cfg.PollInterval()
	wo.ForcePolling = cfg.Watch.ForcePolling
	wo.IgnorePatterns = cfg.Watch.Exclude

	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return indexer.Config{}, errors.New(errors.ErrCodeInvalidPath, "invalid root "+r, err)
		}
		roots = append(roots, abs)
	}

	return indexer.Config{
		Index:                 ic,
		Watch:                 wo,
		Roots:                 roots,
		RegistrationQueueSize: cfg.RegistrationQueueSize,
		Logger:                logger,
	}, nil
}

// newClient returns a daemon client for the loaded configuration.
func newClient() (*daemon.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.NewClient(daemonConfig(cfg)), nil
}
