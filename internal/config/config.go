// Package config loads wordindex configuration from defaults, the user
// config file, a project file and WORDINDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/tokenizer"
)

// Project config file names, in lookup order.
const (
	ProjectFileYAML = ".wordindex.yaml"
	ProjectFileYML  = ".wordindex.yml"
)

// Config represents the complete wordindex configuration.
type Config struct {
	// Tokenizer selects how file content is split into words:
	// whitespace, alphanum or code.
	Tokenizer string `yaml:"tokenizer" json:"tokenizer"`

	// ParserThreads is the number of parallel tokenization passes.
	ParserThreads int `yaml:"parser_threads" json:"parser_threads"`

	// ParserQueueSize is the number of admitted passes that may wait for a thread.
	ParserQueueSize int `yaml:"parser_queue_size" json:"parser_queue_size"`

	// InternalQueueSize bounds outstanding structural tasks and, separately,
	// outstanding word tasks.
	InternalQueueSize int `yaml:"internal_queue_size" json:"internal_queue_size"`

	// RegistrationQueueSize bounds concurrent root registrations.
	RegistrationQueueSize int `yaml:"registration_queue_size" json:"registration_queue_size"`

	// SearchCacheSize is the number of cached search results; 0 disables.
	SearchCacheSize int `yaml:"search_cache_size" json:"search_cache_size"`

	// Roots are indexed when the daemon starts.
	Roots []string `yaml:"roots" json:"roots"`

	Watch  WatchConfig  `yaml:"watch" json:"watch"`
	Daemon DaemonConfig `yaml:"daemon" json:"daemon"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// WatchConfig configures file system watching.
type WatchConfig struct {
	Debounce     string   `yaml:"debounce" json:"debounce"`
	PollInterval string   `yaml:"poll_interval" json:"poll_interval"`
	ForcePolling bool     `yaml:"force_polling" json:"force_polling"`
	Exclude      []string `yaml:"exclude" json:"exclude"`
}

// DaemonConfig configures the background service.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	PIDPath    string `yaml:"pid_path" json:"pid_path"`
	// MetricsAddr is the listen address for Prometheus metrics; empty disables.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	Timeout     string `yaml:"timeout" json:"timeout"`
	// ResyncInterval is the minimum time between full rescans of every root; empty disables.
	ResyncInterval string `yaml:"resync_interval" json:"resync_interval"`
	IdleTimeout    string `yaml:"idle_timeout" json:"idle_timeout"`
}

// LogConfig configures log output.
type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"node_modules/",
	"vendor/",
	"__pycache__/",
	"*.swp",
	"*~",
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	dir := DataDir()
	return &Config{
		Tokenizer:             string(tokenizer.KindAlphanum),
		ParserThreads:         3,
		ParserQueueSize:       10,
		InternalQueueSize:     100,
		RegistrationQueueSize: 10,
		SearchCacheSize:       1024,
		Watch: WatchConfig{
			Debounce:     "200ms",
			PollInterval: "5s",
			Exclude:      append([]string(nil), defaultExcludePatterns...),
		},
		Daemon: DaemonConfig{
			SocketPath:  filepath.Join(dir, "daemon.sock"),
			PIDPath:     filepath.Join(dir, "daemon.pid"),
			Timeout:     "30s",
			IdleTimeout: "30s",
		},
		Log: LogConfig{
			Level:     "info",
			File:      filepath.Join(dir, "logs", "server.log"),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DataDir returns ~/.wordindex, or a temp directory if home is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".wordindex")
	}
	return filepath.Join(home, ".wordindex")
}

// GetUserConfigPath returns the path to the user config file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/wordindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/wordindex/config.yaml (fallback)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wordindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "wordindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "wordindex", "config.yaml")
}

// Load builds the configuration for dir.
// Precedence: defaults < user config < project file < environment.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "invalid configuration", err)
	}
	return cfg, nil
}

// loadFromFile merges the project config file in dir, if any.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectFileYAML, ProjectFileYML} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "cannot parse "+path, err).
			WithSuggestion("Check the YAML syntax of " + path)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	setString(&c.Tokenizer, other.Tokenizer)
	setInt(&c.ParserThreads, other.ParserThreads)
	setInt(&c.ParserQueueSize, other.ParserQueueSize)
	setInt(&c.InternalQueueSize, other.InternalQueueSize)
	setInt(&c.RegistrationQueueSize, other.RegistrationQueueSize)
	setInt(&c.SearchCacheSize, other.SearchCacheSize)
	if len(other.Roots) > 0 {
		c.Roots = other.Roots
	}

	setString(&c.Watch.Debounce, other.Watch.Debounce)
	setString(&c.Watch.PollInterval, other.Watch.PollInterval)
	if other.Watch.ForcePolling {
		c.Watch.ForcePolling = true
	}
	// Exclude patterns accumulate.
	c.Watch.Exclude = appendUnique(c.Watch.Exclude, other.Watch.Exclude...)

	setString(&c.Daemon.SocketPath, other.Daemon.SocketPath)
	setString(&c.Daemon.PIDPath, other.Daemon.PIDPath)
	setString(&c.Daemon.MetricsAddr, other.Daemon.MetricsAddr)
	setString(&c.Daemon.Timeout, other.Daemon.Timeout)
	setString(&c.Daemon.ResyncInterval, other.Daemon.ResyncInterval)
	setString(&c.Daemon.IdleTimeout, other.Daemon.IdleTimeout)

	setString(&c.Log.Level, other.Log.Level)
	setString(&c.Log.File, other.Log.File)
	setInt(&c.Log.MaxSizeMB, other.Log.MaxSizeMB)
	setInt(&c.Log.MaxFiles, other.Log.MaxFiles)
}

// applyEnvOverrides applies WORDINDEX_* environment variables.
// Unparseable numbers are ignored.
func (c *Config) applyEnvOverrides() {
	strs := map[string]*string{
		"WORDINDEX_TOKENIZER":           &c.Tokenizer,
		"WORDINDEX_WATCH_DEBOUNCE":      &c.Watch.Debounce,
		"WORDINDEX_WATCH_POLL_INTERVAL": &c.Watch.PollInterval,
		"WORDINDEX_SOCKET_PATH":         &c.Daemon.SocketPath,
		"WORDINDEX_PID_PATH":            &c.Daemon.PIDPath,
		"WORDINDEX_METRICS_ADDR":        &c.Daemon.MetricsAddr,
		"WORDINDEX_RESYNC_INTERVAL":     &c.Daemon.ResyncInterval,
		"WORDINDEX_LOG_LEVEL":           &c.Log.Level,
		"WORDINDEX_LOG_FILE":            &c.Log.File,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORDINDEX_PARSER_THREADS":          &c.ParserThreads,
		"WORDINDEX_PARSER_QUEUE_SIZE":       &c.ParserQueueSize,
		"WORDINDEX_INTERNAL_QUEUE_SIZE":     &c.InternalQueueSize,
		"WORDINDEX_REGISTRATION_QUEUE_SIZE": &c.RegistrationQueueSize,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	if v := os.Getenv("WORDINDEX_FORCE_POLLING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch.ForcePolling = b
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, err := tokenizer.ParseKind(c.Tokenizer); err != nil {
		return err
	}
	positive := []struct {
		name string
		v    int
	}{
		{"parser_threads", c.ParserThreads},
		{"internal_queue_size", c.InternalQueueSize},
		{"registration_queue_size", c.RegistrationQueueSize},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.v)
		}
	}
	if c.ParserQueueSize < 0 {
		return fmt.Errorf("parser_queue_size must be non-negative, got %d", c.ParserQueueSize)
	}
	if c.SearchCacheSize < 0 {
		return fmt.Errorf("search_cache_size must be non-negative, got %d", c.SearchCacheSize)
	}

	durations := map[string]string{
		"watch.debounce":         c.Watch.Debounce,
		"watch.poll_interval":    c.Watch.PollInterval,
		"daemon.timeout":         c.Daemon.Timeout,
		"daemon.resync_interval": c.Daemon.ResyncInterval,
		"daemon.idle_timeout":    c.Daemon.IdleTimeout,
	}
	for name, v := range durations {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxFiles < 0 {
		return fmt.Errorf("log.max_size_mb and log.max_files must be non-negative")
	}
	return nil
}

// DebounceWindow returns watch.debounce as a duration.
func (c *Config) DebounceWindow() time.Duration {
	d, _ := parseDuration(c.Watch.Debounce)
	return d
}

// PollInterval returns watch.poll_interval as a duration.
func (c *Config) PollInterval() time.Duration {
	d, _ := parseDuration(c.Watch.PollInterval)
	return d
}

// DaemonTimeout returns daemon.timeout as a duration.
func (c *Config) DaemonTimeout() time.Duration {
	d, _ := parseDuration(c.Daemon.Timeout)
	return d
}

// ResyncInterval returns daemon.resync_interval as a duration. Zero disables resyncing.
func (c *Config) ResyncInterval() time.Duration {
	d, _ := parseDuration(c.Daemon.ResyncInterval)
	return d
}

// IdleTimeout returns daemon.idle_timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	d, _ := parseDuration(c.Daemon.IdleTimeout)
	return d
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// parseDuration accepts Go duration syntax; empty means zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative, got %s", s)
	}
	return d, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func appendUnique(base []string, more ...string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range more {
		if !seen[s] {
			seen[s] = true
			base = append(base, s)
		}
	}
	return base
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
