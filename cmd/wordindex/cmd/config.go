package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/wordindex/internal/config"
	"github.com/Aman-CERP/wordindex/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/wordindex/config.yaml)
  3. Project config (.wordindex.yaml)
  4. Environment variables (WORDINDEX_*)`,
		Example: `  wordindex config init
  wordindex config show --json
  wordindex config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file with default values.

With --force an existing file is backed up, then rewritten with its
settings kept and any missing options filled with defaults.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rewrite an existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the configuration after merging all sources, or a single source.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	cfg := config.NewConfig()
	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("User configuration already exists")
			out.Field("Location", path)
			out.Status("", "Use --force to rewrite it (your settings are kept)")
			return nil
		}

		backup, err := config.Backup(path)
		if err != nil {
			return err
		}
		if err := readYAML(path, cfg); err != nil {
			return err
		}
		if err := cfg.WriteYAML(path); err != nil {
			return err
		}
		out.Success("Configuration rewritten")
		out.Field("Location", path)
		out.Field("Backup", backup)
		return nil
	}

	if err := cfg.WriteYAML(path); err != nil {
		return err
	}
	out.Success("Created user configuration")
	out.Field("Location", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var cfg *config.Config
	switch source {
	case "merged":
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

	case "user":
		path := config.GetUserConfigPath()
		if _, err := os.Stat(path); err != nil {
			out.Warning("No user configuration file found")
			out.Field("Expected at", path)
			return nil
		}
		cfg = config.NewConfig()
		if err := readYAML(path, cfg); err != nil {
			return err
		}

	case "project":
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path := filepath.Join(cwd, config.ProjectFileYAML)
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(cwd, config.ProjectFileYML)
		}
		if _, err := os.Stat(path); err != nil {
			out.Warning("No project configuration file found")
			out.Field("Expected at", filepath.Join(cwd, config.ProjectFileYAML))
			return nil
		}
		cfg = config.NewConfig()
		if err := readYAML(path, cfg); err != nil {
			return err
		}

	case "defaults":
		cfg = config.NewConfig()

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}

// readYAML decodes path over cfg, keeping values the file does not set.
func readYAML(path string, cfg *config.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}
