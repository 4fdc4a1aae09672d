package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordindex/internal/daemon"
	"github.com/Aman-CERP/wordindex/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Show whether the daemon is running, its process ID, uptime,
registered roots and index counters.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			if !client.IsRunning() {
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), daemon.StatusResult{Running: false})
				}
				out.Status("", "Daemon is not running")
				out.Status("", "Run 'wordindex serve' to start it")
				return nil
			}

			status, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), status)
			}

			state := "indexing"
			if status.Idle {
				state = "idle"
			}
			out.Header("Daemon is running")
			out.Field("PID", status.PID)
			out.Field("Instance", status.InstanceID)
			out.Field("Version", status.Version)
			out.Field("Uptime", status.Uptime)
			out.Field("State", state)
			out.Field("Roots", len(status.Roots))
			for _, r := range status.Roots {
				out.Status("", "  "+r)
			}
			out.Newline()
			out.Summary(status.Stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
