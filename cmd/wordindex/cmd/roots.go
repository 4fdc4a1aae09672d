package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordindex/internal/daemon"
	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/output"
)

func newAddCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "add <dir>...",
		Short: "Register directories with the daemon",
		Long: `Register directories with the running daemon. Every file below them
is indexed and followed until the directory is removed.`,
		Example: `  wordindex add ./src ./docs
  wordindex add --wait ~/notes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoots(cmd, args, func(c *daemon.Client, ctx context.Context, path string) ([]string, error) {
				return c.Add(ctx, path)
			}, "Added", wait)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the daemon has indexed the new files")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <dir>...",
		Short: "Unregister directories",
		Long:  `Stop following directories and drop their files from the index.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoots(cmd, args, func(c *daemon.Client, ctx context.Context, path string) ([]string, error) {
				return c.Remove(ctx, path)
			}, "Removed", false)
		},
	}
}

type rootOp func(c *daemon.Client, ctx context.Context, path string) ([]string, error)

func runRoots(cmd *cobra.Command, args []string, op rootOp, verb string, wait bool) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidPath, "invalid path "+arg, err)
		}
		roots, err := op(client, ctx, path)
		if err != nil {
			return err
		}
		out.Successf("%s %s (%d roots)", verb, path, len(roots))
	}

	if wait {
		return waitIndexed(ctx, client, out)
	}
	return nil
}

// waitIndexed polls the daemon until it is idle, drawing progress over
// the valid share of known files.
func waitIndexed(ctx context.Context, client *daemon.Client, out *output.Writer) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		st := status.Stats
		if status.Idle {
			out.Progress(st.Files, st.Files, "files indexed")
			out.Summary(st)
			return nil
		}
		out.Progress(st.Valid, st.Files, "files indexed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
