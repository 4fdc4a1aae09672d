package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordindex/internal/output"
)

// queryFlags are shared by the query commands.
type queryFlags struct {
	roots      []string
	jsonOutput bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.roots, "root", nil, "Index these directories in-process instead of asking the daemon")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output as JSON")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSearchCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "search <word>",
		Short: "List the files containing a word",
		Long: `List the files containing a word.

Files marked with '*' changed since they were last read; their words
may be out of date.`,
		Example: `  wordindex search tiger
  wordindex search tiger --root ./docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), flags.roots)
			if err != nil {
				return err
			}
			defer b.Close()

			hits, err := b.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), hits)
			}

			out := output.New(cmd.OutOrStdout())
			if len(hits) == 0 {
				out.Status("", "No files found")
				return nil
			}
			for _, h := range hits {
				out.SearchHit(h)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newFilesCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List indexed files with their state",
		Long: `List every indexed file with its state and word count.

Markers: '+' valid, '*' processing, '-' invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd.Context(), flags.roots)
			if err != nil {
				return err
			}
			defer b.Close()

			files, err := b.Files(cmd.Context())
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), files)
			}
			stats, err := b.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			for _, f := range files {
				out.File(f)
			}
			out.Summary(stats)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newWordsCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "words",
		Short: "List indexed words",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd.Context(), flags.roots)
			if err != nil {
				return err
			}
			defer b.Close()

			words, err := b.Words(cmd.Context())
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), words)
			}
			out := output.New(cmd.OutOrStdout())
			for _, w := range words {
				out.Line(w)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newStatsCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd.Context(), flags.roots)
			if err != nil {
				return err
			}
			defer b.Close()

			stats, err := b.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			out := output.New(cmd.OutOrStdout())
			out.Summary(stats)
			out.Field("Words", stats.Words)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
