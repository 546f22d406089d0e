package cli

import (
	"fmt"

	"github.com/harun/agentdiff/pkg/diffengine"
	"github.com/harun/agentdiff/pkg/livedoc"
	"github.com/spf13/cobra"
)

var statShowDiff bool

var statCmd = &cobra.Command{
	Use:   "stat <before> <after>",
	Short: "Count inserted and deleted lines between two files",
	Long: `Count inserted and deleted lines between two files using a longest
common subsequence over lines. A missing file counts as empty.`,
	Args: cobra.ExactArgs(2),
	RunE: runStat,
}

func init() {
	statCmd.Flags().BoolVar(&statShowDiff, "diff", false, "also print a unified line diff")
	rootCmd.AddCommand(statCmd)
}

func runStat(cmd *cobra.Command, args []string) error {
	store := livedoc.NewDiskStore()

	before, err := readOrEmpty(cmd, store, args[0])
	if err != nil {
		return err
	}
	after, err := readOrEmpty(cmd, store, args[1])
	if err != nil {
		return err
	}

	stats := diffengine.LineDiffStats(before, after)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "insertions: %d\n", stats.Insertions)
	fmt.Fprintf(out, "deletions: %d\n", stats.Deletions)

	if statShowDiff && !stats.IsZero() {
		fmt.Fprintln(out)
		fmt.Fprint(out, diffengine.Unified(before, after))
	}
	return nil
}
