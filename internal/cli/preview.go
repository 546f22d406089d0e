package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/harun/agentdiff/internal/app"
	"github.com/harun/agentdiff/pkg/diffengine"
	"github.com/harun/agentdiff/pkg/livedoc"
	"github.com/spf13/cobra"
)

var (
	previewSearch     string
	previewReplace    string
	previewReplaceAll bool
	previewTimeout    time.Duration
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Preview a search/replace edit and keep it in sync with the file",
	Long: `Preview a search/replace edit as a unified diff. The preview stays open and
is re-rendered whenever the file changes on disk, re-applying the edit to the
new content, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewSearch, "search", "", "text to replace (required)")
	previewCmd.Flags().StringVar(&previewReplace, "replace", "", "replacement text")
	previewCmd.Flags().BoolVar(&previewReplaceAll, "all", false, "replace every occurrence")
	previewCmd.Flags().DurationVar(&previewTimeout, "timeout", 0, "stop after this long (0 waits for interrupt)")
	_ = previewCmd.MarkFlagRequired("search")
	rootCmd.AddCommand(previewCmd)
}

// consoleView renders a preview as a unified diff on each rediff
type consoleView struct {
	path            string
	left            string
	right           string
	search, replace string
	out             io.Writer
	mu              sync.Mutex
}

func (v *consoleView) Left() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.left
}

func (v *consoleView) Right() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.right
}

func (v *consoleView) SetRight(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.right = text
}

func (v *consoleView) Rediff() {
	v.mu.Lock()
	defer v.mu.Unlock()

	stats := diffengine.LineDiffStats(v.left, v.right)
	fmt.Fprintf(v.out, "--- %s (+%d -%d)\n", v.path, stats.Insertions, stats.Deletions)
	fmt.Fprint(v.out, diffengine.Unified(v.left, v.right))
}

func (v *consoleView) Replacement() (string, string, bool) {
	return v.search, v.replace, true
}

func runPreview(cmd *cobra.Command, args []string) error {
	path := args[0]

	rt, err := app.New(loadedConfig)
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.Documents.Resolve(cmd.Context(), path)
	if err != nil {
		if errors.Is(err, livedoc.ErrNotFound) {
			return fmt.Errorf("file not found: %s", path)
		}
		return err
	}

	original := doc.Text()
	if !strings.Contains(original, previewSearch) {
		return fmt.Errorf("search text not found in %s", path)
	}

	view := &consoleView{
		path:    path,
		left:    original,
		right:   diffengine.ApplyReplacement(original, previewSearch, previewReplace, previewReplaceAll),
		search:  previewSearch,
		replace: previewReplace,
		out:     cmd.OutOrStdout(),
	}
	view.Rediff()

	rt.Sync.RegisterEditor(doc.Path(), view)
	defer rt.Sync.UnregisterEditor(doc.Path(), view)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if previewTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, previewTimeout)
		defer cancel()
	}

	logger := componentLogger("preview")
	logger.Info().Str("path", doc.Path()).Msg("Watching for changes")
	<-ctx.Done()
	return nil
}
