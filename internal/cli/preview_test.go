package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetPreviewFlags() {
	previewSearch = ""
	previewReplace = ""
	previewReplaceAll = false
	previewTimeout = 0
}

func TestPreviewCommand_InitialDiff(t *testing.T) {
	defer resetPreviewFlags()
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("x := 1\ny := 2\n"), 0644))

	output, err := execute(t, "preview", path, "--search", "y := 2", "--replace", "y := 3", "--timeout", "50ms")
	require.NoError(t, err)

	assert.Contains(t, output, "(+1 -1)")
	assert.Contains(t, output, "-y := 2\n")
	assert.Contains(t, output, "+y := 3\n")
}

func TestPreviewCommand_FollowsExternalEdits(t *testing.T) {
	defer resetPreviewFlags()
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("x := 1\ny := 2\n"), 0644))

	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = os.WriteFile(path, []byte("// header\nx := 1\ny := 2\n"), 0644)
	}()

	output, err := execute(t, "preview", path, "--search", "y := 2", "--replace", "y := 3", "--timeout", "2s")
	require.NoError(t, err)

	assert.Contains(t, output, "+// header\n")
}

func TestPreviewCommand_Errors(t *testing.T) {
	defer resetPreviewFlags()
	dir := t.TempDir()

	_, err := execute(t, "preview", filepath.Join(dir, "missing.go"), "--search", "x", "--timeout", "10ms")
	assert.ErrorContains(t, err, "file not found")

	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("x := 1\n"), 0644))
	_, err = execute(t, "preview", path, "--search", "nothing", "--timeout", "10ms")
	assert.ErrorContains(t, err, "search text not found")
}
