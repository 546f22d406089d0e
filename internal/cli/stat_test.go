package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatCommand(t *testing.T) {
	dir := t.TempDir()
	before := filepath.Join(dir, "before.txt")
	after := filepath.Join(dir, "after.txt")
	require.NoError(t, os.WriteFile(before, []byte("a\nb\nc"), 0644))
	require.NoError(t, os.WriteFile(after, []byte("a\nc\nd\ne"), 0644))

	t.Run("counts only", func(t *testing.T) {
		statShowDiff = false
		output, err := execute(t, "stat", before, after)
		require.NoError(t, err)
		assert.Equal(t, "insertions: 2\ndeletions: 1\n", output)
	})

	t.Run("with diff", func(t *testing.T) {
		output, err := execute(t, "stat", "--diff", before, after)
		require.NoError(t, err)
		assert.Contains(t, output, "-b\n")
		assert.Contains(t, output, "+d\n")
		statShowDiff = false
	})

	t.Run("missing file counts as empty", func(t *testing.T) {
		output, err := execute(t, "stat", filepath.Join(dir, "missing.txt"), before)
		require.NoError(t, err)
		assert.Equal(t, "insertions: 3\ndeletions: 1\n", output)
	})

	t.Run("requires two args", func(t *testing.T) {
		_, err := execute(t, "stat", before)
		assert.Error(t, err)
	})
}
