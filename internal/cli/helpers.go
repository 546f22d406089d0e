package cli

import (
	"errors"

	"github.com/harun/agentdiff/pkg/livedoc"
	"github.com/spf13/cobra"
)

// readOrEmpty reads path, treating a missing file as empty content
func readOrEmpty(cmd *cobra.Command, store *livedoc.DiskStore, path string) (string, error) {
	data, err := store.Read(cmd.Context(), path)
	if err != nil {
		if errors.Is(err, livedoc.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
