// Package cli implements the piecebuf command tree: one-shot file
// operations (cat, stat, scan, insert, delete, replace) built on
// internal/buffer.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"piecebuf/internal/buffer"
	"piecebuf/internal/fsys"
)

const defaultLargeFileThreshold = 64 * 1024 * 1024

// NewRootCommand returns the "piecebuf" command with all subcommands
// wired in.
func NewRootCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "piecebuf",
		Short: "Inspect and edit text files through the piece-tree buffer core",
	}
	cmd.PersistentFlags().Int64("large-file-threshold", defaultLargeFileThreshold,
		"file size in bytes at or above which a file is opened lazily")

	cmd.AddCommand(
		newCatCmd(logger),
		newStatCmd(logger),
		newScanCmd(logger),
		newInsertCmd(logger),
		newDeleteCmd(logger),
		newReplaceCmd(logger),
	)
	return cmd
}

// openFile loads path through the local filesystem, honoring the
// --large-file-threshold persistent flag.
func openFile(cmd *cobra.Command, logger *slog.Logger, path string) (*buffer.Buffer, error) {
	threshold, _ := cmd.Flags().GetInt64("large-file-threshold")
	return buffer.Load(buffer.Config{Logger: logger}, fsys.NewLocal(), path, threshold)
}

// saveInPlace writes b's current content back to path and runs
// consolidation, the one-shot CLI's save step.
func saveInPlace(ctx context.Context, b *buffer.Buffer, path string, logger *slog.Logger) error {
	return b.SaveTo(ctx, path, buffer.SaveConfig{
		Filesystem:  fsys.NewLocal(),
		ManifestDir: recoveryDirFor(path),
		Logger:      logger,
	})
}

// recoveryDirFor returns where an in-place save's recovery manifest is
// written for path: a sibling ".piecebuf-recovery" directory, so a
// crash mid-save leaves its manifest discoverable next to the file it
// protects.
func recoveryDirFor(path string) string {
	return path + ".piecebuf-recovery"
}
