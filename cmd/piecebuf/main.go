// Command piecebuf is a one-shot operator CLI over the buffer core:
// each invocation opens a file, applies zero or more edits, optionally
// saves, and exits. It has no persistent session, so undo/redo and
// marker tracking (which require one long-lived Buffer) are not
// exposed here; they are a library concern for an embedding editor.
package main

import (
	"log/slog"
	"os"

	"piecebuf/cmd/piecebuf/cli"
	"piecebuf/internal/logging"
)

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(logging.NewComponentFilterHandler(handler, slog.LevelInfo))

	rootCmd := cli.NewRootCommand(logger)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
