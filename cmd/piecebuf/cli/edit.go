package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newInsertCmd(logger *slog.Logger) *cobra.Command {
	var offset int
	cmd := &cobra.Command{
		Use:   "insert <file> <text>",
		Short: "Insert text at a byte offset and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, text := args[0], args[1]
			b, err := openFile(cmd, logger, path)
			if err != nil {
				return err
			}
			if err := b.Insert(offset, []byte(text)); err != nil {
				return err
			}
			if err := saveInPlace(context.Background(), b, path, logger); err != nil {
				return err
			}
			fmt.Printf("inserted %d bytes at offset %d\n", len(text), offset)
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "byte offset to insert at")
	return cmd
}

func newDeleteCmd(logger *slog.Logger) *cobra.Command {
	var start, end int
	cmd := &cobra.Command{
		Use:   "delete <file>",
		Short: "Delete a byte range [start, end) and save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			b, err := openFile(cmd, logger, path)
			if err != nil {
				return err
			}
			if err := b.Delete(start, end); err != nil {
				return err
			}
			if err := saveInPlace(context.Background(), b, path, logger); err != nil {
				return err
			}
			fmt.Printf("deleted [%d, %d)\n", start, end)
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "range start (inclusive)")
	cmd.Flags().IntVar(&end, "end", 0, "range end (exclusive)")
	return cmd
}

func newReplaceCmd(logger *slog.Logger) *cobra.Command {
	var start, end int
	cmd := &cobra.Command{
		Use:   "replace <file> <text>",
		Short: "Replace a byte range [start, end) with text and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, text := args[0], args[1]
			b, err := openFile(cmd, logger, path)
			if err != nil {
				return err
			}
			if err := b.Replace(start, end, []byte(text)); err != nil {
				return err
			}
			if err := saveInPlace(context.Background(), b, path, logger); err != nil {
				return err
			}
			fmt.Printf("replaced [%d, %d) with %d bytes\n", start, end, len(text))
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "range start (inclusive)")
	cmd.Flags().IntVar(&end, "end", 0, "range end (exclusive)")
	return cmd
}
