package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"piecebuf/internal/buffer"
	"piecebuf/internal/piecetree"
)

func newCatCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <file>",
		Short: "Print a file's contents through the buffer core",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openFile(cmd, logger, args[0])
			if err != nil {
				return err
			}
			cur, err := b.Bytes(0, b.Len())
			if err != nil {
				return err
			}
			data, err := piecetree.ReadAll(cur)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func newStatCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <file>",
		Short: "Print diagnostic stats for a file (chunk count, encoding, line count)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openFile(cmd, logger, args[0])
			if err != nil {
				return err
			}
			stats := b.Stats()
			fmt.Printf("bytes:       %d\n", b.Len())
			fmt.Printf("chunks:      %d\n", stats.ChunkCount)
			fmt.Printf("markers:     %d\n", stats.MarkerCount)
			fmt.Printf("large file:  %v\n", stats.LargeFile)
			fmt.Printf("encoding:    %v\n", encodingName(b.Encoding()))
			if n, ok := b.LineCount(); ok {
				fmt.Printf("lines:       %d\n", n)
			} else {
				fmt.Printf("lines:       unknown (run `piecebuf scan` to compute)\n")
			}
			return nil
		},
	}
}

func newScanCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <file>",
		Short: "Run the line-index scan to completion and print the line count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openFile(cmd, logger, args[0])
			if err != nil {
				return err
			}
			if err := b.ScanLines(context.Background()); err != nil {
				return err
			}
			n, _ := b.LineCount()
			fmt.Println(n)
			return nil
		},
	}
}

func encodingName(e buffer.EncodingHint) string {
	switch e {
	case buffer.UTF8:
		return "utf-8"
	case buffer.UTF8WithBOM:
		return "utf-8 (BOM)"
	default:
		return "unknown"
	}
}
