package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zvecio/zvec/internal/wal"
)

func newWALCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wal",
		Short: "Inspect write-ahead log files",
	}
	cmd.AddCommand(newWALInspectCmd())
	return cmd
}

func newWALInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>",
		Short: "Replay a WAL file and print each record's length, stopping at the first corrupt frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			w, err := wal.Open(path, false, 0)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			defer w.Close()

			if err := w.PrepareForRead(); err != nil {
				return fmt.Errorf("prepare for read: %w", err)
			}

			var count int
			var totalBytes int
			for {
				rec := w.Next()
				if rec == "" {
					break
				}
				count++
				totalBytes += len(rec)
				fmt.Printf("record %d: %d bytes\n", count, len(rec))
			}

			logger.Info("wal inspect complete", map[string]interface{}{
				"path":        path,
				"records":     count,
				"total_bytes": totalBytes,
			})
			fmt.Printf("%d records, %d bytes total\n", count, totalBytes)
			return nil
		},
	}
}
