package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/unowned-ai/nursery/pkg/records"
)

func newBackupCmd(opts *rootOptions) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore every collection as a JSON document",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup of every collection",
		Long: `Write every collection and the export metadata as one JSON document. The file
defaults to nursery-backup-YYYY-MM-DD.json in the current directory; use --out -
to write to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = records.BackupFilename(opts.now())
			}

			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.ExportAll(cmd.Context())
			if err != nil {
				return err
			}
			if out == "-" {
				return records.WriteSnapshot(cmd.OutOrStdout(), snap)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create backup file: %w", err)
			}
			if err := records.WriteSnapshot(f, snap); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write backup file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s\n", out)
			return nil
		},
	}
	exportCmd.Flags().StringP("out", "o", "", "Output file, - for stdout")

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Restore collections from a backup",
		Long: `Replace the contents of every collection present in the backup, in one
transaction. Collections missing from the backup are left alone. A backup from
another application or a newer schema is rejected without changes. Use - to read
from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open backup file: %w", err)
				}
				defer f.Close()
				in = f
			}
			snap, err := records.ReadSnapshot(in)
			if err != nil {
				return err
			}

			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ImportAll(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Restored %d collections from %s\n", len(snap.Collections), args[0])
			return nil
		},
	}

	backupCmd.AddCommand(exportCmd, importCmd)
	return backupCmd
}
