package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	nursery "github.com/unowned-ai/nursery/pkg"
	pkgdb "github.com/unowned-ai/nursery/pkg/db"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"
	"github.com/unowned-ai/nursery/pkg/utils"

	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	dbPath   string
	walMode  bool
	syncMode string
	format   string
	verbose  bool

	now    func() time.Time
	logger *slog.Logger
}

var validFormats = []string{"text", "json", "yaml"}

// extraCommands are added by optional, build-tagged command files.
var extraCommands []func(*rootOptions) *cobra.Command

func newRootCmd(now func() time.Time) *cobra.Command {
	opts := &rootOptions{now: now}

	rootCmd := &cobra.Command{
		Use:           "nursery",
		Short:         "A local record store for baby care: feedings, sleep, diapers, health and milestones.",
		Version:       fmt.Sprintf("v%s", nursery.Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
			}
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", fmt.Sprintf("Path to the database file (default: $%s or a system-specific location)", utils.DBPathEnv))
	rootCmd.PersistentFlags().BoolVar(&opts.walMode, "wal", false, "Enable SQLite WAL (Write-Ahead Logging) mode")
	rootCmd.PersistentFlags().StringVar(&opts.syncMode, "sync", "FULL", "SQLite synchronous pragma (OFF, NORMAL, FULL, EXTRA)")
	rootCmd.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format (text|json|yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging on stderr")

	rootCmd.AddCommand(
		newCompletionCmd(rootCmd),
		newVersionCmd(),
		newDBCmd(opts),
		newChildrenCmd(opts),
		newLogCmd(opts),
		newRecordsCmd(opts),
		newSummaryCmd(opts),
		newBackupCmd(opts),
		newSettingsCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
	)
	for _, extra := range extraCommands {
		rootCmd.AddCommand(extra(opts))
	}
	return rootCmd
}

// openStore resolves the database path, opens the store (bootstrapping or
// upgrading its schema) and wraps it in a diary.
func (o *rootOptions) openStore(ctx context.Context) (*records.Store, *diary.Diary, error) {
	path, err := utils.ResolveAndEnsureDBPath(o.dbPath)
	if err != nil {
		return nil, nil, err
	}
	store := records.New(path, pkgdb.TargetSchemaVersion,
		records.WithLogger(o.logger),
		records.WithClock(o.now),
		records.WithWAL(o.walMode),
		records.WithSyncMode(o.syncMode),
	)
	if err := store.Open(ctx); err != nil {
		return nil, nil, err
	}
	d := diary.New(store, diary.WithClock(o.now), diary.WithLogger(o.logger))
	return store, d, nil
}

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("completion %s", strings.Join(completionShells, "|")),
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for nursery.

The command prints a completion script to stdout. You can source it in your shell
or install it to the appropriate location for your shell to enable completions permanently.

Examples:

  Bash (current shell):
    $ source <(nursery completion bash)

  Bash (persist):
    $ nursery completion bash > /etc/bash_completion.d/nursery

  Zsh:
    $ nursery completion zsh > "${fpath[1]}/_nursery"

  Fish:
    $ nursery completion fish | source
    $ nursery completion fish > ~/.config/fish/completions/nursery.fish

  PowerShell:
    PS> nursery completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             completionShells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return rootCmd.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nursery",
		Long:  `All software has versions. This is nursery's`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), nursery.Version)
		},
	}
}

func newDBCmd(opts *rootOptions) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the nursery database",
		Long:  `Provides commands for managing the nursery SQLite database, including schema upgrades and resets.`,
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "upgrade",
		Short: "Create or upgrade the database schema to the latest version",
		Long: `Connects to the SQLite database at the --db path (or the default location) and
creates any missing record tables, indexed columns and indexes. A database written
by a newer version of nursery is left untouched and reported as an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.ErrOrStderr(), "Database at %s is at schema version %d (WAL: %t, Sync: %s)\n",
				store.Name(), store.Version(), opts.walMode, opts.syncMode)
			return nil
		},
	})

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the database and every record in it",
		Long: `Closes and deletes the database file together with its -wal and -shm side files.
The schema is created again on the next command. Requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.New("refusing to delete every record without --yes")
			}
			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.DeleteAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Deleted database %s\n", store.Name())
			return nil
		},
	}
	resetCmd.Flags().Bool("yes", false, "Confirm deleting every record")
	dbCmd.AddCommand(resetCmd)

	return dbCmd
}

func main() {
	if err := newRootCmd(time.Now).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
