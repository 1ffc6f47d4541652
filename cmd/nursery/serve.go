package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/unowned-ai/nursery/pkg/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		Long: `Serve the record store, daily summaries and backups over HTTP. Day boundaries
for summaries use --tz. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			tz, _ := cmd.Flags().GetString("tz")

			location := time.Local
			if tz != "" {
				loaded, err := time.LoadLocation(tz)
				if err != nil {
					return fmt.Errorf("invalid --tz %q: %w", tz, err)
				}
				location = loaded
			}

			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			handler := api.NewHandler(store, d,
				api.WithLogger(opts.logger),
				api.WithLocation(location),
				api.WithClock(opts.now),
			)
			app := api.NewApp(handler)

			sigCtx, stopSignals := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stopSignals()

			go func() {
				<-sigCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := app.ShutdownWithContext(shutdownCtx); err != nil {
					opts.logger.Error("server shutdown failed", "error", err)
				}
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "Nursery API listening on http://%s (db: %s, tz: %s)\n", addr, store.Name(), location)
			return app.Listen(addr)
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "Address to listen on")
	cmd.Flags().String("tz", "", "Time zone for day boundaries (default: local)")
	return cmd
}
