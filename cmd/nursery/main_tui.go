//go:build tui

package main

import (
	"github.com/unowned-ai/nursery/pkg/tui"

	"github.com/spf13/cobra"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Show terminal UI",
		Long:  `Display an interactive terminal UI for browsing children, their day and its summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			return tui.ShowTUI(store, d)
		},
	}
}

func init() {
	extraCommands = append(extraCommands, newTUICmd)
}
