package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change application settings",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := d.Settings(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printer(cmd).print(s, func(w io.Writer) { printSettings(w, s) })
		},
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change the settings given as flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := d.Settings(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dark-mode") {
				s.DarkMode, _ = cmd.Flags().GetBool("dark-mode")
			}
			if cmd.Flags().Changed("active-child") {
				s.ActiveChildID, _ = cmd.Flags().GetInt64("active-child")
			}
			if cmd.Flags().Changed("last-sync") {
				s.LastSyncDate, _ = cmd.Flags().GetString("last-sync")
			}
			if err := d.SaveSettings(cmd.Context(), s); err != nil {
				return err
			}
			return opts.printer(cmd).print(s, func(w io.Writer) { printSettings(w, s) })
		},
	}
	setCmd.Flags().Bool("dark-mode", false, "Use the dark theme")
	setCmd.Flags().Int64("active-child", 0, "Child shown by default, 0 for none")
	setCmd.Flags().String("last-sync", "", "Date of the last sync")

	settingsCmd.AddCommand(getCmd, setCmd)
	return settingsCmd
}
