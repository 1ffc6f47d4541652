package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/unowned-ai/nursery/pkg/records"
)

func newRecordsCmd(opts *rootOptions) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Read and delete raw records in any collection",
		Long: `Low-level access to the record store. Collections are children, feeding, sleep,
diaper, health, milestones, mood, interactions and settings.`,
	}

	listCmd := &cobra.Command{
		Use:   "list [collection]",
		Short: "List every record in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.GetAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.printer(cmd).print(recs, func(w io.Writer) { printRecords(w, recs) })
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [collection] [key]",
		Short: "Get one record by key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			rec, ok, err := store.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("record not found: %s/%s", args[0], args[1])
			}
			return opts.printer(cmd).print(rec, func(w io.Writer) { printRecords(w, []records.Record{rec}) })
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [collection] [key]",
		Short: "Delete one record by key (deleting a missing record is not an error)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %s/%s\n", args[0], args[1])
			return nil
		},
	}

	queryCmd := &cobra.Command{
		Use:   "query [collection] [index] [value]",
		Short: "List records whose indexed field equals value",
		Long: `List records whose indexed field equals value. Numbers, booleans and JSON arrays
(for composite indexes) are parsed as such; anything else is matched as text.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.GetByIndex(cmd.Context(), args[0], args[1], records.ParseQueryValue(args[2]))
			if err != nil {
				return err
			}
			return opts.printer(cmd).print(recs, func(w io.Writer) { printRecords(w, recs) })
		},
	}

	rangeCmd := &cobra.Command{
		Use:   "range [collection] [index]",
		Short: "List records whose indexed time lies within --start and --end, inclusive",
		Long: `List records whose indexed time lies within --start and --end, inclusive. With
--child the index must be the collection's (childId, time) index, for example
childTimestampIndex on feeding.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			childID, _ := cmd.Flags().GetInt64("child")
			if start == "" || end == "" {
				return errors.New("--start and --end are required")
			}

			store, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var recs []records.Record
			if childID > 0 {
				recs, err = store.GetChildRecordsByDateRange(cmd.Context(), args[0], args[1], childID, start, end)
			} else {
				recs, err = store.GetByDateRange(cmd.Context(), args[0], args[1], start, end)
			}
			if err != nil {
				return err
			}
			return opts.printer(cmd).print(recs, func(w io.Writer) { printRecords(w, recs) })
		},
	}
	rangeCmd.Flags().String("start", "", "Range start, RFC 3339 or YYYY-MM-DD")
	rangeCmd.Flags().String("end", "", "Range end, RFC 3339 or YYYY-MM-DD")
	rangeCmd.Flags().Int64("child", 0, "Only records of this child")

	recordsCmd.AddCommand(listCmd, getCmd, deleteCmd, queryCmd, rangeCmd)
	return recordsCmd
}
