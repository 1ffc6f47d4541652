package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/unowned-ai/nursery/pkg/diary"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func newChildrenCmd(opts *rootOptions) *cobra.Command {
	childrenCmd := &cobra.Command{
		Use:   "children",
		Short: "Manage children",
		Long:  `Add, list, show and delete the children whose care is recorded.`,
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a child",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			born, _ := cmd.Flags().GetString("birth-date")
			gender, _ := cmd.Flags().GetString("gender")
			notes, _ := cmd.Flags().GetString("notes")

			if name == "" {
				return errors.New("child name is required")
			}
			birthDate, err := diary.ParseDate(born)
			if err != nil {
				return err
			}

			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			child, err := d.AddChild(cmd.Context(), diary.Child{Name: name, BirthDate: birthDate, Gender: gender, Notes: notes})
			if err != nil {
				return fmt.Errorf("failed to add child: %w", err)
			}
			return opts.printer(cmd).print(child, func(w io.Writer) { printChild(w, child, opts.now()) })
		},
	}
	addCmd.Flags().String("name", "", "Child's name (required)")
	addCmd.Flags().String("birth-date", "", "Birth date, YYYY-MM-DD (required)")
	addCmd.Flags().String("gender", "", "Gender (optional)")
	addCmd.Flags().String("notes", "", "Notes (optional)")
	addCmd.MarkFlagRequired("name")
	addCmd.MarkFlagRequired("birth-date")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List children",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			children, err := d.Children(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list children: %w", err)
			}
			return opts.printer(cmd).print(children, func(w io.Writer) { printChildren(w, children, opts.now()) })
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [child-id]",
		Short: "Show a child",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			child, err := d.Child(cmd.Context(), id)
			if err != nil {
				return err
			}
			return opts.printer(cmd).print(child, func(w io.Writer) { printChild(w, child, opts.now()) })
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [child-id]",
		Short: "Delete a child",
		Long: `Delete a child. Their feeding, sleep, diaper, health, milestone, mood and
interaction records are kept unless --cascade is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cascade, _ := cmd.Flags().GetBool("cascade")
			policy := diary.OrphanRecords
			if cascade {
				policy = diary.CascadeDelete
			}

			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := d.DeleteChild(cmd.Context(), id, policy)
			if err != nil {
				return fmt.Errorf("failed to delete child: %w", err)
			}
			result := map[string]any{"childId": id, "policy": policy.String(), "recordsDeleted": deleted}
			return opts.printer(cmd).print(result, func(w io.Writer) {
				fmt.Fprintf(w, "Child %d deleted (%s), %d records removed.\n", id, policy, deleted)
			})
		},
	}
	deleteCmd.Flags().Bool("cascade", false, "Also delete every record that belongs to the child")

	childrenCmd.AddCommand(addCmd, listCmd, getCmd, deleteCmd)
	return childrenCmd
}
