package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/unowned-ai/nursery/pkg/diary"
)

type summaryOutput struct {
	diary.DailySummary `yaml:",inline"`
	NextMilestone      *diary.MilestoneRecord `json:"nextMilestone,omitempty" yaml:"nextMilestone,omitempty"`
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise a child's day",
		Long: `Show a day's feedings, sleep, diaper changes and dominant mood for a child, and
the next milestone to watch for. Without --child the active child from the
settings is used; --day defaults to today.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			childID, _ := cmd.Flags().GetInt64("child")
			dayRaw, _ := cmd.Flags().GetString("day")

			day := opts.now().In(time.Local)
			if dayRaw != "" {
				parsed, err := time.ParseInLocation(diary.DateLayout, dayRaw, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --day %q: want YYYY-MM-DD", dayRaw)
				}
				day = parsed
			}

			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if childID == 0 {
				settings, err := d.Settings(cmd.Context())
				if err != nil {
					return err
				}
				if settings.ActiveChildID == 0 {
					return errors.New("--child is required when no active child is set")
				}
				childID = settings.ActiveChildID
			}

			sum, err := d.DailySummary(cmd.Context(), childID, day)
			if err != nil {
				return err
			}
			out := summaryOutput{DailySummary: sum}
			if next, ok, err := d.NextMilestone(cmd.Context(), childID); err != nil {
				return err
			} else if ok {
				out.NextMilestone = &next
			}
			return opts.printer(cmd).print(out, func(w io.Writer) {
				printSummary(w, out.DailySummary, out.NextMilestone, time.Local)
			})
		},
	}
	cmd.Flags().Int64("child", 0, "Child ID (default: the active child)")
	cmd.Flags().String("day", "", "Day to summarise, YYYY-MM-DD (default: today)")
	return cmd
}
