package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/unowned-ai/nursery/pkg/diary"
)

// logFlags are shared by every "log" subcommand.
type logFlags struct {
	childID int64
	at      string
	notes   string
}

// logEntry opens the store, resolves --at and runs fn, printing what it returns.
func (o *rootOptions) logEntry(cmd *cobra.Command, lf *logFlags, fn func(ctx context.Context, d *diary.Diary, at time.Time) (any, error)) error {
	at, err := parseWhen(lf.at, o.now(), time.Local)
	if err != nil {
		return err
	}
	store, d, err := o.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := fn(cmd.Context(), d, at)
	if err != nil {
		return err
	}
	return o.printer(cmd).print(out, func(w io.Writer) {
		fmt.Fprintf(w, "Logged %s for child %d.\n", cmd.Name(), lf.childID)
	})
}

func secondsFlag(cmd *cobra.Command, name string) (int, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil || dur < 0 {
		return 0, fmt.Errorf("invalid --%s %q: want a duration such as 15m", name, raw)
	}
	return int(dur.Seconds()), nil
}

func newLogCmd(opts *rootOptions) *cobra.Command {
	lf := &logFlags{}
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Log care events for a child",
		Long: `Record feedings, sleep, diaper changes, health entries, moods, interactions and
milestones. --at accepts RFC 3339, "YYYY-MM-DD HH:MM" or "HH:MM" (today) and
defaults to now.`,
	}
	logCmd.PersistentFlags().Int64Var(&lf.childID, "child", 0, "Child ID (required)")
	logCmd.PersistentFlags().StringVar(&lf.at, "at", "", "When it happened (default: now)")
	logCmd.PersistentFlags().StringVar(&lf.notes, "notes", "", "Notes (optional)")
	logCmd.MarkPersistentFlagRequired("child")

	logCmd.AddCommand(
		newLogFeedingCmd(opts, lf),
		newLogSleepCmd(opts, lf),
		newLogDiaperCmd(opts, lf),
		newLogHealthCmd(opts, lf),
		newLogMoodCmd(opts, lf),
		newLogInteractionCmd(opts, lf),
		newLogMilestoneCmd(opts, lf),
	)
	return logCmd
}

func newLogFeedingCmd(opts *rootOptions, lf *logFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeding",
		Short: "Log a feeding",
		Long: `Log a feeding. Breast feedings need --duration, formula and pumped milk need
--amount (in --unit ml or oz), solid food needs --food.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			feedingType, _ := cmd.Flags().GetString("type")
			amount, _ := cmd.Flags().GetFloat64("amount")
			unit, _ := cmd.Flags().GetString("unit")
			food, _ := cmd.Flags().GetString("food")
			duration, err := secondsFlag(cmd, "duration")
			if err != nil {
				return err
			}
			return opts.logEntry(cmd, lf, func(ctx context.Context, d *diary.Diary, at time.Time) (any, error) {
				return d.LogFeeding(ctx, diary.FeedingRecord{
					ChildID:   lf.childID,
					Timestamp: at,
					Type:      diary.FeedingType(feedingType),
					Duration:  duration,
					Amount:    amount,
					Unit:      unit,
					FoodItems: splitList(food),
					Notes:     lf.notes,
				})
			})
		},
	}
	cmd.Flags().String("type", "", fmt.Sprintf("Feeding type %v (required)", diary.FeedingTypes))
	cmd.Flags().Float64("amount", 0, "Amount for bottle feedings")
	cmd.Flags().String("unit", diary.UnitML, "Unit for --amount (ml or oz)")
	cmd.Flags().String("duration", "", "Duration for breast feedings, e.g. 15m")
	cmd.Flags().String("food", "", "Comma separated food items for solid food")
	cmd.MarkFlagRequired("type")
	return cmd
}

func newLogSleepCmd(opts *rootOptions, lf *logFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sleep",
		Short: "Log a sleep, or end the current one with --wake",
		Long: `Start a sleep at --at, optionally already finished at --end. With --wake the
child's open sleep is ended at --at instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wake, _ := cmd.Flags().GetBool("wake")
			endRaw, _ := cmd.Flags().GetString("end")
			quality, _ := cmd.Flags().GetString("quality")
			location, _ := cmd.Flags().GetString("location")

			return opts.logEntry(cmd, lf, func(ctx context.Context, d *diary.Diary, at time.Time) (any, error) {
				if wake {
					open, ok, err := d.ActiveSleep(ctx, lf.childID)
					if err != nil {
						return nil, err
					}
					if !ok {
						return nil, fmt.Errorf("child %d is not asleep", lf.childID)
					}
					return d.EndSleep(ctx, open.ID, at)
				}

				s := diary.SleepRecord{
					ChildID:   lf.childID,
					StartTime: at,
					Quality:   quality,
					Location:  location,
					Notes:     lf.notes,
				}
				if endRaw != "" {
					end, err := parseWhen(endRaw, opts.now(), time.Local)
					if err != nil {
						return nil, err
					}
					s.EndTime = &end
				}
				return d.LogSleep(ctx, s)
			})
		},
	}
	cmd.Flags().Bool("wake", false, "End the child's current sleep")
	cmd.Flags().String("end", "", "When the sleep ended (optional)")
	cmd.Flags().String("quality", "", "Sleep quality (optional)")
	cmd.Flags().String("location", "", "Where the child slept (optional)")
	return cmd
}

func newLogDiaperCmd(opts *rootOptions, lf *logFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diaper",
		Short: "Log a diaper change",
		RunE: func(cmd *cobra.Command, args []string) error {
			diaperType, _ := cmd.Flags().GetString("type")
			condition, _ := cmd.Flags().GetString("condition")
			return opts.logEntry(cmd, lf, func(ctx context.Context, d *diary.Diary, at time.Time) (any, error) {
				return d.LogDiaper(ctx, diary.DiaperRecord{
					ChildID:   lf.childID,
					Timestamp: at,
					Type:      diary.DiaperType(diaperType),
					Condition: condition,
					Notes:     lf.notes,
				})
			})
		},
	}
	cmd.Flags().String("type", "", fmt.Sprintf("Diaper type %v (required)", diary.DiaperTypes))
	cmd.Flags().String("condition", "", "Condition (optional)")
	cmd.MarkFlagRequired("type")
	return cmd
}

func newLogHealthCmd(opts *rootOptions, lf *logFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Log a health entry",
		Long:  `Log a measurement (weight, height, temperature need --value), vaccine, medication, symptom or doctor visit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			healthType, _ := cmd.Flags().GetString("type")
			value, _ := cmd.Flags().GetFloat64("value")
			unit, _ := cmd.Flags().GetString("unit")
			description, _ := cmd.Flags().GetString("description")
			return opts.logEntry(cmd, lf, func(ctx context.Context, d *diary.Diary, at time.Time) (any, error) {
				return d.LogHealth(ctx, diary.HealthRecord{
					ChildID:     lf.childID,
					Date:        diary.NewDate(at),
					Type:        diary.HealthType(healthType),
					Value:       value,
					Unit:        unit,
					Description: description,
					Notes:       lf.notes,
				})
			})
		},
	}
	cmd.Flags().String("type", "", fmt.Sprintf("Health type %v (required)", diary.HealthTypes))
	cmd.Flags().Float64("value", 0, "Measured value")
	cmd.Flags().String("unit", "", "Unit of --value")
	cmd.Flags().String("description", "", "Description (optional)")
	cmd.MarkFlagRequired("type")
	return cmd
}

func newLogMoodCmd(opts *rootOptions, lf *logFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mood",
		Short: "Log a mood",
		RunE: func(cmd *cobra.Command, args []string) error {
			mood, _ := cmd.Flags().GetString("mood")
			intensity, _ := cmd.Flags().GetInt("intensity")
			triggers, _ := cmd.Flags().GetString("triggers")
			return opts.logEntry(cmd, lf, func(ctx context.Context, d *diary.Diary, at time.Time) (any, error) {
				return d.LogMood(ctx, diary.MoodRecord{
					ChildID:   lf.childID,
					Timestamp: at,
					Mood:      diary.Mood(mood),
					Intensity: intensity,
					Triggers:  splitList(triggers),
					Notes:     lf.notes,
				})
			})
		},
	}
	cmd.Flags().String("mood", "", fmt.Sprintf("Mood %v (required)", diary.Moods))
	cmd.Flags().Int("intensity", 0, "Intensity (optional)")
	cmd.Flags().String("triggers", "", "Comma separated triggers (optional)")
	cmd.MarkFlagRequired("mood")
	return cmd
}

func newLogInteractionCmd(opts *rootOptions, lf *logFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interaction",
		Short: "Log an interaction and an optional parent reflection",
		RunE: func(cmd *cobra.Command, args []string) error {
			activities, _ := cmd.Flags().GetString("activities")
			reflection, _ := cmd.Flags().GetString("reflection")
			duration, err := secondsFlag(cmd, "duration")
			if err != nil {
				return err
			}
			if activities == "" && reflection == "" {
				return errors.New("either --activities or --reflection is required")
			}
			return opts.logEntry(cmd, lf, func(ctx context.Context, d *diary.Diary, at time.Time) (any, error) {
				return d.LogInteraction(ctx, diary.InteractionLog{
					ChildID:          lf.childID,
					Date:             diary.NewDate(at),
					Activities:       splitList(activities),
					Duration:         duration,
					ParentReflection: reflection,
				})
			})
		},
	}
	cmd.Flags().String("activities", "", "Comma separated activities")
	cmd.Flags().String("duration", "", "How long, e.g. 30m")
	cmd.Flags().String("reflection", "", "Parent reflection")
	return cmd
}

func newLogMilestoneCmd(opts *rootOptions, lf *logFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestone",
		Short: "Add a milestone, or mark one achieved with --achieve",
		Long: `Add an expected milestone with its age window in months, or one already reached
with --achieved. --achieve <id> marks an existing milestone reached on the --at day.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			achieveID, _ := cmd.Flags().GetInt64("achieve")
			milestoneType, _ := cmd.Flags().GetString("type")
			title, _ := cmd.Flags().GetString("title")
			minAge, _ := cmd.Flags().GetInt("min-age")
			maxAge, _ := cmd.Flags().GetInt("max-age")
			achieved, _ := cmd.Flags().GetBool("achieved")

			return opts.logEntry(cmd, lf, func(ctx context.Context, d *diary.Diary, at time.Time) (any, error) {
				if achieveID > 0 {
					return d.AchieveMilestone(ctx, achieveID, diary.NewDate(at))
				}
				m := diary.MilestoneRecord{
					ChildID:        lf.childID,
					Type:           milestoneType,
					Title:          title,
					ExpectedAgeMin: minAge,
					ExpectedAgeMax: maxAge,
					Notes:          lf.notes,
				}
				if achieved {
					day := diary.NewDate(at)
					m.AchievedDate = &day
				}
				return d.AddMilestone(ctx, m)
			})
		},
	}
	cmd.Flags().Int64("achieve", 0, "Mark the milestone with this ID achieved")
	cmd.Flags().String("type", "", "Milestone type, e.g. motor or language")
	cmd.Flags().String("title", "", "Title (optional)")
	cmd.Flags().Int("min-age", 0, "Expected age window start, in months")
	cmd.Flags().Int("max-age", 0, "Expected age window end, in months")
	cmd.Flags().Bool("achieved", false, "The milestone is already reached on the --at day")
	return cmd
}
