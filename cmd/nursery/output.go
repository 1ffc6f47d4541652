package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"
	"gopkg.in/yaml.v3"
)

// printer writes a value as JSON or YAML, or with a command-specific text renderer.
type printer struct {
	format string
	w      io.Writer
}

func (o *rootOptions) printer(cmd *cobra.Command) printer {
	return printer{format: o.format, w: cmd.OutOrStdout()}
}

func (p printer) print(v any, text func(w io.Writer)) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(p.w)
		return nil
	}
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

func printChildren(w io.Writer, children []diary.Child, now time.Time) {
	if len(children) == 0 {
		fmt.Fprintln(w, "No children found.")
		return
	}
	rows := make([][]string, 0, len(children))
	for _, c := range children {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			c.BirthDate.String(),
			strconv.Itoa(diary.AgeInMonths(c.BirthDate.Time, now)),
		})
	}
	renderTable(w, []string{"ID", "Name", "Born", "Months"}, rows)
}

func printChild(w io.Writer, c diary.Child, now time.Time) {
	fmt.Fprintln(w, "Child Details:")
	fmt.Fprintf(w, "ID:         %d\n", c.ID)
	fmt.Fprintf(w, "Name:       %s\n", c.Name)
	fmt.Fprintf(w, "Born:       %s\n", c.BirthDate)
	fmt.Fprintf(w, "Age:        %d months\n", diary.AgeInMonths(c.BirthDate.Time, now))
	if c.Gender != "" {
		fmt.Fprintf(w, "Gender:     %s\n", c.Gender)
	}
	if c.Notes != "" {
		fmt.Fprintf(w, "Notes:      %s\n", c.Notes)
	}
}

// printRecords writes one compact JSON object per line.
func printRecords(w io.Writer, recs []records.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}
	for _, rec := range recs {
		line, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintf(w, "%v\n", map[string]any(rec))
			continue
		}
		fmt.Fprintln(w, string(line))
	}
}

func printSummary(w io.Writer, sum diary.DailySummary, next *diary.MilestoneRecord, loc *time.Location) {
	fmt.Fprintf(w, "Day:           %s\n", sum.Day)
	fmt.Fprintf(w, "Feedings:      %d", sum.Feedings)
	if sum.FeedingVolumeML > 0 {
		fmt.Fprintf(w, " (%.1f ml)", sum.FeedingVolumeML)
	}
	if sum.BreastMinutes > 0 {
		fmt.Fprintf(w, " (breast %d min)", sum.BreastMinutes)
	}
	fmt.Fprintln(w)
	if sum.LastFeeding != nil {
		fmt.Fprintf(w, "Last feeding:  %s\n", sum.LastFeeding.In(loc).Format("15:04"))
	}
	fmt.Fprintf(w, "Sleep:         %dh %02dm", sum.SleepMinutes/60, sum.SleepMinutes%60)
	if sum.Sleeping {
		fmt.Fprint(w, " (sleeping now)")
	}
	fmt.Fprintln(w)

	var diapers []string
	for _, t := range diary.DiaperTypes {
		if n := sum.Diapers[t]; n > 0 {
			diapers = append(diapers, fmt.Sprintf("%s %d", t, n))
		}
	}
	if len(diapers) == 0 {
		diapers = []string{"none"}
	}
	fmt.Fprintf(w, "Diapers:       %s\n", strings.Join(diapers, ", "))
	if sum.DominantMood != "" {
		fmt.Fprintf(w, "Mood:          %s\n", sum.DominantMood)
	}
	if next != nil {
		fmt.Fprintf(w, "Next milestone: %s (%d-%d months)\n", milestoneName(*next), next.ExpectedAgeMin, next.ExpectedAgeMax)
	}
}

func milestoneName(m diary.MilestoneRecord) string {
	if m.Title != "" {
		return m.Title
	}
	return m.Type
}

func printSettings(w io.Writer, s diary.Settings) {
	fmt.Fprintf(w, "Dark mode:      %t\n", s.DarkMode)
	if s.ActiveChildID != 0 {
		fmt.Fprintf(w, "Active child:   %d\n", s.ActiveChildID)
	} else {
		fmt.Fprintln(w, "Active child:   -")
	}
	if s.LastSyncDate != "" {
		fmt.Fprintf(w, "Last sync:      %s\n", s.LastSyncDate)
	}
}

// parseWhen reads a point in time: RFC 3339, "2006-01-02 15:04" or "15:04"
// (today) in loc. An empty string means now.
func parseWhen(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", s, loc); err == nil {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339, \"YYYY-MM-DD HH:MM\" or \"HH:MM\"", s)
}

// splitList splits a comma separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
