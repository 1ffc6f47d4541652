package tui

import (
	"context"
	"sort"
	"time"

	"github.com/unowned-ai/nursery/pkg/db"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"

	tea "github.com/charmbracelet/bubbletea"
)

// dayEntry is one record shown on the day timeline.
type dayEntry struct {
	collection string
	at         time.Time
	record     records.Record
}

type dayMsg struct {
	childID int64
	day     time.Time
	summary diary.DailySummary
	entries []dayEntry
}

type childDeletedMsg struct {
	id      int64
	deleted int
}

type entryDeletedMsg struct {
	entry dayEntry
}

// List children from the store and return tea data
func listChildren(d *diary.Diary) tea.Cmd {
	return func() tea.Msg {
		children, err := d.Children(context.Background())
		if err != nil {
			return err
		}
		return children
	}
}

// Load the day's summary and every child-owned record logged on it
func loadDay(store *records.Store, d *diary.Diary, childID int64, day time.Time) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		summary, err := d.DailySummary(ctx, childID, day)
		if err != nil {
			return err
		}
		entries, err := dayEntries(ctx, store, childID, day)
		if err != nil {
			return err
		}
		return dayMsg{childID: childID, day: day, summary: summary, entries: entries}
	}
}

func dayEntries(ctx context.Context, store *records.Store, childID int64, day time.Time) ([]dayEntry, error) {
	y, m, dd := day.Date()
	start := time.Date(y, m, dd, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)

	var entries []dayEntry
	for _, c := range db.ChildOwned(store.Collections()) {
		idx, ok := c.ChildTimeIndex()
		if !ok {
			continue
		}
		field := idx.Fields[1]
		from, to := start, end
		if c.IsDateField(field) {
			from, to = db.CalendarBounds(start, end)
		}
		recs, err := store.GetChildRecordsByDateRange(ctx, c.Name, idx.Name, childID, from, to)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			at := recordTime(rec[field])
			if c.IsDateField(field) {
				// Calendar days sort at the start of the local day.
				at = time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, day.Location())
			}
			entries = append(entries, dayEntry{
				collection: c.Name,
				at:         at.In(day.Location()),
				record:     rec,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	return entries, nil
}

// Delete a child, optionally with all its records
func deleteChild(d *diary.Diary, childID int64, policy diary.DeletePolicy) tea.Cmd {
	return func() tea.Msg {
		deleted, err := d.DeleteChild(context.Background(), childID, policy)
		if err != nil {
			return err
		}
		return childDeletedMsg{id: childID, deleted: deleted}
	}
}

// Delete a single record from the day timeline
func deleteEntry(store *records.Store, entry dayEntry) tea.Cmd {
	return func() tea.Msg {
		key, _ := entry.record.Key()
		if err := store.Delete(context.Background(), entry.collection, key); err != nil {
			return err
		}
		return entryDeletedMsg{entry: entry}
	}
}

// recordTime reads a stored time field, which is either an RFC 3339 instant or a calendar date.
func recordTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if d, err := diary.ParseDate(s); err == nil {
		return d.Time
	}
	return time.Time{}
}
