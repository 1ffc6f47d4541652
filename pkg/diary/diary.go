// Package diary is the typed baby-care layer over the record store: it
// validates entries, keeps them tied to an existing child, and computes the
// summaries shown by the CLI, the MCP tools, the HTTP API and the TUI.
package diary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/unowned-ai/nursery/pkg/db"
	"github.com/unowned-ai/nursery/pkg/records"
)

var (
	ErrChildNotFound  = errors.New("child not found")
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidRecord  = errors.New("invalid record")
)

// Store is the part of *records.Store the diary needs.
type Store interface {
	Add(ctx context.Context, collection string, rec records.Record) (any, error)
	Get(ctx context.Context, collection string, id any) (records.Record, bool, error)
	Update(ctx context.Context, collection string, rec records.Record) error
	Delete(ctx context.Context, collection string, id any) error
	GetAll(ctx context.Context, collection string) ([]records.Record, error)
	GetByIndex(ctx context.Context, collection, index string, value any) ([]records.Record, error)
	GetChildRecordsByDateRange(ctx context.Context, collection, index string, childID, start, end any) ([]records.Record, error)
}

// DeletePolicy decides what happens to a child's records when the child is deleted.
type DeletePolicy int

const (
	// OrphanRecords deletes only the child; its records keep the dangling childId.
	OrphanRecords DeletePolicy = iota
	// CascadeDelete deletes every record owned by the child first.
	CascadeDelete
)

func (p DeletePolicy) String() string {
	if p == CascadeDelete {
		return "cascade"
	}
	return "orphan"
}

// ParseDeletePolicy accepts "orphan" and "cascade".
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch strings.ToLower(s) {
	case "", "orphan":
		return OrphanRecords, nil
	case "cascade":
		return CascadeDelete, nil
	default:
		return 0, fmt.Errorf("unknown delete policy %q: want orphan or cascade", s)
	}
}

// Diary reads and writes typed entries through a Store.
type Diary struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Diary)

func WithClock(now func() time.Time) Option {
	return func(d *Diary) { d.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Diary) { d.logger = logger }
}

func New(store Store, opts ...Option) *Diary {
	d := &Diary{
		store:  store,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// toRecord converts a typed entry to the store's plain record form.
func toRecord(v any) (records.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	var rec records.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return rec, nil
}

func fromRecord[T any](rec records.Record) (T, error) {
	var out T
	data, err := json.Marshal(rec)
	if err != nil {
		return out, fmt.Errorf("decode entry: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode entry %v: %w", rec[records.KeyField], err)
	}
	return out, nil
}

func fromRecords[T any](recs []records.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := fromRecord[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// add stores entry and returns its assigned id.
func (d *Diary) add(ctx context.Context, collection string, entry any) (int64, error) {
	rec, err := toRecord(entry)
	if err != nil {
		return 0, err
	}
	key, err := d.store.Add(ctx, collection, rec)
	if err != nil {
		return 0, err
	}
	id, ok := key.(int64)
	if !ok {
		return 0, fmt.Errorf("%s returned key of type %T", collection, key)
	}
	return id, nil
}

func (d *Diary) update(ctx context.Context, collection string, entry any) error {
	rec, err := toRecord(entry)
	if err != nil {
		return err
	}
	return d.store.Update(ctx, collection, rec)
}

// AddChild stores a new child and returns it with its id.
func (d *Diary) AddChild(ctx context.Context, c Child) (Child, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Child{}, invalid("child name is required")
	}
	if c.BirthDate.IsZero() {
		return Child{}, invalid("child birth date is required")
	}
	if c.BirthDate.After(d.now()) {
		return Child{}, invalid("birth date %s is in the future", c.BirthDate)
	}
	c.ID = 0
	id, err := d.add(ctx, db.Children, c)
	if err != nil {
		return Child{}, err
	}
	c.ID = id
	d.logger.DebugContext(ctx, "child added", "child_id", id)
	return c, nil
}

// Child returns the child with id, or ErrChildNotFound.
func (d *Diary) Child(ctx context.Context, id int64) (Child, error) {
	rec, ok, err := d.store.Get(ctx, db.Children, id)
	if err != nil {
		return Child{}, err
	}
	if !ok {
		return Child{}, fmt.Errorf("%w: %d", ErrChildNotFound, id)
	}
	return fromRecord[Child](rec)
}

// Children returns every child ordered by id.
func (d *Diary) Children(ctx context.Context) ([]Child, error) {
	recs, err := d.store.GetAll(ctx, db.Children)
	if err != nil {
		return nil, err
	}
	return fromRecords[Child](recs)
}

// UpdateChild replaces an existing child.
func (d *Diary) UpdateChild(ctx context.Context, c Child) error {
	if _, err := d.Child(ctx, c.ID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" || c.BirthDate.IsZero() {
		return invalid("child name and birth date are required")
	}
	return d.update(ctx, db.Children, c)
}

// DeleteChild removes a child. With CascadeDelete every record referencing
// the child is deleted first; the settings' active child is cleared either way.
// It returns the number of dependent records deleted.
func (d *Diary) DeleteChild(ctx context.Context, id int64, policy DeletePolicy) (int, error) {
	if _, err := d.Child(ctx, id); err != nil {
		return 0, err
	}

	deleted := 0
	if policy == CascadeDelete {
		for _, c := range db.ChildOwned(db.Collections) {
			recs, err := d.store.GetByIndex(ctx, c.Name, db.ChildIDIndex, id)
			if err != nil {
				return deleted, err
			}
			for _, rec := range recs {
				if err := d.store.Delete(ctx, c.Name, rec[records.KeyField]); err != nil {
					return deleted, err
				}
				deleted++
			}
		}
	}

	if err := d.store.Delete(ctx, db.Children, id); err != nil {
		return deleted, err
	}

	settings, err := d.Settings(ctx)
	if err != nil {
		return deleted, err
	}
	if settings.ActiveChildID == id {
		settings.ActiveChildID = 0
		if err := d.SaveSettings(ctx, settings); err != nil {
			return deleted, err
		}
	}

	d.logger.InfoContext(ctx, "child deleted", "child_id", id, "policy", policy.String(), "records_deleted", deleted)
	return deleted, nil
}

func (d *Diary) requireChild(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalid("childId is required")
	}
	_, err := d.Child(ctx, id)
	return err
}

// LogFeeding stores a feeding. A zero timestamp means now.
func (d *Diary) LogFeeding(ctx context.Context, f FeedingRecord) (FeedingRecord, error) {
	if err := d.requireChild(ctx, f.ChildID); err != nil {
		return FeedingRecord{}, err
	}
	if !f.Type.Valid() {
		return FeedingRecord{}, invalid("unknown feeding type %q", f.Type)
	}
	switch {
	case f.Type.IsBreast():
		if f.Duration <= 0 {
			return FeedingRecord{}, invalid("%s feeding needs a positive duration", f.Type)
		}
	case f.Type.IsBottle():
		if f.Amount <= 0 {
			return FeedingRecord{}, invalid("%s feeding needs a positive amount", f.Type)
		}
		if f.Unit == "" {
			f.Unit = UnitML
		}
		if f.Unit != UnitML && f.Unit != UnitOZ {
			return FeedingRecord{}, invalid("unit must be %s or %s, got %q", UnitML, UnitOZ, f.Unit)
		}
	case f.Type == FeedingSolidFood:
		if len(f.FoodItems) == 0 {
			return FeedingRecord{}, invalid("solid food feeding needs at least one food item")
		}
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = d.now()
	}
	f.Timestamp = f.Timestamp.UTC()
	f.ID = 0

	id, err := d.add(ctx, db.Feeding, f)
	if err != nil {
		return FeedingRecord{}, err
	}
	f.ID = id
	return f, nil
}

// LogSleep starts (or records a finished) sleep. A zero start means now.
func (d *Diary) LogSleep(ctx context.Context, s SleepRecord) (SleepRecord, error) {
	if err := d.requireChild(ctx, s.ChildID); err != nil {
		return SleepRecord{}, err
	}
	if s.StartTime.IsZero() {
		s.StartTime = d.now()
	}
	s.StartTime = s.StartTime.UTC()
	if s.EndTime != nil {
		if s.EndTime.Before(s.StartTime) {
			return SleepRecord{}, invalid("sleep ends before it starts")
		}
		end := s.EndTime.UTC()
		s.EndTime = &end
	}
	s.ID = 0

	id, err := d.add(ctx, db.Sleep, s)
	if err != nil {
		return SleepRecord{}, err
	}
	s.ID = id
	return s, nil
}

// EndSleep closes an open sleep at end, or now when end is zero.
func (d *Diary) EndSleep(ctx context.Context, id int64, end time.Time) (SleepRecord, error) {
	rec, ok, err := d.store.Get(ctx, db.Sleep, id)
	if err != nil {
		return SleepRecord{}, err
	}
	if !ok {
		return SleepRecord{}, fmt.Errorf("%w: sleep %d", ErrRecordNotFound, id)
	}
	s, err := fromRecord[SleepRecord](rec)
	if err != nil {
		return SleepRecord{}, err
	}
	if !s.Open() {
		return SleepRecord{}, invalid("sleep %d already ended at %s", id, s.EndTime.Format(time.RFC3339))
	}
	if end.IsZero() {
		end = d.now()
	}
	end = end.UTC()
	if end.Before(s.StartTime) {
		return SleepRecord{}, invalid("sleep ends before it starts")
	}
	s.EndTime = &end
	if err := d.update(ctx, db.Sleep, s); err != nil {
		return SleepRecord{}, err
	}
	return s, nil
}

// ActiveSleep returns the child's most recent open sleep.
func (d *Diary) ActiveSleep(ctx context.Context, childID int64) (SleepRecord, bool, error) {
	recs, err := d.store.GetByIndex(ctx, db.Sleep, db.ChildIDIndex, childID)
	if err != nil {
		return SleepRecord{}, false, err
	}
	sleeps, err := fromRecords[SleepRecord](recs)
	if err != nil {
		return SleepRecord{}, false, err
	}
	var latest SleepRecord
	found := false
	for _, s := range sleeps {
		if s.Open() && (!found || s.StartTime.After(latest.StartTime)) {
			latest, found = s, true
		}
	}
	return latest, found, nil
}

// LogDiaper stores a diaper change. A zero timestamp means now.
func (d *Diary) LogDiaper(ctx context.Context, r DiaperRecord) (DiaperRecord, error) {
	if err := d.requireChild(ctx, r.ChildID); err != nil {
		return DiaperRecord{}, err
	}
	if !r.Type.Valid() {
		return DiaperRecord{}, invalid("unknown diaper type %q", r.Type)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = d.now()
	}
	r.Timestamp = r.Timestamp.UTC()
	r.ID = 0

	id, err := d.add(ctx, db.Diaper, r)
	if err != nil {
		return DiaperRecord{}, err
	}
	r.ID = id
	return r, nil
}

// LogHealth stores a health entry. A zero date means today.
func (d *Diary) LogHealth(ctx context.Context, r HealthRecord) (HealthRecord, error) {
	if err := d.requireChild(ctx, r.ChildID); err != nil {
		return HealthRecord{}, err
	}
	if !r.Type.Valid() {
		return HealthRecord{}, invalid("unknown health type %q", r.Type)
	}
	if r.Type.IsMeasurement() && r.Value <= 0 {
		return HealthRecord{}, invalid("%s needs a positive value", r.Type)
	}
	if r.Date.IsZero() {
		r.Date = NewDate(d.now())
	}
	r.ID = 0

	id, err := d.add(ctx, db.Health, r)
	if err != nil {
		return HealthRecord{}, err
	}
	r.ID = id
	return r, nil
}

// LogMood stores a mood observation. A zero timestamp means now.
func (d *Diary) LogMood(ctx context.Context, m MoodRecord) (MoodRecord, error) {
	if err := d.requireChild(ctx, m.ChildID); err != nil {
		return MoodRecord{}, err
	}
	if !m.Mood.Valid() {
		return MoodRecord{}, invalid("unknown mood %q", m.Mood)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = d.now()
	}
	m.Timestamp = m.Timestamp.UTC()
	m.ID = 0

	id, err := d.add(ctx, db.Mood, m)
	if err != nil {
		return MoodRecord{}, err
	}
	m.ID = id
	return m, nil
}

// LogInteraction stores an interaction log. A zero date means today.
func (d *Diary) LogInteraction(ctx context.Context, l InteractionLog) (InteractionLog, error) {
	if err := d.requireChild(ctx, l.ChildID); err != nil {
		return InteractionLog{}, err
	}
	if l.Date.IsZero() {
		l.Date = NewDate(d.now())
	}
	l.ParentReflection = strings.TrimSpace(l.ParentReflection)
	l.ID = 0

	id, err := d.add(ctx, db.Interactions, l)
	if err != nil {
		return InteractionLog{}, err
	}
	l.ID = id
	return l, nil
}

// AddMilestone stores a milestone, achieved or expected.
func (d *Diary) AddMilestone(ctx context.Context, m MilestoneRecord) (MilestoneRecord, error) {
	if err := d.requireChild(ctx, m.ChildID); err != nil {
		return MilestoneRecord{}, err
	}
	if strings.TrimSpace(m.Type) == "" {
		return MilestoneRecord{}, invalid("milestone type is required")
	}
	if m.ExpectedAgeMin < 0 || (m.ExpectedAgeMax != 0 && m.ExpectedAgeMax < m.ExpectedAgeMin) {
		return MilestoneRecord{}, invalid("expected age window %d..%d is invalid", m.ExpectedAgeMin, m.ExpectedAgeMax)
	}
	m.ID = 0

	id, err := d.add(ctx, db.Milestones, m)
	if err != nil {
		return MilestoneRecord{}, err
	}
	m.ID = id
	return m, nil
}

// AchieveMilestone marks a milestone reached on day.
func (d *Diary) AchieveMilestone(ctx context.Context, id int64, day Date) (MilestoneRecord, error) {
	rec, ok, err := d.store.Get(ctx, db.Milestones, id)
	if err != nil {
		return MilestoneRecord{}, err
	}
	if !ok {
		return MilestoneRecord{}, fmt.Errorf("%w: milestone %d", ErrRecordNotFound, id)
	}
	m, err := fromRecord[MilestoneRecord](rec)
	if err != nil {
		return MilestoneRecord{}, err
	}
	if day.IsZero() {
		day = NewDate(d.now())
	}
	m.AchievedDate = &day
	if err := d.update(ctx, db.Milestones, m); err != nil {
		return MilestoneRecord{}, err
	}
	return m, nil
}

// childRange reads one child's entries of a time-series collection within [start, end].
// For calendar-day collections the range covers the days of start and end.
func childRange[T any](ctx context.Context, d *Diary, collection, index string, childID int64, start, end time.Time) ([]T, error) {
	if c, ok := db.Lookup(db.Collections, collection); ok {
		if idx, ok := c.Index(index); ok && c.IsDateField(idx.Fields[len(idx.Fields)-1]) {
			start, end = db.CalendarBounds(start, end)
		}
	}
	recs, err := d.store.GetChildRecordsByDateRange(ctx, collection, index, childID, start, end)
	if err != nil {
		return nil, err
	}
	return fromRecords[T](recs)
}

func (d *Diary) Feedings(ctx context.Context, childID int64, start, end time.Time) ([]FeedingRecord, error) {
	return childRange[FeedingRecord](ctx, d, db.Feeding, "childTimestampIndex", childID, start, end)
}

func (d *Diary) Sleeps(ctx context.Context, childID int64, start, end time.Time) ([]SleepRecord, error) {
	return childRange[SleepRecord](ctx, d, db.Sleep, "childStartTimeIndex", childID, start, end)
}

func (d *Diary) Diapers(ctx context.Context, childID int64, start, end time.Time) ([]DiaperRecord, error) {
	return childRange[DiaperRecord](ctx, d, db.Diaper, "childTimestampIndex", childID, start, end)
}

func (d *Diary) HealthRecords(ctx context.Context, childID int64, start, end time.Time) ([]HealthRecord, error) {
	return childRange[HealthRecord](ctx, d, db.Health, "childDateIndex", childID, start, end)
}

func (d *Diary) Moods(ctx context.Context, childID int64, start, end time.Time) ([]MoodRecord, error) {
	return childRange[MoodRecord](ctx, d, db.Mood, "childTimestampIndex", childID, start, end)
}

func (d *Diary) Interactions(ctx context.Context, childID int64, start, end time.Time) ([]InteractionLog, error) {
	return childRange[InteractionLog](ctx, d, db.Interactions, "childDateIndex", childID, start, end)
}

// Milestones returns every milestone of the child, achieved or not.
func (d *Diary) Milestones(ctx context.Context, childID int64) ([]MilestoneRecord, error) {
	recs, err := d.store.GetByIndex(ctx, db.Milestones, db.ChildIDIndex, childID)
	if err != nil {
		return nil, err
	}
	return fromRecords[MilestoneRecord](recs)
}

// Reflections returns the child's interaction logs that carry a parent
// reflection, newest first.
func (d *Diary) Reflections(ctx context.Context, childID int64) ([]InteractionLog, error) {
	recs, err := d.store.GetByIndex(ctx, db.Interactions, db.ChildIDIndex, childID)
	if err != nil {
		return nil, err
	}
	logs, err := fromRecords[InteractionLog](recs)
	if err != nil {
		return nil, err
	}
	out := logs[:0]
	for _, l := range logs {
		if strings.TrimSpace(l.ParentReflection) != "" {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date.Time)
	})
	return out, nil
}

// Settings returns the application settings, or defaults when none are stored.
func (d *Diary) Settings(ctx context.Context) (Settings, error) {
	rec, ok, err := d.store.Get(ctx, db.Settings, db.SettingsKey)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return Settings{ID: db.SettingsKey}, nil
	}
	return fromRecord[Settings](rec)
}

// SaveSettings writes the settings singleton.
func (d *Diary) SaveSettings(ctx context.Context, s Settings) error {
	s.ID = db.SettingsKey
	if s.ActiveChildID != 0 {
		if err := d.requireChild(ctx, s.ActiveChildID); err != nil {
			return err
		}
	}
	return d.update(ctx, db.Settings, s)
}
