package diary

import (
	"context"
	"math"
	"time"
)

// sleepLookback is how long before the day a sleep may start and still be
// counted towards it.
const sleepLookback = 24 * time.Hour

// DailySummary aggregates one child's day.
type DailySummary struct {
	ChildID         int64              `json:"childId" yaml:"childId"`
	Day             string             `json:"day" yaml:"day"`
	Feedings        int                `json:"feedings" yaml:"feedings"`
	FeedingVolumeML float64            `json:"feedingVolumeMl" yaml:"feedingVolumeMl"`
	BreastMinutes   int                `json:"breastMinutes" yaml:"breastMinutes"`
	SleepMinutes    int                `json:"sleepMinutes" yaml:"sleepMinutes"`
	Sleeping        bool               `json:"sleeping" yaml:"sleeping"`
	Diapers         map[DiaperType]int `json:"diapers" yaml:"diapers"`
	LastFeeding     *time.Time         `json:"lastFeeding,omitempty" yaml:"lastFeeding,omitempty"`
	DominantMood    Mood               `json:"dominantMood,omitempty" yaml:"dominantMood,omitempty"`
}

// dayBounds returns the first and last millisecond of day in its location.
func dayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// DailySummary summarises the calendar day containing day, in day's location.
// Sleep is clipped to the day; a sleep still open counts until now.
func (d *Diary) DailySummary(ctx context.Context, childID int64, day time.Time) (DailySummary, error) {
	if err := d.requireChild(ctx, childID); err != nil {
		return DailySummary{}, err
	}
	start, end := dayBounds(day)
	sum := DailySummary{
		ChildID: childID,
		Day:     start.Format(DateLayout),
		Diapers: make(map[DiaperType]int, len(DiaperTypes)),
	}

	feeds, err := d.Feedings(ctx, childID, start, end)
	if err != nil {
		return DailySummary{}, err
	}
	breastSeconds := 0
	for _, f := range feeds {
		sum.Feedings++
		sum.FeedingVolumeML += f.VolumeML()
		if f.Type.IsBreast() {
			breastSeconds += f.Duration
		}
		if sum.LastFeeding == nil || f.Timestamp.After(*sum.LastFeeding) {
			ts := f.Timestamp
			sum.LastFeeding = &ts
		}
	}
	sum.FeedingVolumeML = math.Round(sum.FeedingVolumeML*10) / 10
	sum.BreastMinutes = breastSeconds / 60

	sleeps, err := d.Sleeps(ctx, childID, start.Add(-sleepLookback), end)
	if err != nil {
		return DailySummary{}, err
	}
	sum.SleepMinutes, sum.Sleeping = sleepWithin(sleeps, start, end.Add(time.Millisecond), d.now())

	diapers, err := d.Diapers(ctx, childID, start, end)
	if err != nil {
		return DailySummary{}, err
	}
	for _, r := range diapers {
		sum.Diapers[r.Type]++
	}

	moods, err := d.Moods(ctx, childID, start, end)
	if err != nil {
		return DailySummary{}, err
	}
	sum.DominantMood = dominantMood(moods)
	return sum, nil
}

// sleepWithin totals the minutes of sleeps overlapping [from, to). Open sleeps
// run until now. sleeping reports whether any sleep is still open.
func sleepWithin(sleeps []SleepRecord, from, to, now time.Time) (minutes int, sleeping bool) {
	var total time.Duration
	for _, s := range sleeps {
		stop := now
		if s.EndTime != nil {
			stop = *s.EndTime
		} else {
			sleeping = true
		}
		begin := s.StartTime
		if begin.Before(from) {
			begin = from
		}
		if stop.After(to) {
			stop = to
		}
		if stop.After(begin) {
			total += stop.Sub(begin)
		}
	}
	return int(total / time.Minute), sleeping
}

// dominantMood returns the most frequent mood, ties going to the earlier one in Moods.
func dominantMood(moods []MoodRecord) Mood {
	counts := make(map[Mood]int, len(Moods))
	for _, m := range moods {
		counts[m.Mood]++
	}
	var best Mood
	bestCount := 0
	for _, m := range Moods {
		if counts[m] > bestCount {
			best, bestCount = m, counts[m]
		}
	}
	return best
}
