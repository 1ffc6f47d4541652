package diary

import (
	"context"
	"sort"
	"time"
)

// AgeInMonths returns the number of whole months between birth and now.
func AgeInMonths(birth, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()
	months := (ny-by)*12 + int(nm-bm)
	if nd < bd {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// NextMilestone picks the unachieved milestone to watch for: one whose
// expected age window contains the child's age, otherwise the nearest one
// still ahead. ok is false when nothing qualifies.
func (d *Diary) NextMilestone(ctx context.Context, childID int64) (MilestoneRecord, bool, error) {
	child, err := d.Child(ctx, childID)
	if err != nil {
		return MilestoneRecord{}, false, err
	}
	ms, err := d.Milestones(ctx, childID)
	if err != nil {
		return MilestoneRecord{}, false, err
	}
	next, ok := pickNextMilestone(ms, AgeInMonths(child.BirthDate.Time, d.now()))
	return next, ok, nil
}

func pickNextMilestone(ms []MilestoneRecord, age int) (MilestoneRecord, bool) {
	var current, ahead []MilestoneRecord
	for _, m := range ms {
		if m.Achieved() {
			continue
		}
		upper := m.ExpectedAgeMax
		if upper == 0 {
			upper = m.ExpectedAgeMin
		}
		switch {
		case m.ExpectedAgeMin <= age && age <= upper:
			current = append(current, m)
		case m.ExpectedAgeMin > age:
			ahead = append(ahead, m)
		}
	}

	candidates := current
	if len(candidates) == 0 {
		candidates = ahead
	}
	if len(candidates) == 0 {
		return MilestoneRecord{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ExpectedAgeMin != candidates[j].ExpectedAgeMin {
			return candidates[i].ExpectedAgeMin < candidates[j].ExpectedAgeMin
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], true
}
