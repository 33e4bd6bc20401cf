package service

import (
	"context"

	"github.com/noah-isme/timetable-api/internal/models"
)

// slotFinder searches one day of a teacher's week for the earliest free window.
type slotFinder struct {
	entries scheduleEntryStore
	cutoff  models.ClockTime
}

func newSlotFinder(entries scheduleEntryStore, cutoff models.ClockTime) *slotFinder {
	return &slotFinder{entries: entries, cutoff: cutoff}
}

// Find returns the first window of duration minutes starting at or after cursor
// that overlaps none of the teacher's entries on day and ends by the cutoff.
// On each conflict the window restarts at the conflicting entry's end. ok is
// false when the window would cross the cutoff.
func (f *slotFinder) Find(ctx context.Context, teacherID string, day models.Weekday, cursor models.ClockTime, duration int) (start, end models.ClockTime, ok bool, err error) {
	if duration <= 0 {
		return 0, 0, false, nil
	}
	start = cursor
	for {
		end = start.Add(duration)
		if end > f.cutoff {
			return 0, 0, false, nil
		}
		existing, err := f.entries.ListByTeacherAndDay(ctx, teacherID, day)
		if err != nil {
			return 0, 0, false, err
		}
		conflict, found := firstOverlap(existing, start, end)
		if !found {
			return start, end, true, nil
		}
		start = conflict.EndTime
	}
}

func firstOverlap(entries []models.ScheduleEntry, start, end models.ClockTime) (models.ScheduleEntry, bool) {
	for _, entry := range entries {
		if entry.Overlaps(start, end) {
			return entry, true
		}
	}
	return models.ScheduleEntry{}, false
}
