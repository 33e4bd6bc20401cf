package service

import (
	"context"

	"github.com/noah-isme/timetable-api/internal/models"
)

type scheduleEntryStore interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleEntry, error)
	ListByTeacherAndDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.ScheduleEntry, error)
	Create(ctx context.Context, entry *models.ScheduleEntry) error
}

// capacityTracker holds the remaining weekly quota of every subject of one
// generation run. Teacher load is never cached: it is summed from the store on
// each call so entries committed earlier in the run are always counted.
type capacityTracker struct {
	entries   scheduleEntryStore
	remaining map[string]int
}

func newCapacityTracker(entries scheduleEntryStore, subjects []models.SubjectRequirement) *capacityTracker {
	remaining := make(map[string]int, len(subjects))
	for _, subject := range subjects {
		remaining[subject.SubjectID] = subject.WeeklyMinutes()
	}
	return &capacityTracker{entries: entries, remaining: remaining}
}

// Remaining returns the subject's outstanding quota in minutes. It may be negative.
func (c *capacityTracker) Remaining(subjectID string) int {
	return c.remaining[subjectID]
}

// Decrement consumes minutes from the subject's quota without a lower bound.
func (c *capacityTracker) Decrement(subjectID string, minutes int) {
	c.remaining[subjectID] -= minutes
}

// Shrink lowers the subject's quota to limit when limit is smaller.
func (c *capacityTracker) Shrink(subjectID string, limit int) {
	if limit < c.remaining[subjectID] {
		c.remaining[subjectID] = limit
	}
}

// Exhausted reports whether no subject has quota left.
func (c *capacityTracker) Exhausted() bool {
	for _, minutes := range c.remaining {
		if minutes > 0 {
			return false
		}
	}
	return true
}

// ScheduledMinutes sums the duration of every entry the teacher holds across all classes.
func (c *capacityTracker) ScheduledMinutes(ctx context.Context, teacherID string) (int, error) {
	entries, err := c.entries.ListByTeacher(ctx, teacherID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, entry := range entries {
		total += entry.DurationMinutes()
	}
	return total, nil
}

// SpareMinutes returns the teacher's weekly cap minus the minutes already scheduled.
func (c *capacityTracker) SpareMinutes(ctx context.Context, teacher models.Teacher) (int, error) {
	scheduled, err := c.ScheduledMinutes(ctx, teacher.ID)
	if err != nil {
		return 0, err
	}
	return teacher.MaxWeeklyMinutes() - scheduled, nil
}
