package models

import (
	"fmt"
	"time"
)

// ScheduleEntry is one committed session of a subject for a class.
type ScheduleEntry struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Day       Weekday   `db:"day_of_week" json:"day_of_week"`
	StartTime ClockTime `db:"start_minute" json:"start_time"`
	EndTime   ClockTime `db:"end_minute" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DurationMinutes returns end minus start.
func (e ScheduleEntry) DurationMinutes() int {
	return int(e.EndTime - e.StartTime)
}

// Overlaps reports whether e intersects [start, end) using half-open intervals.
func (e ScheduleEntry) Overlaps(start, end ClockTime) bool {
	return e.StartTime < end && e.EndTime > start
}

// TimeInterval renders the printed form, e.g. "8:00 AM - 10:00 AM".
func (e ScheduleEntry) TimeInterval() string {
	return fmt.Sprintf("%s - %s", e.StartTime.Kitchen(), e.EndTime.Kitchen())
}

// ScheduleEntryDetail enriches an entry with descriptive names for read models.
type ScheduleEntryDetail struct {
	ScheduleEntry
	ClassName   string `db:"class_name" json:"class_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}
