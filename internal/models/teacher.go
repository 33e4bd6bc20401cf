package models

import "time"

// Teacher represents an instructor and their teaching capacity.
//
// MaxDailyHours is stored and reported but the generator does not enforce it.
type Teacher struct {
	ID             string    `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	MaxWeeklyHours int       `db:"max_weekly_hours" json:"max_weekly_hours"`
	MaxDailyHours  int       `db:"max_daily_hours" json:"max_daily_hours"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MaxWeeklyMinutes returns the weekly cap in minutes.
func (t Teacher) MaxWeeklyMinutes() int { return t.MaxWeeklyHours * 60 }

// TeacherSubject declares that a teacher can teach a subject.
type TeacherSubject struct {
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
