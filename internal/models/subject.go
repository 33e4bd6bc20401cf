package models

import "time"

// Subject represents an academic subject and its weekly demand.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	WeeklyHours int       `db:"weekly_hours" json:"weekly_hours"`
	DailyHours  int       `db:"daily_hours" json:"daily_hours"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectRequirement is the per-class demand for one subject.
type SubjectRequirement struct {
	SubjectID   string `db:"subject_id" json:"subject_id"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	WeeklyHours int    `db:"weekly_hours" json:"weekly_hours"`
	DailyHours  int    `db:"daily_hours" json:"daily_hours"`
}

// WeeklyMinutes returns the weekly quota in minutes.
func (r SubjectRequirement) WeeklyMinutes() int { return r.WeeklyHours * 60 }

// SessionMinutes returns the length of one session in minutes.
func (r SubjectRequirement) SessionMinutes() int { return r.DailyHours * 60 }
