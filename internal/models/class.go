package models

import "time"

// Class represents a school class (homeroom group) that receives a weekly timetable.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassUnit is a class loaded together with its subject requirements, the
// aggregate the generator works on.
type ClassUnit struct {
	Class
	Subjects []SubjectRequirement `json:"subjects"`
}
