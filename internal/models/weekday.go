package models

import "strings"

// Weekday is the persisted day_of_week value of a schedule entry.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// SchoolDays lists the teaching days in timetable order. Sunday is never scheduled.
var SchoolDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var weekdayIndex = map[Weekday]int{
	Monday:    1,
	Tuesday:   2,
	Wednesday: 3,
	Thursday:  4,
	Friday:    5,
	Saturday:  6,
	Sunday:    7,
}

// Index returns the ISO weekday number (Monday=1), or 0 for unknown values.
func (d Weekday) Index() int {
	return weekdayIndex[d]
}

// IsSchoolDay reports whether d may carry schedule entries.
func (d Weekday) IsSchoolDay() bool {
	idx := d.Index()
	return idx >= 1 && idx <= 6
}

// Title renders "Monday" style labels.
func (d Weekday) Title() string {
	if d == "" {
		return ""
	}
	lower := strings.ToLower(string(d))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// ParseWeekday normalises free-form day names.
func ParseWeekday(raw string) (Weekday, bool) {
	day := Weekday(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := weekdayIndex[day]; !ok {
		return "", false
	}
	return day, true
}
