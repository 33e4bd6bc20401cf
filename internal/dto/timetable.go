package dto

import "github.com/noah-isme/timetable-api/internal/models"

// ClassTimetable is the read model of a class's weekly timetable.
type ClassTimetable struct {
	ClassID   string                       `json:"classId"`
	ClassName string                       `json:"className"`
	Entries   []models.ScheduleEntryDetail `json:"entries"`
}

// DailyLoad is the number of hours a teacher teaches on one day.
type DailyLoad struct {
	Day          models.Weekday `json:"day"`
	Hours        float64        `json:"hours"`
	OverDailyCap bool           `json:"overDailyCap"`
}

// TeacherLoad is the read model of a teacher's week and remaining capacity.
type TeacherLoad struct {
	Teacher        models.Teacher               `json:"teacher"`
	ScheduledHours float64                      `json:"scheduledHours"`
	SpareHours     float64                      `json:"spareHours"`
	OverWeeklyCap  bool                         `json:"overWeeklyCap"`
	Daily          []DailyLoad                  `json:"daily"`
	Entries        []models.ScheduleEntryDetail `json:"entries"`
}

// ExportFormat enumerates supported timetable renderings.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportPDF  ExportFormat = "pdf"
	ExportXLSX ExportFormat = "xlsx"
	ExportICS  ExportFormat = "ics"
)

// ExportQuery captures export parameters bound from the query string.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf xlsx ics"`
}

// ExportFile is a rendered timetable ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
