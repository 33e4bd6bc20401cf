package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
)

type classTimetableStub struct {
	timetable *dto.ClassTimetable
	err       error
}

func (s classTimetableStub) ClassTimetable(context.Context, string) (*dto.ClassTimetable, error) {
	return s.timetable, s.err
}

type calendarCapture struct {
	calendar export.Calendar
}

func (c *calendarCapture) Render(data export.Calendar) ([]byte, error) {
	c.calendar = data
	return []byte("BEGIN:VCALENDAR"), nil
}

func sampleTimetable() *dto.ClassTimetable {
	return &dto.ClassTimetable{
		ClassID:   "class-1a",
		ClassName: "1A / Science",
		Entries: []models.ScheduleEntryDetail{
			detail("e1", models.Monday, models.Clock(8, 0), models.Clock(10, 0), "Math", "Ada"),
			detail("e2", models.Wednesday, models.Clock(13, 0), models.Clock(14, 30), "Biology", "Grace"),
		},
	}
}

func TestExportServiceCSV(t *testing.T) {
	svc := NewExportService(classTimetableStub{timetable: sampleTimetable()}, ExportConfig{}, nil, nil, nil, nil, nil)

	file, err := svc.ClassTimetable(context.Background(), "1A", "")
	require.NoError(t, err)
	assert.Equal(t, "timetable_1A_Science.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	records, err := csv.NewReader(bytes.NewReader(file.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Day", "Time", "Subject", "Teacher"}, records[0])
	assert.Equal(t, []string{"Monday", "8:00 AM - 10:00 AM", "Math", "Ada"}, records[1])
	assert.Equal(t, []string{"Wednesday", "1:00 PM - 2:30 PM", "Biology", "Grace"}, records[2])
}

func TestExportServiceBinaryFormats(t *testing.T) {
	svc := NewExportService(classTimetableStub{timetable: sampleTimetable()}, ExportConfig{}, nil, nil, nil, nil, nil)

	pdf, err := svc.ClassTimetable(context.Background(), "1A", dto.ExportPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Content, []byte("%PDF")))
	assert.Equal(t, "application/pdf", pdf.ContentType)

	xlsx, err := svc.ClassTimetable(context.Background(), "1A", dto.ExportXLSX)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx.Content, []byte("PK")))
	assert.True(t, strings.HasSuffix(xlsx.Filename, ".xlsx"))
}

func TestExportServiceCalendarAnchorsOnCurrentWeek(t *testing.T) {
	capture := &calendarCapture{}
	svc := NewExportService(classTimetableStub{timetable: sampleTimetable()}, ExportConfig{Timezone: "UTC", CalendarWeeks: 18}, nil, nil, nil, nil, capture)
	svc.now = func() time.Time { return time.Date(2024, time.September, 5, 9, 30, 0, 0, time.UTC) } // Thursday

	file, err := svc.ClassTimetable(context.Background(), "1A", dto.ExportICS)
	require.NoError(t, err)
	assert.Equal(t, "text/calendar", file.ContentType)

	require.Len(t, capture.calendar.Events, 2)
	monday := capture.calendar.Events[0]
	assert.Equal(t, time.Date(2024, time.September, 2, 8, 0, 0, 0, time.UTC), monday.Start)
	assert.Equal(t, time.Date(2024, time.September, 2, 10, 0, 0, 0, time.UTC), monday.End)
	assert.Equal(t, 18, monday.Weeks)
	assert.Equal(t, "e1@timetable-api", monday.UID)
	wednesday := capture.calendar.Events[1]
	assert.Equal(t, time.Date(2024, time.September, 4, 13, 0, 0, 0, time.UTC), wednesday.Start)
	assert.Equal(t, "UTC", capture.calendar.Timezone)
}

func TestExportServiceErrors(t *testing.T) {
	svc := NewExportService(classTimetableStub{timetable: sampleTimetable()}, ExportConfig{}, nil, nil, nil, nil, nil)
	_, err := svc.ClassTimetable(context.Background(), "1A", dto.ExportFormat("docx"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	missing := NewExportService(classTimetableStub{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")}, ExportConfig{}, nil, nil, nil, nil, nil)
	_, err = missing.ClassTimetable(context.Background(), "9Z", dto.ExportCSV)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
