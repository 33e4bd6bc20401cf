package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
)

var timetableHeaders = []string{"Day", "Time", "Subject", "Teacher"}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type classTimetableReader interface {
	ClassTimetable(ctx context.Context, className string) (*dto.ClassTimetable, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type calendarRenderer interface {
	Render(data export.Calendar) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Timezone string
	// CalendarWeeks bounds the weekly recurrence in iCalendar output. Zero repeats forever.
	CalendarWeeks int
}

// ExportService renders class timetables for download.
type ExportService struct {
	timetables classTimetableReader
	csv        tableRenderer
	pdf        tableRenderer
	xlsx       tableRenderer
	ics        calendarRenderer
	location   *time.Location
	cfg        ExportConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to pkg/export defaults.
func NewExportService(timetables classTimetableReader, cfg ExportConfig, logger *zap.Logger, csv, pdf, xlsx tableRenderer, ics calendarRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if ics == nil {
		ics = export.NewICSExporter()
	}
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		if cfg.Timezone != "" {
			logger.Warn("unknown timetable timezone, falling back to UTC", zap.String("timezone", cfg.Timezone))
		}
		location = time.UTC
		cfg.Timezone = "UTC"
	}
	return &ExportService{
		timetables: timetables,
		csv:        csv,
		pdf:        pdf,
		xlsx:       xlsx,
		ics:        ics,
		location:   location,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// ClassTimetable renders the named class's timetable in the requested format (csv when empty).
func (s *ExportService) ClassTimetable(ctx context.Context, className string, format dto.ExportFormat) (*dto.ExportFile, error) {
	if format == "" {
		format = dto.ExportCSV
	}
	timetable, err := s.timetables.ClassTimetable(ctx, className)
	if err != nil {
		return nil, err
	}

	base := "timetable_" + strings.Trim(unsafeFilename.ReplaceAllString(timetable.ClassName, "_"), "_")
	dataset := timetableDataset(timetable)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case dto.ExportCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case dto.ExportPDF:
		payload, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	case dto.ExportXLSX:
		payload, err = s.xlsx.Render(dataset)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case dto.ExportICS:
		payload, err = s.ics.Render(s.timetableCalendar(timetable))
		contentType = "text/calendar"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		s.logger.Error("timetable export failed", zap.String("class", timetable.ClassName), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	return &dto.ExportFile{
		Filename:    fmt.Sprintf("%s.%s", base, format),
		ContentType: contentType,
		Content:     payload,
	}, nil
}

func timetableDataset(timetable *dto.ClassTimetable) export.Dataset {
	rows := make([][]string, 0, len(timetable.Entries))
	for _, entry := range timetable.Entries {
		rows = append(rows, []string{
			entry.Day.Title(),
			entry.TimeInterval(),
			entry.SubjectName,
			entry.TeacherName,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Weekly timetable - %s", timetable.ClassName),
		Headers: timetableHeaders,
		Rows:    rows,
	}
}

// timetableCalendar anchors each entry on its weekday of the current week.
func (s *ExportService) timetableCalendar(timetable *dto.ClassTimetable) export.Calendar {
	monday := weekStart(s.now().In(s.location))
	events := make([]export.CalendarEvent, 0, len(timetable.Entries))
	for _, entry := range timetable.Entries {
		day := monday.AddDate(0, 0, entry.Day.Index()-1)
		events = append(events, export.CalendarEvent{
			UID:         entry.ID + "@timetable-api",
			Summary:     fmt.Sprintf("%s (%s)", entry.SubjectName, timetable.ClassName),
			Description: "Teacher: " + entry.TeacherName,
			Start:       atClock(day, entry.StartTime),
			End:         atClock(day, entry.EndTime),
			Weeks:       s.cfg.CalendarWeeks,
		})
	}
	return export.Calendar{
		Name:     fmt.Sprintf("Timetable %s", timetable.ClassName),
		Timezone: s.cfg.Timezone,
		Events:   events,
	}
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func atClock(day time.Time, clock models.ClockTime) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location())
}
