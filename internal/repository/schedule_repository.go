package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const scheduleEntryColumns = `id, class_id, subject_id, teacher_id, day_of_week, start_minute, end_minute, created_at`

const scheduleEntryDetailQuery = `
SELECT se.id, se.class_id, se.subject_id, se.teacher_id, se.day_of_week, se.start_minute, se.end_minute, se.created_at,
       c.name AS class_name, s.name AS subject_name, t.full_name AS teacher_name
FROM schedule_entries se
JOIN classes c ON c.id = se.class_id
JOIN subjects s ON s.id = se.subject_id
JOIN teachers t ON t.id = se.teacher_id`

const dayOrderClause = `CASE se.day_of_week WHEN 'MONDAY' THEN 1 WHEN 'TUESDAY' THEN 2 WHEN 'WEDNESDAY' THEN 3 WHEN 'THURSDAY' THEN 4 WHEN 'FRIDAY' THEN 5 WHEN 'SATURDAY' THEN 6 ELSE 7 END`

// ScheduleRepository provides persistence for schedule entries.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListByTeacher returns every entry taught by a teacher across all classes.
func (r *ScheduleRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleEntry, error) {
	query := `SELECT ` + scheduleEntryColumns + ` FROM schedule_entries WHERE teacher_id = $1 ORDER BY day_of_week ASC, start_minute ASC`
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID); err != nil {
		return nil, fmt.Errorf("list schedule entries by teacher: %w", err)
	}
	return entries, nil
}

// ListByTeacherAndDay returns a teacher's entries for one day ordered by start time.
func (r *ScheduleRepository) ListByTeacherAndDay(ctx context.Context, teacherID string, day models.Weekday) ([]models.ScheduleEntry, error) {
	query := `SELECT ` + scheduleEntryColumns + ` FROM schedule_entries WHERE teacher_id = $1 AND day_of_week = $2 ORDER BY start_minute ASC`
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, string(day)); err != nil {
		return nil, fmt.Errorf("list schedule entries by teacher and day: %w", err)
	}
	return entries, nil
}

// ListDetailedByClass returns a class's entries with names, ordered by day and start time.
func (r *ScheduleRepository) ListDetailedByClass(ctx context.Context, classID string) ([]models.ScheduleEntryDetail, error) {
	query := scheduleEntryDetailQuery + ` WHERE se.class_id = $1 ORDER BY ` + dayOrderClause + `, se.start_minute ASC`
	var entries []models.ScheduleEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list detailed schedule entries by class: %w", err)
	}
	return entries, nil
}

// ListDetailedByTeacher returns a teacher's entries with names, ordered by day and start time.
func (r *ScheduleRepository) ListDetailedByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleEntryDetail, error) {
	query := scheduleEntryDetailQuery + ` WHERE se.teacher_id = $1 ORDER BY ` + dayOrderClause + `, se.start_minute ASC`
	var entries []models.ScheduleEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, teacherID); err != nil {
		return nil, fmt.Errorf("list detailed schedule entries by teacher: %w", err)
	}
	return entries, nil
}

// Create stores a new schedule entry immediately; it is visible to subsequent reads.
func (r *ScheduleRepository) Create(ctx context.Context, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO schedule_entries (id, class_id, subject_id, teacher_id, day_of_week, start_minute, end_minute, created_at) VALUES (:id, :class_id, :subject_id, :teacher_id, :day_of_week, :start_minute, :end_minute, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create schedule entry: %w", err)
	}
	return nil
}
