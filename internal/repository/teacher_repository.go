package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// TeacherRepository manages persistence lookups for teachers and their capabilities.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByID loads a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, full_name, max_weekly_hours, max_daily_hours, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListCapable returns the teachers able to teach subjectID in capability-list order.
func (r *TeacherRepository) ListCapable(ctx context.Context, subjectID string) ([]models.Teacher, error) {
	const query = `
SELECT t.id, t.full_name, t.max_weekly_hours, t.max_daily_hours, t.created_at, t.updated_at
FROM teacher_subjects ts
JOIN teachers t ON t.id = ts.teacher_id
WHERE ts.subject_id = $1
ORDER BY ts.created_at ASC, t.id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, subjectID); err != nil {
		return nil, fmt.Errorf("list capable teachers: %w", err)
	}
	return teachers, nil
}
