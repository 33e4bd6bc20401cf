package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// ClassRepository loads classes together with their timetable requirements.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindClass returns the class row only. It returns sql.ErrNoRows when absent.
func (r *ClassRepository) FindClass(ctx context.Context, name string) (*models.Class, error) {
	const query = `SELECT id, name, created_at, updated_at FROM classes WHERE name = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, name); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByName loads the class named name with its ordered requirements.
// It returns sql.ErrNoRows when absent.
func (r *ClassRepository) FindByName(ctx context.Context, name string) (*models.ClassUnit, error) {
	class, err := r.FindClass(ctx, name)
	if err != nil {
		return nil, err
	}

	subjects, err := r.ListRequirements(ctx, class.ID)
	if err != nil {
		return nil, err
	}

	return &models.ClassUnit{Class: *class, Subjects: subjects}, nil
}

// ListRequirements returns the subjects a class must be taught, in link order.
func (r *ClassRepository) ListRequirements(ctx context.Context, classID string) ([]models.SubjectRequirement, error) {
	const query = `
SELECT s.id AS subject_id, s.name AS subject_name, s.weekly_hours, s.daily_hours
FROM class_subjects cs
JOIN subjects s ON s.id = cs.subject_id
WHERE cs.class_id = $1
ORDER BY cs.created_at ASC, s.id ASC`
	var subjects []models.SubjectRequirement
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list class subject requirements: %w", err)
	}
	return subjects, nil
}
