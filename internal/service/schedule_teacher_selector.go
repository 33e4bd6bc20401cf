package service

import (
	"context"

	"github.com/noah-isme/timetable-api/internal/models"
)

type capableTeacherLister interface {
	ListCapable(ctx context.Context, subjectID string) ([]models.Teacher, error)
}

// teacherSelection is the outcome of resolving a teacher for a subject.
type teacherSelection struct {
	Teacher models.Teacher
	// Fallback is set when no capable teacher could absorb the whole quota and
	// the quota was shrunk to the chosen teacher's spare capacity.
	Fallback  bool
	Requested int
	Granted   int
}

// teacherSelector binds one teacher to each subject of a class for the whole run.
type teacherSelector struct {
	teachers capableTeacherLister
	capacity *capacityTracker
	bound    map[string]models.Teacher
}

func newTeacherSelector(teachers capableTeacherLister, capacity *capacityTracker) *teacherSelector {
	return &teacherSelector{
		teachers: teachers,
		capacity: capacity,
		bound:    make(map[string]models.Teacher),
	}
}

// Select returns the teacher delivering subjectID, or nil when nobody can teach it.
//
// An existing binding always wins. Otherwise the first capable teacher whose
// spare weekly minutes cover required is chosen; failing that the teacher with
// the most spare minutes is chosen (earliest in capability order on ties) and
// the subject quota is shrunk to min(required, spare).
//
// Spare minutes count committed entries only. Subjects bound to the same
// teacher do not reserve their pending quota, so together they can exceed the
// teacher's weekly cap.
func (s *teacherSelector) Select(ctx context.Context, subjectID string, required int) (*teacherSelection, error) {
	if teacher, ok := s.bound[subjectID]; ok {
		return &teacherSelection{Teacher: teacher}, nil
	}

	candidates, err := s.teachers.ListCapable(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var (
		best      models.Teacher
		bestSpare int
		found     bool
	)
	for _, candidate := range candidates {
		spare, err := s.capacity.SpareMinutes(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if spare >= required {
			s.bound[subjectID] = candidate
			return &teacherSelection{Teacher: candidate}, nil
		}
		if !found || spare > bestSpare {
			best, bestSpare, found = candidate, spare, true
		}
	}

	granted := required
	if bestSpare < granted {
		granted = bestSpare
	}
	s.capacity.Shrink(subjectID, granted)
	s.bound[subjectID] = best
	return &teacherSelection{Teacher: best, Fallback: true, Requested: required, Granted: granted}, nil
}
