package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

const (
	classTimetableCacheKey = "timetable:class:%s"
	teacherLoadCacheKey    = "timetable:teacher:%s"
	timetableCachePattern  = "timetable:*"
)

type timetableClassLookup interface {
	FindClass(ctx context.Context, name string) (*models.Class, error)
}

type timetableTeacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type timetableEntryReader interface {
	ListDetailedByClass(ctx context.Context, classID string) ([]models.ScheduleEntryDetail, error)
	ListDetailedByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleEntryDetail, error)
}

// TimetableService serves class timetables and teacher load reports.
type TimetableService struct {
	classes  timetableClassLookup
	teachers timetableTeacherLookup
	entries  timetableEntryReader
	cache    *CacheService
	logger   *zap.Logger
}

// NewTimetableService constructs the read side of the timetable.
func NewTimetableService(classes timetableClassLookup, teachers timetableTeacherLookup, entries timetableEntryReader, cache *CacheService, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{classes: classes, teachers: teachers, entries: entries, cache: cache, logger: logger}
}

// ClassTimetable returns every entry of the named class ordered by day and start time.
func (s *TimetableService) ClassTimetable(ctx context.Context, className string) (*dto.ClassTimetable, error) {
	className = strings.TrimSpace(className)
	if className == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class name is required")
	}
	class, err := s.classes.FindClass(ctx, className)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %q not found", className))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	return cacheAside(ctx, s.cache, fmt.Sprintf(classTimetableCacheKey, class.ID), func() (*dto.ClassTimetable, error) {
		entries, err := s.entries.ListDetailedByClass(ctx, class.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class timetable")
		}
		if entries == nil {
			entries = []models.ScheduleEntryDetail{}
		}
		return &dto.ClassTimetable{ClassID: class.ID, ClassName: class.Name, Entries: entries}, nil
	})
}

// TeacherLoad reports a teacher's week against their weekly and daily caps.
// The daily cap is only reported; the generator does not enforce it.
func (s *TimetableService) TeacherLoad(ctx context.Context, teacherID string) (*dto.TeacherLoad, error) {
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}

	return cacheAside(ctx, s.cache, fmt.Sprintf(teacherLoadCacheKey, teacherID), func() (*dto.TeacherLoad, error) {
		teacher, err := s.teachers.FindByID(ctx, teacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		entries, err := s.entries.ListDetailedByTeacher(ctx, teacherID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher schedule")
		}
		if entries == nil {
			entries = []models.ScheduleEntryDetail{}
		}
		return buildTeacherLoad(*teacher, entries), nil
	})
}

// InvalidateAfterGeneration drops cached views touched by a generation run.
func (s *TimetableService) InvalidateAfterGeneration(ctx context.Context, classID string, teacherIDs []string) {
	keys := make([]string, 0, len(teacherIDs)+1)
	keys = append(keys, fmt.Sprintf(classTimetableCacheKey, classID))
	for _, id := range teacherIDs {
		keys = append(keys, fmt.Sprintf(teacherLoadCacheKey, id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("class_id", classID), zap.Error(err))
	}
}

// ResetCache drops every cached timetable view. Called at start-up because a
// new build or migration may change the cached shapes.
func (s *TimetableService) ResetCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx, timetableCachePattern)
}

func buildTeacherLoad(teacher models.Teacher, entries []models.ScheduleEntryDetail) *dto.TeacherLoad {
	perDay := make(map[models.Weekday]int, len(models.SchoolDays))
	total := 0
	for _, entry := range entries {
		minutes := entry.DurationMinutes()
		perDay[entry.Day] += minutes
		total += minutes
	}

	daily := make([]dto.DailyLoad, 0, len(models.SchoolDays))
	for _, day := range models.SchoolDays {
		minutes := perDay[day]
		daily = append(daily, dto.DailyLoad{
			Day:          day,
			Hours:        minutesToHours(minutes),
			OverDailyCap: teacher.MaxDailyHours > 0 && minutes > teacher.MaxDailyHours*60,
		})
	}

	spare := teacher.MaxWeeklyMinutes() - total
	return &dto.TeacherLoad{
		Teacher:        teacher,
		ScheduledHours: minutesToHours(total),
		SpareHours:     minutesToHours(spare),
		OverWeeklyCap:  spare < 0,
		Daily:          daily,
		Entries:        entries,
	}
}
