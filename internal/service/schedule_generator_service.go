package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/logger"
)

type schedulerClassReader interface {
	FindByName(ctx context.Context, name string) (*models.ClassUnit, error)
}

type timetableInvalidator interface {
	InvalidateAfterGeneration(ctx context.Context, classID string, teacherIDs []string)
}

type generationRecorder interface {
	ObserveGeneration(status string, entries int, duration time.Duration)
}

// GenerationFailure reports a run that stopped on an error after committing
// Committed entries. Committed entries are never rolled back.
type GenerationFailure struct {
	ClassName string
	Committed int
	Err       error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generate timetable for %s (%d entries committed): %v", e.ClassName, e.Committed, e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	MaxPasses int
	DayStart  models.ClockTime
	DayCutoff models.ClockTime
}

// ScheduleGeneratorService builds the weekly timetable of one class and
// persists every entry as soon as it is placed.
type ScheduleGeneratorService struct {
	classes   schedulerClassReader
	teachers  capableTeacherLister
	entries   scheduleEntryStore
	cache     timetableInvalidator
	metrics   generationRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleGeneratorConfig

	// runs share teacher load through the store, so one run at a time per process.
	mu sync.Mutex
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(
	classes schedulerClassReader,
	teachers capableTeacherLister,
	entries scheduleEntryStore,
	cache timetableInvalidator,
	metrics generationRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = 64
	}
	if cfg.DayStart == 0 {
		cfg.DayStart = models.Clock(8, 0)
	}
	if cfg.DayCutoff <= cfg.DayStart {
		cfg.DayCutoff = models.Clock(16, 0)
	}
	return &ScheduleGeneratorService{
		classes:   classes,
		teachers:  teachers,
		entries:   entries,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate validates the payload and runs the generator for the named class.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	req.ClassName = strings.TrimSpace(req.ClassName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	return s.GenerateForClass(ctx, req.ClassName)
}

// GenerateForClass fills the class's weekly quotas pass by pass until every
// quota is met or a pass places nothing. Entries committed before a failure
// are kept.
func (s *ScheduleGeneratorService) GenerateForClass(ctx context.Context, className string) (*dto.GenerateTimetableResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	log := logger.WithContext(ctx, s.logger).With(zap.String("class", className))

	class, err := s.classes.FindByName(ctx, className)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %q not found", className))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	run := newGenerationRun(class, s.teachers, s.entries, s.cfg, log)
	resp, runErr := run.execute(ctx)

	if len(run.created) > 0 && s.cache != nil {
		s.cache.InvalidateAfterGeneration(context.WithoutCancel(ctx), class.ID, run.teacherIDs())
	}

	if runErr != nil {
		if s.metrics != nil {
			s.metrics.ObserveGeneration("FAILED", len(run.created), time.Since(started))
		}
		log.Error("timetable generation failed", zap.Int("committed", len(run.created)), zap.Error(runErr))
		return nil, &GenerationFailure{ClassName: class.Name, Committed: len(run.created), Err: runErr}
	}

	if s.metrics != nil {
		s.metrics.ObserveGeneration(string(resp.Status), len(resp.Entries), time.Since(started))
	}
	log.Info("timetable generated",
		zap.String("status", string(resp.Status)),
		zap.Int("passes", resp.Passes),
		zap.Int("entries", len(resp.Entries)),
		zap.Int("unscheduled", len(resp.Unscheduled)),
		zap.Duration("took", time.Since(started)),
	)
	return resp, nil
}

// generationRun is the per-call state of the builder.
type generationRun struct {
	class     *models.ClassUnit
	entries   scheduleEntryStore
	capacity  *capacityTracker
	selector  *teacherSelector
	slots     *slotFinder
	cursors   map[models.Weekday]models.ClockTime
	maxPasses int
	logger    *zap.Logger

	created []models.ScheduleEntry
	reduced []dto.ReducedQuota
	blocked map[string]string
}

func newGenerationRun(class *models.ClassUnit, teachers capableTeacherLister, entries scheduleEntryStore, cfg ScheduleGeneratorConfig, log *zap.Logger) *generationRun {
	capacity := newCapacityTracker(entries, class.Subjects)
	cursors := make(map[models.Weekday]models.ClockTime, len(models.SchoolDays))
	for _, day := range models.SchoolDays {
		cursors[day] = cfg.DayStart
	}
	return &generationRun{
		class:     class,
		entries:   entries,
		capacity:  capacity,
		selector:  newTeacherSelector(teachers, capacity),
		slots:     newSlotFinder(entries, cfg.DayCutoff),
		cursors:   cursors,
		maxPasses: cfg.MaxPasses,
		logger:    log,
		blocked:   make(map[string]string),
	}
}

func (r *generationRun) execute(ctx context.Context) (*dto.GenerateTimetableResponse, error) {
	status := dto.GenerationPartial
	passLimited := false
	passes := 0

	for !r.capacity.Exhausted() {
		if passes >= r.maxPasses {
			passLimited = true
			break
		}
		passes++
		r.blocked = make(map[string]string)

		committed, err := r.pass(ctx)
		if err != nil {
			return nil, err
		}
		if committed == 0 {
			break
		}
	}
	if r.capacity.Exhausted() {
		status = dto.GenerationExhausted
	}

	resp := &dto.GenerateTimetableResponse{
		ClassID:   r.class.ID,
		ClassName: r.class.Name,
		Status:    status,
		Passes:    passes,
		Entries:   r.created,
		Reduced:   r.reduced,
	}
	if resp.Entries == nil {
		resp.Entries = []models.ScheduleEntry{}
	}
	if status == dto.GenerationPartial {
		resp.Unscheduled = r.unscheduled(passLimited)
	}
	return resp, nil
}

// pass walks every (subject, day) pair once in class order and returns how
// many entries it committed.
func (r *generationRun) pass(ctx context.Context) (int, error) {
	committed := 0
	for _, subject := range r.class.Subjects {
		for _, day := range models.SchoolDays {
			if err := ctx.Err(); err != nil {
				return committed, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable generation cancelled")
			}
			if r.capacity.Remaining(subject.SubjectID) <= 0 {
				break
			}
			placed, err := r.place(ctx, subject, day)
			if err != nil {
				return committed, err
			}
			if placed {
				committed++
			}
		}
	}
	return committed, nil
}

func (r *generationRun) place(ctx context.Context, subject models.SubjectRequirement, day models.Weekday) (bool, error) {
	remaining := r.capacity.Remaining(subject.SubjectID)

	selection, err := r.selector.Select(ctx, subject.SubjectID, remaining)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher")
	}
	if selection == nil {
		r.blocked[subject.SubjectID] = dto.UnscheduledNoCapableTeacher
		return false, nil
	}
	if selection.Fallback {
		r.reduced = append(r.reduced, dto.ReducedQuota{
			SubjectID:      subject.SubjectID,
			TeacherID:      selection.Teacher.ID,
			RequestedHours: minutesToHours(selection.Requested),
			GrantedHours:   minutesToHours(selection.Granted),
		})
		r.logger.Warn("subject quota reduced to teacher spare capacity",
			zap.String("subject", subject.SubjectName),
			zap.String("teacher_id", selection.Teacher.ID),
			zap.Int("requested_minutes", selection.Requested),
			zap.Int("granted_minutes", selection.Granted),
		)
		remaining = r.capacity.Remaining(subject.SubjectID)
		if remaining <= 0 {
			return false, nil
		}
	}

	duration := subject.SessionMinutes()
	if remaining < duration {
		duration = remaining
	}

	start, end, ok, err := r.slots.Find(ctx, selection.Teacher.ID, day, r.cursors[day], duration)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read teacher schedule")
	}
	if !ok {
		r.blocked[subject.SubjectID] = dto.UnscheduledNoFeasibleSlot
		r.logger.Debug("no slot before cutoff",
			zap.String("state", "blocked"),
			zap.String("subject", subject.SubjectName),
			zap.String("day", string(day)),
			zap.Stringer("cursor", r.cursors[day]),
		)
		return false, nil
	}

	entry := models.ScheduleEntry{
		ClassID:   r.class.ID,
		SubjectID: subject.SubjectID,
		TeacherID: selection.Teacher.ID,
		Day:       day,
		StartTime: start,
		EndTime:   end,
	}
	if err := r.entries.Create(ctx, &entry); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schedule entry")
	}

	r.created = append(r.created, entry)
	r.cursors[day] = end
	r.capacity.Decrement(subject.SubjectID, duration)
	r.logger.Debug("schedule entry committed",
		zap.String("state", "committed"),
		zap.String("subject", subject.SubjectName),
		zap.String("teacher_id", entry.TeacherID),
		zap.String("day", string(day)),
		zap.String("interval", entry.TimeInterval()),
	)
	return true, nil
}

func (r *generationRun) unscheduled(passLimited bool) []dto.UnscheduledSubject {
	var out []dto.UnscheduledSubject
	for _, subject := range r.class.Subjects {
		remaining := r.capacity.Remaining(subject.SubjectID)
		if remaining <= 0 {
			continue
		}
		reason := r.blocked[subject.SubjectID]
		if passLimited || reason == "" {
			reason = dto.UnscheduledPassLimit
		}
		out = append(out, dto.UnscheduledSubject{
			SubjectID:      subject.SubjectID,
			SubjectName:    subject.SubjectName,
			RemainingHours: minutesToHours(remaining),
			Reason:         reason,
		})
	}
	return out
}

func (r *generationRun) teacherIDs() []string {
	seen := make(map[string]struct{}, len(r.created))
	ids := make([]string, 0, len(r.created))
	for _, entry := range r.created {
		if _, ok := seen[entry.TeacherID]; ok {
			continue
		}
		seen[entry.TeacherID] = struct{}{}
		ids = append(ids, entry.TeacherID)
	}
	return ids
}

func minutesToHours(minutes int) float64 {
	return float64(minutes) / 60
}
