package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type memoryTimetableStore struct {
	mu        sync.Mutex
	classes   map[string]*models.ClassUnit
	capable   map[string][]models.Teacher
	entries   []models.ScheduleEntry
	seq       int
	failOn    int
	createErr error
	creates   int
}

func newMemoryTimetableStore() *memoryTimetableStore {
	return &memoryTimetableStore{
		classes: make(map[string]*models.ClassUnit),
		capable: make(map[string][]models.Teacher),
	}
}

func (m *memoryTimetableStore) addClass(id, name string, subjects ...models.SubjectRequirement) {
	m.classes[name] = &models.ClassUnit{Class: models.Class{ID: id, Name: name}, Subjects: subjects}
}

func (m *memoryTimetableStore) addCapable(subjectID string, teachers ...models.Teacher) {
	m.capable[subjectID] = append(m.capable[subjectID], teachers...)
}

func (m *memoryTimetableStore) seed(classID, subjectID, teacherID string, day models.Weekday, start, end models.ClockTime) {
	m.seq++
	m.entries = append(m.entries, models.ScheduleEntry{
		ID: fmt.Sprintf("seed-%d", m.seq), ClassID: classID, SubjectID: subjectID, TeacherID: teacherID,
		Day: day, StartTime: start, EndTime: end,
	})
}

func (m *memoryTimetableStore) FindByName(_ context.Context, name string) (*models.ClassUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	class, ok := m.classes[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	unit := *class
	return &unit, nil
}

func (m *memoryTimetableStore) ListCapable(_ context.Context, subjectID string) ([]models.Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Teacher(nil), m.capable[subjectID]...), nil
}

func (m *memoryTimetableStore) ListByTeacher(_ context.Context, teacherID string) ([]models.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduleEntry
	for _, entry := range m.entries {
		if entry.TeacherID == teacherID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *memoryTimetableStore) ListByTeacherAndDay(_ context.Context, teacherID string, day models.Weekday) ([]models.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduleEntry
	for _, entry := range m.entries {
		if entry.TeacherID == teacherID && entry.Day == day {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *memoryTimetableStore) Create(_ context.Context, entry *models.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.failOn > 0 && m.creates >= m.failOn {
		return m.createErr
	}
	m.seq++
	entry.ID = fmt.Sprintf("entry-%d", m.seq)
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryTimetableStore) entriesFor(classID string) []models.ScheduleEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduleEntry
	for _, entry := range m.entries {
		if entry.ClassID == classID {
			out = append(out, entry)
		}
	}
	return out
}

type invalidationRecorder struct {
	classID    string
	teacherIDs []string
	calls      int
}

func (r *invalidationRecorder) InvalidateAfterGeneration(_ context.Context, classID string, teacherIDs []string) {
	r.calls++
	r.classID = classID
	r.teacherIDs = teacherIDs
}

type generationRecorderStub struct {
	statuses []string
	entries  int
}

func (g *generationRecorderStub) ObserveGeneration(status string, entries int, _ time.Duration) {
	g.statuses = append(g.statuses, status)
	g.entries += entries
}

func subject(id string, weekly, daily int) models.SubjectRequirement {
	return models.SubjectRequirement{SubjectID: id, SubjectName: "Subject " + id, WeeklyHours: weekly, DailyHours: daily}
}

func teacher(id string, maxWeekly int) models.Teacher {
	return models.Teacher{ID: id, FullName: "Teacher " + id, MaxWeeklyHours: maxWeekly, MaxDailyHours: 8}
}

func newGeneratorForTest(store *memoryTimetableStore, cfg ScheduleGeneratorConfig) *ScheduleGeneratorService {
	return NewScheduleGeneratorService(store, store, store, nil, nil, nil, nil, cfg)
}

func TestScheduleGeneratorSingleSubjectFirstTwoDays(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 4, 2))
	store.addCapable("math", teacher("t1", 20))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	assert.Equal(t, dto.GenerationExhausted, resp.Status)
	assert.Equal(t, 1, resp.Passes)
	assert.Empty(t, resp.Unscheduled)
	require.Len(t, resp.Entries, 2)

	assert.Equal(t, models.Monday, resp.Entries[0].Day)
	assert.Equal(t, models.Tuesday, resp.Entries[1].Day)
	for _, entry := range resp.Entries {
		assert.Equal(t, "t1", entry.TeacherID)
		assert.Equal(t, "class-1a", entry.ClassID)
		assert.Equal(t, models.Clock(8, 0), entry.StartTime)
		assert.Equal(t, models.Clock(10, 0), entry.EndTime)
		assert.NotEmpty(t, entry.ID)
	}
	assert.Len(t, store.entriesFor("class-1a"), 2)
}

func TestScheduleGeneratorFallbackShrinksQuotaToSpareCapacity(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 4, 2))
	store.addCapable("math", teacher("t1", 20))
	// 19 hours already taught elsewhere.
	store.seed("class-2b", "physics", "t1", models.Monday, models.Clock(8, 0), models.Clock(16, 0))
	store.seed("class-2b", "physics", "t1", models.Tuesday, models.Clock(8, 0), models.Clock(16, 0))
	store.seed("class-2b", "physics", "t1", models.Wednesday, models.Clock(8, 0), models.Clock(11, 0))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	require.Len(t, resp.Entries, 1)
	entry := resp.Entries[0]
	assert.Equal(t, models.Wednesday, entry.Day)
	assert.Equal(t, models.Clock(11, 0), entry.StartTime)
	assert.Equal(t, models.Clock(12, 0), entry.EndTime)
	assert.Equal(t, 60, entry.DurationMinutes())

	assert.Equal(t, dto.GenerationExhausted, resp.Status)
	require.Len(t, resp.Reduced, 1)
	assert.Equal(t, dto.ReducedQuota{SubjectID: "math", TeacherID: "t1", RequestedHours: 4, GrantedHours: 1}, resp.Reduced[0])
}

func TestScheduleGeneratorUnknownClass(t *testing.T) {
	store := newMemoryTimetableStore()
	recorder := &invalidationRecorder{}
	svc := NewScheduleGeneratorService(store, store, store, recorder, nil, nil, nil, ScheduleGeneratorConfig{})

	resp, err := svc.GenerateForClass(context.Background(), "9Z")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 0, store.creates)
	assert.Equal(t, 0, recorder.calls)
}

func TestScheduleGeneratorSubjectWithoutCapableTeacher(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("art", 2, 1), subject("math", 4, 2))
	store.addCapable("math", teacher("t1", 20))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	assert.Equal(t, dto.GenerationPartial, resp.Status)
	require.Len(t, resp.Entries, 2)
	for _, entry := range resp.Entries {
		assert.Equal(t, "math", entry.SubjectID)
	}
	require.Len(t, resp.Unscheduled, 1)
	assert.Equal(t, dto.UnscheduledSubject{SubjectID: "art", SubjectName: "Subject art", RemainingHours: 2, Reason: dto.UnscheduledNoCapableTeacher}, resp.Unscheduled[0])
	assert.Equal(t, 2, resp.Passes)
}

func TestScheduleGeneratorKeepsTeacherBoundAcrossDays(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 6, 2))
	store.addCapable("math", teacher("t1", 40), teacher("t2", 40))
	store.seed("class-3c", "math", "t1", models.Tuesday, models.Clock(8, 0), models.Clock(16, 0))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	require.Len(t, resp.Entries, 3)
	days := []models.Weekday{}
	for _, entry := range resp.Entries {
		assert.Equal(t, "t1", entry.TeacherID)
		days = append(days, entry.Day)
	}
	assert.Equal(t, []models.Weekday{models.Monday, models.Wednesday, models.Thursday}, days)
}

func TestScheduleGeneratorAdvancesPastTeacherConflicts(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 2, 2))
	store.addCapable("math", teacher("t1", 40))
	store.seed("class-3c", "math", "t1", models.Monday, models.Clock(8, 0), models.Clock(9, 0))
	store.seed("class-3c", "math", "t1", models.Monday, models.Clock(9, 0), models.Clock(10, 30))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	require.Len(t, resp.Entries, 1)
	assert.Equal(t, models.Monday, resp.Entries[0].Day)
	assert.Equal(t, models.Clock(10, 30), resp.Entries[0].StartTime)
	assert.Equal(t, models.Clock(12, 30), resp.Entries[0].EndTime)
}

func TestScheduleGeneratorMultiplePassesUntilExhausted(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 14, 2))
	store.addCapable("math", teacher("t1", 40))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	assert.Equal(t, dto.GenerationExhausted, resp.Status)
	assert.Equal(t, 2, resp.Passes)
	require.Len(t, resp.Entries, 7)
	last := resp.Entries[6]
	assert.Equal(t, models.Monday, last.Day)
	assert.Equal(t, models.Clock(10, 0), last.StartTime)
}

func TestScheduleGeneratorPassLimit(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 14, 2))
	store.addCapable("math", teacher("t1", 40))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{MaxPasses: 1}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	assert.Equal(t, dto.GenerationPartial, resp.Status)
	assert.Len(t, resp.Entries, 6)
	require.Len(t, resp.Unscheduled, 1)
	assert.Equal(t, dto.UnscheduledPassLimit, resp.Unscheduled[0].Reason)
	assert.Equal(t, 2.0, resp.Unscheduled[0].RemainingHours)
}

func TestScheduleGeneratorSessionLongerThanSchoolDay(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("lab", 9, 9))
	store.addCapable("lab", teacher("t1", 40))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	assert.Equal(t, dto.GenerationPartial, resp.Status)
	assert.Empty(t, resp.Entries)
	assert.NotNil(t, resp.Entries)
	require.Len(t, resp.Unscheduled, 1)
	assert.Equal(t, dto.UnscheduledNoFeasibleSlot, resp.Unscheduled[0].Reason)
	assert.Equal(t, 1, resp.Passes)
}

func TestScheduleGeneratorZeroSpareLeavesNothingToPlace(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 4, 2))
	store.addCapable("math", teacher("t1", 2))
	store.seed("class-2b", "math", "t1", models.Friday, models.Clock(8, 0), models.Clock(11, 0))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	assert.Empty(t, resp.Entries)
	assert.Equal(t, dto.GenerationExhausted, resp.Status)
	require.Len(t, resp.Reduced, 1)
	assert.Equal(t, -1.0, resp.Reduced[0].GrantedHours)
}

func TestScheduleGeneratorPersistenceFailureKeepsEarlierCommits(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 6, 2))
	store.addCapable("math", teacher("t1", 40))
	storeErr := errors.New("connection reset")
	store.failOn = 2
	store.createErr = storeErr
	recorder := &invalidationRecorder{}
	metrics := &generationRecorderStub{}

	svc := NewScheduleGeneratorService(store, store, store, recorder, metrics, nil, nil, ScheduleGeneratorConfig{})
	resp, err := svc.GenerateForClass(context.Background(), "1A")

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, storeErr))
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	var failure *GenerationFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 1, failure.Committed)
	assert.Len(t, store.entriesFor("class-1a"), 1)

	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, []string{"FAILED"}, metrics.statuses)
}

func TestScheduleGeneratorCancelledContext(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 4, 2))
	store.addCapable("math", teacher("t1", 20))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(ctx, "1A")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, store.creates)
}

func TestScheduleGeneratorValidation(t *testing.T) {
	store := newMemoryTimetableStore()
	_, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).Generate(context.Background(), dto.GenerateTimetableRequest{ClassName: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestScheduleGeneratorReportsInvalidationAndMetrics(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 2, 1), subject("bio", 2, 2))
	store.addCapable("math", teacher("t1", 20))
	store.addCapable("bio", teacher("t2", 20))
	recorder := &invalidationRecorder{}
	metrics := &generationRecorderStub{}

	svc := NewScheduleGeneratorService(store, store, store, recorder, metrics, nil, nil, ScheduleGeneratorConfig{})
	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{ClassName: " 1A "})
	require.NoError(t, err)

	assert.Len(t, resp.Entries, 3)
	assert.Equal(t, "class-1a", recorder.classID)
	assert.ElementsMatch(t, []string{"t1", "t2"}, recorder.teacherIDs)
	assert.Equal(t, []string{string(dto.GenerationExhausted)}, metrics.statuses)
	assert.Equal(t, 3, metrics.entries)
}

func TestScheduleGeneratorSharedTeacherInvariants(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 10, 2), subject("bio", 6, 3))
	store.addClass("class-1b", "1B", subject("math", 12, 2), subject("bio", 4, 1))
	store.addCapable("math", teacher("t1", 16), teacher("t2", 30))
	store.addCapable("bio", teacher("t2", 30))

	svc := newGeneratorForTest(store, ScheduleGeneratorConfig{})
	first, err := svc.GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)
	second, err := svc.GenerateForClass(context.Background(), "1B")
	require.NoError(t, err)

	all := append(append([]models.ScheduleEntry{}, first.Entries...), second.Entries...)
	byTeacherDay := map[string][]models.ScheduleEntry{}
	minutesByTeacher := map[string]int{}
	for _, entry := range all {
		assert.True(t, entry.Day.IsSchoolDay())
		assert.GreaterOrEqual(t, entry.StartTime, models.Clock(8, 0))
		assert.LessOrEqual(t, entry.EndTime, models.Clock(16, 0))
		assert.Greater(t, entry.EndTime, entry.StartTime)
		key := entry.TeacherID + "/" + string(entry.Day)
		for _, other := range byTeacherDay[key] {
			assert.False(t, other.Overlaps(entry.StartTime, entry.EndTime), "overlap %v and %v", other, entry)
		}
		byTeacherDay[key] = append(byTeacherDay[key], entry)
		minutesByTeacher[entry.TeacherID] += entry.DurationMinutes()
	}
	assert.LessOrEqual(t, minutesByTeacher["t1"], 16*60)
	assert.LessOrEqual(t, minutesByTeacher["t2"], 30*60)

	perSubject := map[string]int{}
	for _, entry := range first.Entries {
		perSubject[entry.SubjectID] += entry.DurationMinutes()
	}
	assert.Equal(t, 10*60, perSubject["math"])
	assert.Equal(t, 6*60, perSubject["bio"])
}

func TestScheduleGeneratorRerunAddsSameTotals(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 4, 2), subject("bio", 3, 1))
	store.addCapable("math", teacher("t1", 40))
	store.addCapable("bio", teacher("t2", 40))
	svc := newGeneratorForTest(store, ScheduleGeneratorConfig{})

	totals := func(entries []models.ScheduleEntry) map[string]int {
		out := map[string]int{}
		for _, entry := range entries {
			out[entry.SubjectID] += entry.DurationMinutes()
		}
		return out
	}

	first, err := svc.GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)
	second, err := svc.GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	assert.Equal(t, totals(first.Entries), totals(second.Entries))
	for _, entry := range second.Entries {
		for _, previous := range first.Entries {
			if previous.TeacherID == entry.TeacherID && previous.Day == entry.Day {
				assert.False(t, previous.Overlaps(entry.StartTime, entry.EndTime))
			}
		}
	}
}

// Full-fit checks only count committed entries, so a subject bound earlier in
// the run does not reserve its pending quota against the teacher's cap.
func TestScheduleGeneratorSharedTeacherCanExceedWeeklyCap(t *testing.T) {
	store := newMemoryTimetableStore()
	store.addClass("class-1a", "1A", subject("math", 8, 1), subject("physics", 4, 1))
	store.addCapable("math", teacher("t1", 10))
	store.addCapable("physics", teacher("t1", 10))

	resp, err := newGeneratorForTest(store, ScheduleGeneratorConfig{}).GenerateForClass(context.Background(), "1A")
	require.NoError(t, err)

	assert.Equal(t, dto.GenerationExhausted, resp.Status)
	assert.Equal(t, 2, resp.Passes)
	assert.Empty(t, resp.Reduced)

	load := 0
	for _, entry := range store.entriesFor("class-1a") {
		require.Equal(t, "t1", entry.TeacherID)
		load += entry.DurationMinutes()
	}
	assert.Equal(t, 720, load)
	assert.Greater(t, load, teacher("t1", 10).MaxWeeklyMinutes())
}
