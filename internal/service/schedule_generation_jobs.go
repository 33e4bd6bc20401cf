package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

const generationJobType = "timetable.generate"

type classGenerator interface {
	GenerateForClass(ctx context.Context, className string) (*dto.GenerateTimetableResponse, error)
}

type jobTracker interface {
	TrackJob(delta int)
}

// GenerationJobsConfig tunes the batch queue.
type GenerationJobsConfig struct {
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	ResultTTL  time.Duration
}

type generationPayload struct {
	BatchID string
	Index   int
}

// ScheduleGenerationJobs runs batch generation requests on a single worker so
// batch runs never overlap.
type ScheduleGenerationJobs struct {
	generator classGenerator
	metrics   jobTracker
	validator *validator.Validate
	logger    *zap.Logger
	queue     *jobs.Queue
	store     *generationBatchStore
	submitMu  sync.Mutex
}

// NewScheduleGenerationJobs wires the batch queue. Call Start before Submit.
func NewScheduleGenerationJobs(generator classGenerator, metrics jobTracker, validate *validator.Validate, logger *zap.Logger, cfg GenerationJobsConfig) *ScheduleGenerationJobs {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if cfg.BufferSize < dto.MaxBatchClasses {
		cfg.BufferSize = dto.MaxBatchClasses
	}
	s := &ScheduleGenerationJobs{
		generator: generator,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		store:     newGenerationBatchStore(cfg.ResultTTL),
	}
	s.queue = jobs.NewQueue("timetable-generation", s.handle, jobs.QueueConfig{
		Workers:     1,
		BufferSize:  cfg.BufferSize,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		ShouldRetry: retryableGenerationError,
		OnGiveUp:    s.giveUp,
		Logger:      logger,
	})
	return s
}

// Start launches the worker.
func (s *ScheduleGenerationJobs) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker.
func (s *ScheduleGenerationJobs) Stop() {
	s.queue.Stop()
}

// Submit queues one generation per class name and returns the batch status.
func (s *ScheduleGenerationJobs) Submit(ctx context.Context, req dto.BatchGenerateRequest) (*dto.GenerationJobStatus, error) {
	names := make([]string, 0, len(req.ClassNames))
	for _, name := range req.ClassNames {
		names = append(names, strings.TrimSpace(name))
	}
	req.ClassNames = names
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch generation payload")
	}

	// A batch is admitted whole or not at all. submitMu keeps concurrent
	// batches from claiming the same free space.
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	if free := s.queue.Free(); len(names) > free {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, fmt.Sprintf("generation queue has room for %d classes, retry later", free))
	}

	batch := s.store.Create(uuid.NewString(), names)
	for i, name := range names {
		job := jobs.Job{
			ID:      fmt.Sprintf("%s:%d", batch.JobID, i),
			Type:    generationJobType,
			Payload: generationPayload{BatchID: batch.JobID, Index: i},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.store.Update(batch.JobID, i, func(item *dto.GenerationJobItem) {
				item.State = dto.JobFailed
				item.Error = err.Error()
			})
			s.logger.Warn("failed to enqueue generation", zap.String("job_id", job.ID), zap.String("class", name), zap.Error(err))
			continue
		}
		s.track(1)
	}
	s.logger.Info("batch generation submitted", zap.String("job_id", batch.JobID), zap.Int("classes", len(names)))

	status, _ := s.store.Get(batch.JobID)
	return status, nil
}

// Status returns the current state of a batch.
func (s *ScheduleGenerationJobs) Status(_ context.Context, jobID string) (*dto.GenerationJobStatus, error) {
	status, ok := s.store.Get(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	return status, nil
}

func (s *ScheduleGenerationJobs) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(generationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	className, ok := s.store.ClassName(payload.BatchID, payload.Index)
	if !ok {
		s.track(-1)
		return nil
	}

	s.store.Update(payload.BatchID, payload.Index, func(item *dto.GenerationJobItem) {
		item.State = dto.JobRunning
	})

	resp, err := s.generator.GenerateForClass(ctx, className)
	if err != nil {
		s.store.Update(payload.BatchID, payload.Index, func(item *dto.GenerationJobItem) {
			item.State = dto.JobQueued
			item.Error = err.Error()
		})
		return err
	}

	s.track(-1)
	s.store.Update(payload.BatchID, payload.Index, func(item *dto.GenerationJobItem) {
		item.State = dto.JobDone
		item.Status = resp.Status
		item.EntriesCount = len(resp.Entries)
		item.Error = ""
	})
	return nil
}

func (s *ScheduleGenerationJobs) giveUp(job jobs.Job, err error) {
	payload, ok := job.Payload.(generationPayload)
	if !ok {
		return
	}
	s.track(-1)
	s.store.Update(payload.BatchID, payload.Index, func(item *dto.GenerationJobItem) {
		item.State = dto.JobFailed
		item.Error = err.Error()
	})
}

func (s *ScheduleGenerationJobs) track(delta int) {
	if s.metrics != nil {
		s.metrics.TrackJob(delta)
	}
}

// retryableGenerationError retries server side failures that left nothing committed.
func retryableGenerationError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var failure *GenerationFailure
	if errors.As(err, &failure) {
		return failure.Committed == 0
	}
	return appErrors.HTTPStatus(err) >= http.StatusInternalServerError
}

type generationBatch struct {
	status dto.GenerationJobStatus
}

type generationBatchStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*generationBatch
}

func newGenerationBatchStore(ttl time.Duration) *generationBatchStore {
	return &generationBatchStore{
		ttl:   ttl,
		items: make(map[string]*generationBatch),
	}
}

func (s *generationBatchStore) Create(id string, classNames []string) dto.GenerationJobStatus {
	items := make([]dto.GenerationJobItem, len(classNames))
	for i, name := range classNames {
		items[i] = dto.GenerationJobItem{ClassName: name, State: dto.JobQueued}
	}
	batch := &generationBatch{status: dto.GenerationJobStatus{JobID: id, CreatedAt: time.Now().UTC(), Items: items}}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	s.items[id] = batch
	return batch.status
}

// Get returns a copy of the batch status.
func (s *generationBatchStore) Get(id string) (*dto.GenerationJobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.items[id]
	if !ok || time.Since(batch.status.CreatedAt) > s.ttl {
		return nil, false
	}
	status := batch.status
	status.Items = append([]dto.GenerationJobItem(nil), batch.status.Items...)
	return &status, true
}

func (s *generationBatchStore) ClassName(id string, index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.items[id]
	if !ok || index < 0 || index >= len(batch.status.Items) {
		return "", false
	}
	return batch.status.Items[index].ClassName, true
}

func (s *generationBatchStore) Update(id string, index int, fn func(*dto.GenerationJobItem)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.items[id]
	if !ok || index < 0 || index >= len(batch.status.Items) {
		return
	}
	fn(&batch.status.Items[index])
}

// evictExpired must be called with the write lock held.
func (s *generationBatchStore) evictExpired() {
	for id, batch := range s.items {
		if time.Since(batch.status.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}
