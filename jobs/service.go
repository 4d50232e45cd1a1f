package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/internal/ctxkeys"
	"github.com/BaSui01/assetflow/internal/pool"
	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/pipeline/archive"
	"github.com/BaSui01/assetflow/types"
)

// Runner executes one plan. *pipeline.Orchestrator satisfies it.
type Runner interface {
	CheckModels(req pipeline.Request) error
	Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Plan, error)
}

// Assembler turns a plan into a zip. *archive.Assembler satisfies it.
type Assembler interface {
	Assemble(ctx context.Context, plan *pipeline.Plan) ([]byte, archive.Report, error)
}

// Recorder receives job lifecycle metrics.
type Recorder interface {
	RecordJobStarted()
	RecordJobFinished(status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordJobStarted()         {}
func (nopRecorder) RecordJobFinished(string) {}

// Service accepts plan requests and runs them on a bounded pool.
type Service struct {
	runner    Runner
	assembler Assembler
	store     Store
	blobs     BlobStore
	broker    *Broker
	pool      *pool.GoroutinePool
	defaults  pipeline.Models
	limits    pipeline.Limits
	timeout   time.Duration
	recorder  Recorder
	now       func() time.Time
	logger    *zap.Logger

	// queued、running 与 cancelled 只在 mu 下变更，一个任务同一时刻至多在其中一个集合里
	mu        sync.Mutex
	queued    map[string]struct{}
	running   map[string]context.CancelFunc
	cancelled map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithStore sets the job store. Defaults to a MemoryStore.
func WithStore(s Store) Option { return func(svc *Service) { svc.store = s } }

// WithBlobStore sets the archive store. Defaults to a FileBlobStore in JobsConfig.Dir.
func WithBlobStore(b BlobStore) Option { return func(svc *Service) { svc.blobs = b } }

// WithDefaults sets the models used when a request leaves them empty.
func WithDefaults(m pipeline.Models) Option { return func(svc *Service) { svc.defaults = m } }

// WithLimits sets the per-request item caps.
func WithLimits(l pipeline.Limits) Option { return func(svc *Service) { svc.limits = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(svc *Service) {
		if r != nil {
			svc.recorder = r
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(svc *Service) { svc.now = now } }

// NewService starts the worker pool.
func NewService(cfg config.JobsConfig, runner Runner, assembler Assembler, logger *zap.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		runner:    runner,
		assembler: assembler,
		broker:    NewBroker(32),
		limits:    pipeline.DefaultLimits(),
		timeout:   cfg.RunTimeout,
		recorder:  nopRecorder{},
		now:       time.Now,
		logger:    logger.With(zap.String("component", "jobs")),
		queued:    make(map[string]struct{}),
		running:   make(map[string]context.CancelFunc),
		cancelled: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.blobs == nil {
		fs, err := NewFileBlobStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		s.blobs = fs
	}
	pc := pool.DefaultConfig()
	if cfg.Workers > 0 {
		pc.Workers = cfg.Workers
	}
	if cfg.QueueSize > 0 {
		pc.QueueSize = cfg.QueueSize
	}
	pc.Logger = logger
	s.pool = pool.NewGoroutinePool(pc)
	return s, nil
}

// Close stops the pool. With drain the queued jobs still run.
func (s *Service) Close(drain bool) {
	s.pool.Close(drain)
}

// Stats reports pool utilisation.
func (s *Service) Stats() pool.Stats { return s.pool.Stats() }

// Submit validates the request and queues it. Invalid requests and unusable
// models are rejected here, before a job record exists.
func (s *Service) Submit(ctx context.Context, in pipeline.RequestInput) (*Job, error) {
	req, err := pipeline.NewRequestWithLimits(in, s.defaults, s.limits)
	if err != nil {
		return nil, err
	}
	if err := s.runner.CheckModels(req); err != nil {
		return nil, err
	}

	now := s.now()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Concept:   req.Concept,
		Request:   in,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.publish(job, pipeline.Progress{Label: "queued"})
	queued := job.clone()

	id := job.ID
	s.mu.Lock()
	s.queued[id] = struct{}{}
	s.mu.Unlock()
	if err := s.pool.Submit(func(ctx context.Context) error {
		return s.execute(ctx, id, req)
	}); err != nil {
		s.mu.Lock()
		delete(s.queued, id)
		s.mu.Unlock()
		job.Status = StatusFailed
		job.Error = "job queue is full"
		s.save(context.WithoutCancel(ctx), job)
		s.publish(job, pipeline.Progress{Label: job.Error})
		return nil, types.NewError(types.ErrServiceUnavailable, "job queue is full, retry later").
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithCause(err)
	}

	s.logger.Info("job queued", zap.String("job_id", id), zap.Int("items", pipeline.TotalItems(req)))
	return queued, nil
}

// Get returns the current job record.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.store.Get(ctx, id)
}

// List returns recent jobs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Job, error) {
	return s.store.List(ctx, limit)
}

// Archive returns the zip of a succeeded job.
func (s *Service) Archive(ctx context.Context, id string) ([]byte, *Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != StatusSucceeded {
		return nil, job, types.Errorf(types.ErrInvalidRequest, "job %s is %s, archive not available", id, job.Status).
			WithHTTPStatus(http.StatusConflict)
	}
	data, err := s.blobs.Get(ctx, job.ArchiveKey)
	if err != nil {
		return nil, job, err
	}
	return data, job, nil
}

// Subscribe streams events of a job. The returned func must be called when done.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan Event, func(), error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.broker.Subscribe(id)
	if job.Status.IsTerminal() {
		// 进程重启后 broker 中没有该任务的状态，补发一次终态
		s.broker.Publish(s.event(job, pipeline.Progress{Fraction: job.Progress, Stage: job.Stage}))
	}
	return ch, cancel, nil
}

// Cancel stops a queued or running job.
//
// The in-process state is decided under the lock before the record is read.
// A job that finishes in between is already terminal in the store by the
// time it leaves the running set, so its record is never overwritten.
func (s *Service) Cancel(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	cancel, running := s.running[id]
	_, queued := s.queued[id]
	if queued {
		// execute 看到 cancelled 后直接跳过
		delete(s.queued, id)
		s.cancelled[id] = struct{}{}
	}
	s.mu.Unlock()

	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, types.Errorf(types.ErrInvalidRequest, "job %s is already %s", id, job.Status).
			WithHTTPStatus(http.StatusConflict)
	}

	switch {
	case running:
		cancel()
		s.logger.Info("job cancellation requested", zap.String("job_id", id))
		return job, nil
	case queued:
		job.Error = "cancelled before start"
	default:
		// 上一个进程留下、尚未回收的记录
		job.Error = "cancelled"
	}
	job.Status = StatusCancelled
	s.finish(ctx, job)
	return job, nil
}

// Recover marks jobs left queued or running by a previous process as failed.
func (s *Service) Recover(ctx context.Context) (int, error) {
	stale, err := s.store.Recoverable(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range stale {
		job.Status = StatusFailed
		job.Error = "interrupted by restart"
		job.UpdatedAt = s.now()
		if err := s.store.Update(ctx, job); err != nil {
			return 0, err
		}
	}
	if len(stale) > 0 {
		s.logger.Warn("marked interrupted jobs as failed", zap.Int("count", len(stale)))
	}
	return len(stale), nil
}

// =============================================================================
// 执行
// =============================================================================

func (s *Service) execute(poolCtx context.Context, id string, req pipeline.Request) error {
	s.mu.Lock()
	if _, ok := s.cancelled[id]; ok {
		delete(s.cancelled, id)
		s.mu.Unlock()
		return nil
	}
	delete(s.queued, id)
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(poolCtx, s.timeout)
	} else {
		ctx, cancel = context.WithCancel(poolCtx)
	}
	s.running[id] = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
		cancel()
	}()

	// 状态写入不受运行取消影响
	bg := context.WithoutCancel(ctx)
	job, err := s.store.Get(bg, id)
	if err != nil {
		return err
	}
	logger := s.logger.With(zap.String("job_id", id))

	job.Status = StatusRunning
	s.save(bg, job)
	s.publish(job, pipeline.Progress{Label: "started"})
	s.recorder.RecordJobStarted()

	ctx = ctxkeys.WithJobID(ctxkeys.WithRunID(ctx, id), id)
	plan, err := s.runner.Run(ctx, req, func(p pipeline.Progress) {
		job.Stage = p.Stage
		job.Progress = p.Fraction
		s.save(bg, job)
		s.publish(job, p)
	})
	if plan != nil {
		job.Results = plan.Summary()
	}
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			job.Status = StatusFailed
			job.Error = fmt.Sprintf("run exceeded %s", s.timeout)
		case types.IsErrorCode(err, types.ErrCancelled):
			job.Status = StatusCancelled
			job.Error = "cancelled"
		default:
			job.Status = StatusFailed
			job.Error = err.Error()
		}
		logger.Warn("job did not complete", zap.String("status", string(job.Status)), zap.Error(err))
		s.finish(bg, job)
		return err
	}

	data, report, err := s.assembler.Assemble(ctx, plan)
	if err == nil {
		job.ArchiveKey = id + ".zip"
		err = s.blobs.Put(bg, job.ArchiveKey, data)
	}
	if err != nil {
		job.Status = StatusFailed
		job.Error = "archive: " + err.Error()
		logger.Error("job archive failed", zap.Error(err))
		s.finish(bg, job)
		return err
	}

	job.Status = StatusSucceeded
	job.Stage = pipeline.StageDone
	job.Progress = 1
	job.ArchiveSize = int64(len(data))
	logger.Info("job succeeded",
		zap.Int("entries", plan.Len()),
		zap.Int("failures", len(plan.Failures())),
		zap.Int("placeholders", report.Placeholders),
		zap.Int64("archive_bytes", job.ArchiveSize))
	s.finish(bg, job)
	return nil
}

func (s *Service) finish(ctx context.Context, job *Job) {
	s.save(ctx, job)
	s.recorder.RecordJobFinished(string(job.Status))
	s.publish(job, pipeline.Progress{
		Fraction: job.Progress,
		Stage:    job.Stage,
		Label:    string(job.Status),
	})
}

func (s *Service) save(ctx context.Context, job *Job) {
	job.UpdatedAt = s.now()
	if err := s.store.Update(ctx, job); err != nil {
		s.logger.Error("persist job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *Service) publish(job *Job, p pipeline.Progress) {
	s.broker.Publish(s.event(job, p))
}

func (s *Service) event(job *Job, p pipeline.Progress) Event {
	return Event{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: p,
		Error:    job.Error,
		Time:     s.now(),
	}
}
