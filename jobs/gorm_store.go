package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/assetflow/pipeline"
)

// jobRecord maps a Job onto the plan_jobs table created by internal/migration.
type jobRecord struct {
	ID          string    `gorm:"column:id;primaryKey;size:64"`
	Status      string    `gorm:"column:status;size:32;not null;index:idx_plan_jobs_status"`
	Stage       string    `gorm:"column:stage;size:32;not null"`
	Progress    int       `gorm:"column:progress;not null"`
	Concept     string    `gorm:"column:concept;not null"`
	Request     string    `gorm:"column:request;not null"`
	Results     *string   `gorm:"column:results"`
	Error       string    `gorm:"column:error;not null"`
	ArchiveKey  string    `gorm:"column:archive_key;size:255;not null"`
	ArchiveSize int64     `gorm:"column:archive_size;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;index:idx_plan_jobs_updated_at"`
}

func (jobRecord) TableName() string { return "plan_jobs" }

func toRecord(j *Job) (*jobRecord, error) {
	req, err := json.Marshal(j.Request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	rec := &jobRecord{
		ID:          j.ID,
		Status:      string(j.Status),
		Stage:       string(j.Stage),
		Progress:    int(math.Round(j.Progress * 100)),
		Concept:     j.Concept,
		Request:     string(req),
		Error:       j.Error,
		ArchiveKey:  j.ArchiveKey,
		ArchiveSize: j.ArchiveSize,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.Results != nil {
		res, err := json.Marshal(j.Results)
		if err != nil {
			return nil, fmt.Errorf("encode results: %w", err)
		}
		s := string(res)
		rec.Results = &s
	}
	return rec, nil
}

func (r *jobRecord) toJob() (*Job, error) {
	j := &Job{
		ID:          r.ID,
		Status:      Status(r.Status),
		Stage:       pipeline.Stage(r.Stage),
		Progress:    float64(r.Progress) / 100,
		Concept:     r.Concept,
		Error:       r.Error,
		ArchiveKey:  r.ArchiveKey,
		ArchiveSize: r.ArchiveSize,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Request), &j.Request); err != nil {
		return nil, fmt.Errorf("decode request of job %s: %w", r.ID, err)
	}
	if r.Results != nil && *r.Results != "" {
		if err := json.Unmarshal([]byte(*r.Results), &j.Results); err != nil {
			return nil, fmt.Errorf("decode results of job %s: %w", r.ID, err)
		}
	}
	return j, nil
}

// GormStore persists jobs through gorm. Progress is stored as a whole percentage.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm handle. The schema is managed by internal/migration.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, job *Job) error {
	rec, err := toRecord(job)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrExists
		}
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Job, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("job", id)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return rec.toJob()
}

func (s *GormStore) Update(ctx context.Context, job *Job) error {
	rec, err := toRecord(job)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Model(&jobRecord{}).
		Where("id = ?", job.ID).
		Select("status", "stage", "progress", "results", "error", "archive_key", "archive_size", "updated_at").
		Updates(rec)
	if res.Error != nil {
		return fmt.Errorf("update job %s: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("job", job.ID)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, limit int) ([]*Job, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []jobRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return toJobs(recs)
}

func (s *GormStore) Recoverable(ctx context.Context) ([]*Job, error) {
	var recs []jobRecord
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(StatusQueued), string(StatusRunning)}).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list recoverable jobs: %w", err)
	}
	return toJobs(recs)
}

func toJobs(recs []jobRecord) ([]*Job, error) {
	out := make([]*Job, 0, len(recs))
	for i := range recs {
		j, err := recs[i].toJob()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}
