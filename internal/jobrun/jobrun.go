package jobrun

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus tracks a batch job run.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusSkipped   JobStatus = "skipped"
)

// JobRun is the persisted record of one batch pass, consumed by the admin
// observability surface.
type JobRun struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	JobType     string            `gorm:"type:text;not null;index"`
	Status      JobStatus         `gorm:"type:text;not null"`
	StartedAt   time.Time         `gorm:"not null"`
	CompletedAt *time.Time        `gorm:"column:completed_at"`
	Processed   int               `gorm:"not null;default:0"`
	Total       int               `gorm:"not null;default:0"`
	Summary     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	Error       *string           `gorm:"type:text"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (JobRun) TableName() string { return "job_runs" }

// Store persists job-run records.
type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewStore(db *gorm.DB, genID *snowflake.Node) *Store {
	return &Store{db: db, genID: genID}
}

// Start inserts a running record for a new pass.
func (s *Store) Start(ctx context.Context, jobType string, total int, startedAt time.Time) (*JobRun, error) {
	run := &JobRun{
		ID:        s.genID.Generate(),
		JobType:   jobType,
		Status:    JobStatusRunning,
		StartedAt: startedAt.UTC(),
		Total:     total,
		Summary:   datatypes.JSONMap{},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateProgress records how many plans the pass has processed so far.
func (s *Store) UpdateProgress(ctx context.Context, id snowflake.ID, processed int) error {
	return s.db.WithContext(ctx).
		Model(&JobRun{}).
		Where("id = ?", id).
		Update("processed", processed).Error
}

// Complete finalizes the record with its summary. An empty errMsg completes
// the run; otherwise the run is marked failed.
func (s *Store) Complete(ctx context.Context, id snowflake.ID, processed int, summary map[string]any, errMsg string) error {
	status := JobStatusCompleted
	var errValue *string
	if errMsg != "" {
		status = JobStatusFailed
		errValue = &errMsg
	}
	now := time.Now().UTC()

	payload := datatypes.JSONMap{}
	for key, value := range summary {
		payload[key] = value
	}
	return s.db.WithContext(ctx).
		Model(&JobRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"processed":    processed,
			"summary":      payload,
			"error":        errValue,
			"completed_at": &now,
		}).Error
}

// List returns the most recent runs for a job type, newest first.
func (s *Store) List(ctx context.Context, jobType string, limit int) ([]JobRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []JobRun
	query := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if jobType != "" {
		query = query.Where("job_type = ?", jobType)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

var Module = fx.Module("jobrun",
	fx.Provide(NewStore),
)
