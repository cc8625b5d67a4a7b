package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PostgresJobRepository persists jobs in the shared relational store.
// Row ids are snowflakes, so job id order matches enqueue order across
// restarts.
type PostgresJobRepository struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewPostgresJobRepository(db *gorm.DB) (*PostgresJobRepository, error) {
	node, err := snowflake.NewNode(4) // Node number 4 for jobs
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &PostgresJobRepository{
		db:        db,
		snowflake: node,
	}, nil
}

func (r *PostgresJobRepository) Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	job := &Job{
		ID:       r.snowflake.Generate().Int64(),
		TaskType: taskType,
		Payload:  payload,
		Status:   JobStatusPending,
	}

	result := r.db.WithContext(ctx).Create(job)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create job row: %v", result.Error)
	}

	return job, nil
}

func (r *PostgresJobRepository) Get(ctx context.Context, id int64) (*Job, error) {
	var job Job
	result := r.db.WithContext(ctx).First(&job, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job row: %v", result.Error)
	}

	return &job, nil
}

// UpdateStatus records a lifecycle transition. The error column is
// overwritten on every transition: set when the job failed, cleared
// again when a redelivered message succeeds.
func (r *PostgresJobRepository) UpdateStatus(ctx context.Context, id int64, status JobStatus, errMsg *string) error {
	result := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": status,
		"error":  errMsg,
	})

	if result.Error != nil {
		return fmt.Errorf("failed to update job row: %v", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("job %d not found", id)
	}

	return nil
}

var _ JobRepository = (*PostgresJobRepository)(nil)
