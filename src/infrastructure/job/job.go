package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

const TaskTypeIngestion = "ingestion"

// Job is one queued unit of background work, typically an ingestion
// batch. Rows move pending -> running -> completed or failed; Error is
// set only on failure.
type Job struct {
	ID        int64           `json:"id" gorm:"primaryKey"`
	TaskType  string          `json:"task_type" gorm:"not null"`
	Payload   json.RawMessage `json:"payload" gorm:"type:jsonb"`
	Status    JobStatus       `json:"status" gorm:"not null"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// IngestionPayload describes one ingestion job: the uploaded objects to
// pull from storage and the admin who uploaded them.
type IngestionPayload struct {
	UploaderID int64             `json:"uploader_id"`
	Objects    []IngestionObject `json:"objects"`
}

// IngestionObject points at one uploaded file in object storage.
type IngestionObject struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Filename string `json:"filename"`
}

// JobRepository defines the interface for job persistence
type JobRepository interface {
	Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error)
	Get(ctx context.Context, id int64) (*Job, error)
	UpdateStatus(ctx context.Context, id int64, status JobStatus, err *string) error
}
