package job

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"legisbot/src/core/ingest"
	"legisbot/src/infrastructure/log"
	"legisbot/src/storage/minioctrl"
)

// IngestionTask pulls uploaded documents out of object storage and runs
// them through the ingestion pipeline.
type IngestionTask struct {
	minio    *minioctrl.MinioService
	pipeline *ingest.Pipeline
}

func NewIngestionTask(minio *minioctrl.MinioService, pipeline *ingest.Pipeline) *IngestionTask {
	return &IngestionTask{
		minio:    minio,
		pipeline: pipeline,
	}
}

func (t *IngestionTask) HandleIngestionTask(ctx context.Context, payload json.RawMessage) error {
	var p IngestionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal ingestion payload: %w", err)
	}

	if len(p.Objects) == 0 {
		return nil
	}

	files := make([]ingest.File, 0, len(p.Objects))
	for _, obj := range p.Objects {
		data, err := t.minio.GetObject(ctx, obj.Bucket, obj.Key)
		if err != nil {
			return fmt.Errorf("failed to fetch object %s/%s: %w", obj.Bucket, obj.Key, err)
		}
		files = append(files, ingest.File{
			Name:    obj.Filename,
			Content: bytes.NewReader(data),
		})
	}

	ingested, err := t.pipeline.Ingest(ctx, files, p.UploaderID)
	if err != nil {
		return fmt.Errorf("failed to ingest documents: %w", err)
	}

	// The raw uploads only exist to carry bytes from the API to this
	// worker; once the batch went through they are no longer needed.
	for _, obj := range p.Objects {
		if err := t.minio.DeleteObject(ctx, obj.Bucket, obj.Key); err != nil {
			log.Error(err, "failed to delete ingested upload", "bucket", obj.Bucket, "key", obj.Key)
		}
	}

	log.Info("ingestion job finished", "uploaded", len(p.Objects), "ingested", len(ingested))

	return nil
}
