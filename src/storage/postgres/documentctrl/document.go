package documentctrl

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Document is one successfully ingested source file. Rows are immutable
// once created; deletion is out of scope for this service.
type Document struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Filename   string    `gorm:"not null" json:"filename"`
	AdminID    int64     `gorm:"not null;column:admin_id" json:"admin_id"`
	UploadDate time.Time `gorm:"autoCreateTime;column:upload_date" json:"upload_date"`
}

func (Document) TableName() string {
	return "documents"
}

type DocumentService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	node, err := snowflake.NewNode(1) // Node number 1 for documents
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &DocumentService{
		db:        db,
		snowflake: node,
	}, nil
}

// RecordDocuments creates one Document row per filename in a single
// transaction. Called by the ingestion pipeline only after the fragment
// batch was indexed, so a committed row always has indexed fragments
// behind it.
func (s *DocumentService) RecordDocuments(ctx context.Context, filenames []string, uploaderID int64) error {
	if len(filenames) == 0 {
		return nil
	}

	docs := make([]Document, len(filenames))
	for i, filename := range filenames {
		docs[i] = Document{
			ID:       s.snowflake.Generate().Int64(),
			Filename: filename,
			AdminID:  uploaderID,
		}
	}

	result := s.db.WithContext(ctx).Create(&docs)
	if result.Error != nil {
		return fmt.Errorf("failed to create document rows: %v", result.Error)
	}

	return nil
}

// List returns a paginated list of ingested documents, newest first.
func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]Document, error) {
	var docs []Document

	result := s.db.WithContext(ctx).
		Order("upload_date DESC").
		Limit(limit).
		Offset(offset).
		Find(&docs)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list documents: %v", result.Error)
	}

	return docs, nil
}

// CountByFilename reports how many Document rows carry the given name.
func (s *DocumentService) CountByFilename(ctx context.Context, filename string) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&Document{}).Where("filename = ?", filename).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count documents: %v", result.Error)
	}
	return count, nil
}
