package historyctrl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"legisbot/src/core/conversation"
	"legisbot/src/core/rag"
	"legisbot/src/infrastructure/log"
)

// ChatHistory is the relational shape of one conversation.
type ChatHistory struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"not null;index;column:user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	Messages  []Message `gorm:"foreignKey:HistoryID"`
}

func (ChatHistory) TableName() string {
	return "chat_histories"
}

// Message is the relational shape of one turn. Citations are stored as a
// JSON column; only the fixed citation fields are ever read back.
type Message struct {
	ID        int64          `gorm:"primaryKey"`
	HistoryID int64          `gorm:"not null;index;column:history_id"`
	Sender    string         `gorm:"not null"`
	Content   string         `gorm:"not null"`
	Sources   datatypes.JSON `gorm:"column:sources"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (Message) TableName() string {
	return "messages"
}

// HistoryService implements conversation.Store on PostgreSQL. Snowflake
// ids are time-ordered, so id order matches insertion and timestamp
// order within a conversation.
type HistoryService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewHistoryService(db *gorm.DB) (*HistoryService, error) {
	node, err := snowflake.NewNode(2) // Node number 2 for conversations
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &HistoryService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *HistoryService) CreateHistory(ctx context.Context, userID int64) (*conversation.History, error) {
	history := &ChatHistory{
		ID:     s.snowflake.Generate().Int64(),
		UserID: userID,
	}

	result := s.db.WithContext(ctx).Create(history)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create chat history: %v", result.Error)
	}

	return toHistory(history, nil), nil
}

func (s *HistoryService) GetHistory(ctx context.Context, id int64) (*conversation.History, error) {
	var history ChatHistory
	result := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.id ASC")
		}).
		First(&history, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chat history: %v", result.Error)
	}

	return toHistory(&history, history.Messages), nil
}

// AppendMessage writes one message inside a transaction; a failure rolls
// back fully so no half-written turn is ever visible.
func (s *HistoryService) AppendMessage(ctx context.Context, msg *conversation.Message) (*conversation.Message, error) {
	sources, err := marshalSources(msg.Sources)
	if err != nil {
		return nil, err
	}

	row := &Message{
		ID:        s.snowflake.Generate().Int64(),
		HistoryID: msg.HistoryID,
		Sender:    string(msg.Sender),
		Content:   msg.Content,
		Sources:   sources,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to create message: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toMessage(row)
}

func (s *HistoryService) ListHistories(ctx context.Context, userID int64) ([]conversation.History, error) {
	var rows []ChatHistory
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.id ASC")
		}).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list chat histories: %v", result.Error)
	}

	histories := make([]conversation.History, 0, len(rows))
	for i := range rows {
		histories = append(histories, *toHistory(&rows[i], rows[i].Messages))
	}

	return histories, nil
}

func marshalSources(citations []rag.Citation) (datatypes.JSON, error) {
	if len(citations) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(citations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal citations: %v", err)
	}
	return datatypes.JSON(data), nil
}

func toMessage(row *Message) (*conversation.Message, error) {
	msg := &conversation.Message{
		ID:        row.ID,
		HistoryID: row.HistoryID,
		Sender:    conversation.Sender(row.Sender),
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}

	if len(row.Sources) > 0 {
		if err := json.Unmarshal(row.Sources, &msg.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal citations: %v", err)
		}
	}

	return msg, nil
}

func toHistory(row *ChatHistory, rows []Message) *conversation.History {
	history := &conversation.History{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
		Messages:  make([]conversation.Message, 0, len(rows)),
	}

	for i := range rows {
		msg, err := toMessage(&rows[i])
		if err != nil {
			// A malformed citation blob should not hide the whole
			// conversation; keep the turn without its sources.
			log.Error(err, "dropping malformed citations", "message_id", rows[i].ID, "history_id", rows[i].HistoryID)
			msg = &conversation.Message{
				ID:        rows[i].ID,
				HistoryID: rows[i].HistoryID,
				Sender:    conversation.Sender(rows[i].Sender),
				Content:   rows[i].Content,
				CreatedAt: rows[i].CreatedAt,
			}
		}
		history.Messages = append(history.Messages, *msg)
	}

	return history
}

var _ conversation.Store = (*HistoryService)(nil)
