package conversation

import (
	"context"
	"fmt"
	"time"

	"legisbot/src/core/rag"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one turn in a conversation.
type Message struct {
	ID        int64          `json:"id"`
	HistoryID int64          `json:"history_id"`
	Sender    Sender         `json:"sender"`
	Content   string         `json:"content"`
	Sources   []rag.Citation `json:"sources,omitempty"`
	CreatedAt time.Time      `json:"timestamp"`
}

// History is a sequence of messages tied to one user. Messages are
// strictly ordered by creation: insertion order, id order and timestamp
// order coincide.
type History struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// Store is the persistence contract for conversations. GetHistory returns
// (nil, nil) when the id is unknown.
type Store interface {
	CreateHistory(ctx context.Context, userID int64) (*History, error)
	GetHistory(ctx context.Context, id int64) (*History, error)
	AppendMessage(ctx context.Context, msg *Message) (*Message, error)
	ListHistories(ctx context.Context, userID int64) ([]History, error)
}

// Ledger is the system-of-record for chat turns. It exclusively owns
// Conversation and Message creation.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// GetOrCreate resolves an existing conversation or starts a new one.
// historyID zero means "start a new conversation". A conversation that
// does not exist or belongs to a different user is reported as
// rag.ErrNotFound; it is never silently redirected or re-created, so an
// authorization bug cannot masquerade as "no data".
func (l *Ledger) GetOrCreate(ctx context.Context, userID, historyID int64) (*History, error) {
	if historyID == 0 {
		history, err := l.store.CreateHistory(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return history, nil
	}

	history, err := l.store.GetHistory(ctx, historyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if history == nil || history.UserID != userID {
		return nil, fmt.Errorf("conversation %d: %w", historyID, rag.ErrNotFound)
	}

	return history, nil
}

// Append atomically adds one message to a conversation. On persistence
// failure nothing is half-written and the error is reported to the
// caller; it is the caller's decision whether the failure is fatal for
// its own response.
func (l *Ledger) Append(ctx context.Context, historyID int64, sender Sender, content string, sources []rag.Citation) (*Message, error) {
	msg := &Message{
		HistoryID: historyID,
		Sender:    sender,
		Content:   content,
		Sources:   sources,
	}

	saved, err := l.store.AppendMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to append %s message: %w", sender, err)
	}

	return saved, nil
}

// ListForUser returns the user's conversations oldest-created-first, each
// with its ordered messages.
func (l *Ledger) ListForUser(ctx context.Context, userID int64) ([]History, error) {
	histories, err := l.store.ListHistories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return histories, nil
}
