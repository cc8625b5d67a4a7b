package historyctrl

import (
	"context"
	"fmt"

	"legisbot/src/core/conversation"
)

// DailyUsage is one day's count of user questions.
type DailyUsage struct {
	Day   string `json:"date"`
	Count int64  `json:"count"`
}

// QueryCount is one question text with how often users asked it.
type QueryCount struct {
	Content string `json:"query"`
	Count   int64  `json:"count"`
}

// UsageByDay returns the number of user messages per calendar day, most
// recent day first, capped at the last 30 active days.
func (s *HistoryService) UsageByDay(ctx context.Context) ([]DailyUsage, error) {
	var rows []DailyUsage
	result := s.db.WithContext(ctx).
		Model(&Message{}).
		Select("to_char(created_at, 'YYYY-MM-DD') AS day, count(*) AS count").
		Where("sender = ?", string(conversation.SenderUser)).
		Group("day").
		Order("day DESC").
		Limit(30).
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to aggregate daily usage: %v", result.Error)
	}
	return rows, nil
}

// TopQueries returns the most frequently asked user questions, ordered
// by count descending.
func (s *HistoryService) TopQueries(ctx context.Context, limit int) ([]QueryCount, error) {
	var rows []QueryCount
	result := s.db.WithContext(ctx).
		Model(&Message{}).
		Select("content, count(*) AS count").
		Where("sender = ?", string(conversation.SenderUser)).
		Group("content").
		Order("count DESC").
		Limit(limit).
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to aggregate top queries: %v", result.Error)
	}
	return rows, nil
}
