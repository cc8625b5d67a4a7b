package chat

import (
	"context"
	"fmt"
	"time"

	"legisbot/src/core/conversation"
	"legisbot/src/core/rag"
	"legisbot/src/core/semanticindex"
	"legisbot/src/infrastructure/log"
)

// Generator is a ready generation-model handle.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Gateway hands out model capabilities, returning nil while the backing
// service is unreachable.
type Gateway interface {
	Generation(ctx context.Context) Generator
	Retrieval(ctx context.Context) rag.Retriever
}

// Answer is the outcome of one query turn.
type Answer struct {
	Text      string         `json:"answer"`
	Citations []rag.Citation `json:"sources"`
	HistoryID int64          `json:"history_id"`
}

// Service assembles grounded prompts from retrieved fragments, invokes
// the generation model, and records both turns in the conversation
// ledger.
type Service struct {
	gateway Gateway
	ledger  *conversation.Ledger

	topK    int
	timeout time.Duration
}

func NewService(gateway Gateway, ledger *conversation.Ledger, topK int, timeout time.Duration) *Service {
	if topK <= 0 {
		topK = semanticindex.DefaultTopK
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Service{
		gateway: gateway,
		ledger:  ledger,
		topK:    topK,
		timeout: timeout,
	}
}

// Answer runs one query turn for the given user. The user's message is
// recorded before generation is attempted, and citations are retrieved
// independently of the generation call, so a generation outage still
// yields citations and a complete conversation record. A failed
// generation returns rag.ErrServiceUnavailable together with whatever
// citations were retrieved; it is never retried within the request.
func (s *Service) Answer(ctx context.Context, userID int64, question string, historyID int64) (*Answer, error) {
	if question == "" {
		return nil, fmt.Errorf("empty question: %w", rag.ErrBadInput)
	}

	history, err := s.ledger.GetOrCreate(ctx, userID, historyID)
	if err != nil {
		return nil, err
	}

	answer := &Answer{HistoryID: history.ID, Citations: []rag.Citation{}}

	// The question is part of the record even if everything after this
	// point fails. A ledger failure here must not take down the request.
	if _, err := s.ledger.Append(ctx, history.ID, conversation.SenderUser, question, nil); err != nil {
		log.Error(err, "failed to record user message, continuing", "history_id", history.ID)
	}

	fragments := s.retrieve(ctx, question)
	answer.Citations = buildCitations(fragments)

	generator := s.gateway.Generation(ctx)
	if generator == nil {
		s.recordBotTurn(ctx, history.ID, UnavailableNotice, answer.Citations)
		return answer, fmt.Errorf("generation model unreachable: %w", rag.ErrServiceUnavailable)
	}

	system, prompt, err := buildPrompt(formatContext(fragments), question)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := generator.Generate(genCtx, system, prompt)
	if err != nil {
		// No automatic retry: hammering a possibly-overloaded generation
		// service cascades load. Surface the failure to the caller.
		log.Error(err, "generation failed", "history_id", history.ID)
		s.recordBotTurn(ctx, history.ID, UnavailableNotice, answer.Citations)
		return answer, fmt.Errorf("generation failed: %w", rag.ErrServiceUnavailable)
	}

	answer.Text = text
	s.recordBotTurn(ctx, history.ID, text, answer.Citations)

	return answer, nil
}

// retrieve fetches the top-k fragments for citation purposes. Retrieval
// degrading to no context is a handled state, not a failure.
func (s *Service) retrieve(ctx context.Context, question string) []rag.ScoredFragment {
	retriever := s.gateway.Retrieval(ctx)
	if retriever == nil {
		log.Info("retriever unavailable, answering without context")
		return nil
	}

	fragments, err := retriever.GetRelevantDocuments(ctx, question, s.topK)
	if err != nil {
		log.Error(err, "retrieval failed, answering without context")
		return nil
	}
	return fragments
}

// recordBotTurn appends the bot message. Audit completeness yields to
// user-facing availability: a write failure is logged, never propagated.
func (s *Service) recordBotTurn(ctx context.Context, historyID int64, content string, citations []rag.Citation) {
	if _, err := s.ledger.Append(ctx, historyID, conversation.SenderBot, content, citations); err != nil {
		log.Error(err, "failed to record bot message", "history_id", historyID)
	}
}
