package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
)

// ConversationHistoryUseCase reads a session's persisted messages.
type ConversationHistoryUseCase struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	logger        *zap.Logger
}

// NewConversationHistoryUseCase creates the history reader.
func NewConversationHistoryUseCase(conversations repository.ConversationRepository, messages repository.MessageRepository, logger *zap.Logger) *ConversationHistoryUseCase {
	return &ConversationHistoryUseCase{
		conversations: conversations,
		messages:      messages,
		logger:        logger.With(zap.String("component", "conversation-history")),
	}
}

// ListBySession returns the conversation and up to limit messages, oldest first.
// Unlike the chat pipeline, store errors are returned to the caller.
func (uc *ConversationHistoryUseCase) ListBySession(ctx context.Context, sessionID string, limit, offset int) (*entity.Conversation, []*entity.Message, error) {
	conv, err := uc.conversations.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := uc.messages.FindByConversationID(ctx, conv.ID(), limit, offset)
	if err != nil {
		uc.logger.Warn("Failed to list messages",
			zap.String("conversation_id", conv.ID()),
			zap.Error(err),
		)
		return conv, nil, err
	}
	return conv, msgs, nil
}
