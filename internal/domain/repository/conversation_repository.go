package repository

import (
	"context"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// ConversationRepository 会话仓储接口
type ConversationRepository interface {
	// GetOrCreate 按 sessionID 查找或创建会话
	// 对同一 sessionID 的并发调用必须只产生一个会话
	GetOrCreate(ctx context.Context, sessionID string, language valueobject.Language) (*entity.Conversation, error)

	// FindBySessionID 按 sessionID 查找会话
	FindBySessionID(ctx context.Context, sessionID string) (*entity.Conversation, error)

	// Touch 更新会话最近活动时间
	Touch(ctx context.Context, conversationID string) error
}
