package repository

import (
	"context"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
)

// MessageRepository 消息仓储接口（只追加）
type MessageRepository interface {
	// Append 追加消息
	Append(ctx context.Context, message *entity.Message) error

	// FindByConversationID 按创建时间升序返回会话消息
	FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error)

	// FindRecent 返回会话最近的 limit 条消息（按时间升序）
	FindRecent(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error)

	// Count 统计会话中的消息数量
	Count(ctx context.Context, conversationID string) (int64, error)
}
