package persistence

import (
	"context"
	"sync"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/pkg/errors"
)

// MemoryMessageRepository 内存实现的消息仓储（用于开发/测试）
type MemoryMessageRepository struct {
	mu sync.RWMutex
	// 会话ID到消息列表的映射，按追加顺序保存
	convMessages map[string][]*entity.Message
}

// NewMemoryMessageRepository 创建内存消息仓储
func NewMemoryMessageRepository() repository.MessageRepository {
	return &MemoryMessageRepository{
		convMessages: make(map[string][]*entity.Message),
	}
}

// Append 追加消息
func (r *MemoryMessageRepository) Append(ctx context.Context, message *entity.Message) error {
	if message == nil {
		return errors.NewInvalidInputError("message is required")
	}
	if err := ctx.Err(); err != nil {
		return errors.NewTimeoutError("append cancelled", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	convID := message.ConversationID()
	r.convMessages[convID] = append(r.convMessages[convID], message)
	return nil
}

// FindByConversationID 根据会话ID查找消息列表
func (r *MemoryMessageRepository) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.convMessages[conversationID]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []*entity.Message{}, nil
	}

	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	result := make([]*entity.Message, end-offset)
	copy(result, list[offset:end])
	return result, nil
}

// FindRecent 返回最近 limit 条消息（按时间升序）
func (r *MemoryMessageRepository) FindRecent(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		return []*entity.Message{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.convMessages[conversationID]
	start := 0
	if len(list) > limit {
		start = len(list) - limit
	}

	result := make([]*entity.Message, len(list)-start)
	copy(result, list[start:])
	return result, nil
}

// Count 统计会话中的消息数量
func (r *MemoryMessageRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.convMessages[conversationID])), nil
}
