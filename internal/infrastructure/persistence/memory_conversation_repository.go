package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/pkg/errors"
)

// MemoryConversationRepository 内存实现的会话仓储（用于开发/测试）
type MemoryConversationRepository struct {
	mu        sync.Mutex
	bySession map[string]*entity.Conversation
	byID      map[string]*entity.Conversation
}

// NewMemoryConversationRepository 创建内存会话仓储
func NewMemoryConversationRepository() repository.ConversationRepository {
	return &MemoryConversationRepository{
		bySession: make(map[string]*entity.Conversation),
		byID:      make(map[string]*entity.Conversation),
	}
}

// GetOrCreate 查找或创建会话，整个过程持锁保证同一 sessionID 只创建一次
func (r *MemoryConversationRepository) GetOrCreate(ctx context.Context, sessionID string, language valueobject.Language) (*entity.Conversation, error) {
	if sessionID == "" {
		return nil, errors.NewInvalidInputError("session id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewTimeoutError("get or create cancelled", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conv, ok := r.bySession[sessionID]; ok {
		return conv, nil
	}

	conv, err := entity.NewConversation(uuid.NewString(), sessionID, language)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	r.bySession[sessionID] = conv
	r.byID[conv.ID()] = conv
	return conv, nil
}

// FindBySessionID 根据 sessionID 查找会话
func (r *MemoryConversationRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.bySession[sessionID]
	if !ok {
		return nil, errors.NewNotFoundError("conversation not found")
	}
	return conv, nil
}

// Touch 更新会话最近活动时间
func (r *MemoryConversationRepository) Touch(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.byID[conversationID]
	if !ok {
		return errors.NewNotFoundError("conversation not found")
	}
	conv.Touch(time.Now())
	return nil
}
