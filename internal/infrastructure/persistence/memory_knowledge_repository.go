package persistence

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/service"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/pkg/errors"
)

// MemoryKnowledgeRepository 内存实现的知识库仓储（用于开发/测试）
type MemoryKnowledgeRepository struct {
	mu    sync.RWMutex
	items map[string]entity.KnowledgeItem // key: language + "\x00" + title
}

// NewMemoryKnowledgeRepository 创建内存知识库仓储
func NewMemoryKnowledgeRepository() repository.KnowledgeRepository {
	return &MemoryKnowledgeRepository{
		items: make(map[string]entity.KnowledgeItem),
	}
}

// Search 按语言过滤启用条目并按相关度排序
func (r *MemoryKnowledgeRepository) Search(ctx context.Context, query string, language valueobject.Language, limit int) ([]entity.KnowledgeItem, error) {
	r.mu.RLock()
	candidates := make([]entity.KnowledgeItem, 0, len(r.items))
	for _, item := range r.items {
		if item.Active && item.Language == language {
			candidates = append(candidates, item)
		}
	}
	r.mu.RUnlock()

	return service.RankByRelevance(query, candidates, limit), nil
}

// Upsert 按 (language, title) 写入条目
func (r *MemoryKnowledgeRepository) Upsert(ctx context.Context, item entity.KnowledgeItem) error {
	if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Content) == "" || !item.Language.IsSupported() {
		return errors.NewInvalidInputError(entity.ErrInvalidKnowledgeItem.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(item.Language) + "\x00" + item.Title
	if existing, ok := r.items[key]; ok {
		item.ID = existing.ID
	} else if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.UpdatedAt = time.Now().UTC()
	r.items[key] = item
	return nil
}
