package repository

import (
	"context"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// KnowledgeRepository 知识库仓储接口
type KnowledgeRepository interface {
	// Search 按语言过滤启用条目，按相关度降序返回至多 limit 条
	Search(ctx context.Context, query string, language valueobject.Language, limit int) ([]entity.KnowledgeItem, error)

	// Upsert 按 (language, title) 写入条目，供运维导入使用
	Upsert(ctx context.Context, item entity.KnowledgeItem) error
}
