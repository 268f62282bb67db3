package persistence

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/service"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/sitebot/pkg/errors"
)

// keywordCandidateCap bounds the rows ranked in memory on non-postgres stores.
const keywordCandidateCap = 200

// tsDocument is the searchable text of a knowledge row on postgres.
const tsDocument = "to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(content, '') || ' ' || coalesce(keywords, ''))"

// GormKnowledgeRepository GORM 实现的知识库仓储
// postgres 使用 ts_rank 全文检索，其它数据库按关键词相关度在内存中排序
type GormKnowledgeRepository struct {
	db *gorm.DB
}

// NewGormKnowledgeRepository 创建 GORM 知识库仓储
func NewGormKnowledgeRepository(db *gorm.DB) repository.KnowledgeRepository {
	return &GormKnowledgeRepository{
		db: db,
	}
}

// Search 按语言过滤启用条目并按相关度排序
func (r *GormKnowledgeRepository) Search(ctx context.Context, query string, language valueobject.Language, limit int) ([]entity.KnowledgeItem, error) {
	terms := service.QueryTerms(query)
	if limit <= 0 || len(terms) == 0 {
		return []entity.KnowledgeItem{}, nil
	}

	if r.db.Dialector.Name() == "postgres" {
		return r.searchFullText(ctx, terms, language, limit)
	}
	return r.searchKeywords(ctx, query, terms, language, limit)
}

func (r *GormKnowledgeRepository) searchFullText(ctx context.Context, terms []string, language valueobject.Language, limit int) ([]entity.KnowledgeItem, error) {
	// QueryTerms only yields letters and digits, so the OR-joined query is a valid tsquery.
	tsQuery := strings.Join(terms, " | ")

	var list []models.KnowledgeItemModel
	err := r.db.WithContext(ctx).
		Where("language = ? AND active = ?", string(language), true).
		Where(tsDocument+" @@ to_tsquery('simple', ?)", tsQuery).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "ts_rank(" + tsDocument + ", to_tsquery('simple', ?)) DESC, title ASC",
			Vars:               []interface{}{tsQuery},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, wrapDBError("knowledge full-text search failed", err)
	}
	return r.toEntities(list), nil
}

func (r *GormKnowledgeRepository) searchKeywords(ctx context.Context, query string, terms []string, language valueobject.Language, limit int) ([]entity.KnowledgeItem, error) {
	tx := r.db.WithContext(ctx).
		Where("language = ? AND active = ?", string(language), true)

	match := r.db.Where("1 = 0")
	for _, term := range terms {
		pattern := "%" + term + "%"
		match = match.Or("LOWER(title) LIKE ? OR LOWER(content) LIKE ? OR LOWER(keywords) LIKE ?", pattern, pattern, pattern)
	}

	var list []models.KnowledgeItemModel
	if err := tx.Where(match).Limit(keywordCandidateCap).Find(&list).Error; err != nil {
		return nil, wrapDBError("knowledge keyword search failed", err)
	}
	return service.RankByRelevance(query, r.toEntities(list), limit), nil
}

// Upsert 按 (language, title) 写入条目
func (r *GormKnowledgeRepository) Upsert(ctx context.Context, item entity.KnowledgeItem) error {
	if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Content) == "" || !item.Language.IsSupported() {
		return domainErrors.NewInvalidInputError(entity.ErrInvalidKnowledgeItem.Error())
	}

	model, err := r.toModel(item)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "language"}, {Name: "title"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "category", "keywords", "confidence", "active", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return wrapDBError("failed to upsert knowledge item", err)
	}
	return nil
}

// 转换方法

func (r *GormKnowledgeRepository) toModel(item entity.KnowledgeItem) (*models.KnowledgeItemModel, error) {
	keywords, err := json.Marshal(item.Keywords)
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to marshal keywords: " + err.Error())
	}
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &models.KnowledgeItemModel{
		ID:         id,
		Title:      item.Title,
		Content:    item.Content,
		Category:   item.Category,
		Language:   string(item.Language),
		Keywords:   string(keywords),
		Confidence: item.Confidence,
		Active:     item.Active,
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

func (r *GormKnowledgeRepository) toEntities(list []models.KnowledgeItemModel) []entity.KnowledgeItem {
	items := make([]entity.KnowledgeItem, 0, len(list))
	for _, m := range list {
		var keywords []string
		if m.Keywords != "" {
			if err := json.Unmarshal([]byte(m.Keywords), &keywords); err != nil {
				keywords = nil
			}
		}
		items = append(items, entity.KnowledgeItem{
			ID:         m.ID,
			Title:      m.Title,
			Content:    m.Content,
			Category:   m.Category,
			Language:   valueobject.ParseLanguage(m.Language),
			Keywords:   keywords,
			Confidence: m.Confidence,
			Active:     m.Active,
			UpdatedAt:  m.UpdatedAt,
		})
	}
	return items
}
