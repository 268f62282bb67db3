package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/sitebot/pkg/errors"
)

// GormConversationRepository GORM 实现的会话仓储
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository 创建 GORM 会话仓储
func NewGormConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &GormConversationRepository{
		db: db,
	}
}

// GetOrCreate 查找或创建会话
// 依赖 session_id 唯一索引 + ON CONFLICT DO NOTHING，并发首条消息只会产生一条记录
func (r *GormConversationRepository) GetOrCreate(ctx context.Context, sessionID string, language valueobject.Language) (*entity.Conversation, error) {
	if sessionID == "" {
		return nil, domainErrors.NewInvalidInputError("session id is required")
	}
	if !language.IsSupported() {
		language = valueobject.DefaultLanguage
	}

	candidate := models.ConversationModel{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Language:  string(language),
		Context:   "{}",
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(&candidate).Error
	if err != nil {
		return nil, wrapDBError("failed to create conversation", err)
	}

	var model models.ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "session_id = ?", sessionID).Error; err != nil {
		return nil, wrapDBError("failed to load conversation", err)
	}
	return r.toEntity(&model), nil
}

// FindBySessionID 根据 sessionID 查找会话
func (r *GormConversationRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.Conversation, error) {
	var model models.ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "session_id = ?", sessionID).Error; err != nil {
		return nil, wrapDBError("conversation not found", err)
	}
	return r.toEntity(&model), nil
}

// Touch 更新会话最近活动时间
func (r *GormConversationRepository) Touch(ctx context.Context, conversationID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ConversationModel{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now().UTC())
	if result.Error != nil {
		return wrapDBError("failed to touch conversation", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("conversation not found")
	}
	return nil
}

func (r *GormConversationRepository) toEntity(model *models.ConversationModel) *entity.Conversation {
	var ctxBag map[string]interface{}
	if model.Context != "" {
		if err := json.Unmarshal([]byte(model.Context), &ctxBag); err != nil {
			ctxBag = nil
		}
	}
	return entity.ReconstructConversation(
		model.ID,
		model.SessionID,
		valueobject.ParseLanguage(model.Language),
		ctxBag,
		model.CreatedAt,
		model.UpdatedAt,
	)
}
