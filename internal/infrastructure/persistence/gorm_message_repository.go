package persistence

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/sitebot/pkg/errors"
)

// GormMessageRepository GORM 实现的消息仓储
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GORM 消息仓储
func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &GormMessageRepository{
		db: db,
	}
}

// Append 追加消息
func (r *GormMessageRepository) Append(ctx context.Context, message *entity.Message) error {
	model, err := r.toModel(message)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return wrapDBError("failed to save message", err)
	}
	return nil
}

// FindByConversationID 根据会话ID查找消息列表
func (r *GormMessageRepository) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error) {
	var list []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Order("id asc").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	if err != nil {
		return nil, wrapDBError("failed to find messages", err)
	}

	return r.toEntities(list), nil
}

// FindRecent 返回最近 limit 条消息（按时间升序）
func (r *GormMessageRepository) FindRecent(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		return []*entity.Message{}, nil
	}

	var list []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, wrapDBError("failed to find recent messages", err)
	}

	// 倒序查询后翻转为时间升序
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return r.toEntities(list), nil
}

// Count 统计会话中的消息数量
func (r *GormMessageRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	if err != nil {
		return 0, wrapDBError("failed to count messages", err)
	}
	return count, nil
}

// 转换方法

func (r *GormMessageRepository) toModel(message *entity.Message) (*models.MessageModel, error) {
	// 序列化元数据
	metadataBytes, err := json.Marshal(message.Metadata())
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to marshal metadata: " + err.Error())
	}

	return &models.MessageModel{
		ID:             message.ID(),
		ConversationID: message.ConversationID(),
		Content:        message.Content().Text(),
		MessageType:    string(message.Content().MessageType()),
		Sender:         string(message.Sender()),
		Language:       string(message.Language()),
		Confidence:     message.Confidence(),
		Metadata:       string(metadataBytes),
		CreatedAt:      message.Timestamp().UTC(),
	}, nil
}

func (r *GormMessageRepository) toEntities(list []models.MessageModel) []*entity.Message {
	messages := make([]*entity.Message, 0, len(list))
	for i := range list {
		messages = append(messages, r.toEntity(&list[i]))
	}
	return messages
}

func (r *GormMessageRepository) toEntity(model *models.MessageModel) *entity.Message {
	content := valueobject.NewMessageContent(model.Content, valueobject.ParseMessageType(model.MessageType))

	var metadata map[string]interface{}
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &metadata); err != nil {
			// 元数据解析失败不影响消息读取
			metadata = make(map[string]interface{})
		}
	}

	return entity.ReconstructMessage(
		model.ID,
		model.ConversationID,
		content,
		valueobject.Sender(model.Sender),
		valueobject.ParseLanguage(model.Language),
		model.Confidence,
		model.CreatedAt,
		metadata,
	)
}
