package entity

import (
	"time"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// Conversation 会话聚合根
// 以调用方提供的 sessionID 唯一标识，语言在创建时确定
type Conversation struct {
	id        string
	sessionID string
	language  valueobject.Language
	context   map[string]interface{}
	persisted bool
	createdAt time.Time
	updatedAt time.Time
}

// NewConversation 创建新会话（工厂方法）
func NewConversation(id, sessionID string, language valueobject.Language) (*Conversation, error) {
	if id == "" {
		return nil, ErrInvalidConversationID
	}
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	if !language.IsSupported() {
		language = valueobject.DefaultLanguage
	}

	now := time.Now()
	return &Conversation{
		id:        id,
		sessionID: sessionID,
		language:  language,
		context:   make(map[string]interface{}),
		persisted: true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// NewLocalConversation 创建未持久化的临时会话（存储不可用时的降级模式）
func NewLocalConversation(id, sessionID string, language valueobject.Language) *Conversation {
	if !language.IsSupported() {
		language = valueobject.DefaultLanguage
	}
	now := time.Now()
	return &Conversation{
		id:        id,
		sessionID: sessionID,
		language:  language,
		context:   make(map[string]interface{}),
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructConversation 重建会话（用于从持久化层恢复）
func ReconstructConversation(
	id, sessionID string,
	language valueobject.Language,
	context map[string]interface{},
	createdAt, updatedAt time.Time,
) *Conversation {
	if context == nil {
		context = make(map[string]interface{})
	}
	return &Conversation{
		id:        id,
		sessionID: sessionID,
		language:  language,
		context:   context,
		persisted: true,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID 返回会话ID
func (c *Conversation) ID() string {
	return c.id
}

// SessionID 返回会话标识
func (c *Conversation) SessionID() string {
	return c.sessionID
}

// Language 返回会话语言
func (c *Conversation) Language() valueobject.Language {
	return c.language
}

// IsPersisted 是否已写入存储
func (c *Conversation) IsPersisted() bool {
	return c.persisted
}

// CreatedAt 返回创建时间
func (c *Conversation) CreatedAt() time.Time {
	return c.createdAt
}

// UpdatedAt 返回更新时间
func (c *Conversation) UpdatedAt() time.Time {
	return c.updatedAt
}

// Touch 记录最近一次活动
func (c *Conversation) Touch(at time.Time) {
	if at.After(c.updatedAt) {
		c.updatedAt = at
	}
}

// SetContext 设置上下文键值
func (c *Conversation) SetContext(key string, value interface{}) {
	c.context[key] = value
}

// Context 返回上下文副本
func (c *Conversation) Context() map[string]interface{} {
	result := make(map[string]interface{}, len(c.context))
	for k, v := range c.context {
		result[k] = v
	}
	return result
}
