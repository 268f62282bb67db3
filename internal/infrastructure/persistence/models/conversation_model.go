package models

import (
	"time"
)

// ConversationModel 数据库会话模型
type ConversationModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	SessionID string `gorm:"uniqueIndex;size:128;not null"`
	Language  string `gorm:"size:8;not null"`
	Context   string `gorm:"type:text"` // JSON encoded context bag
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (ConversationModel) TableName() string {
	return "conversations"
}
