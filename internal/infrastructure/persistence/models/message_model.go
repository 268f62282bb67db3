package models

import (
	"time"
)

// MessageModel 数据库消息模型（只追加，不做软删除）
type MessageModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	ConversationID string    `gorm:"index:idx_messages_conv_created,priority:1;size:64;not null"`
	Content        string    `gorm:"type:text;not null"`
	MessageType    string    `gorm:"size:16;not null"` // text, voice
	Sender         string    `gorm:"size:16;not null"` // user, bot
	Language       string    `gorm:"size:8;not null"`
	Confidence     float64   `gorm:"not null"`
	Metadata       string    `gorm:"type:text"` // JSON encoded metadata
	CreatedAt      time.Time `gorm:"index:idx_messages_conv_created,priority:2"`
}

// TableName 指定表名
func (MessageModel) TableName() string {
	return "messages"
}
