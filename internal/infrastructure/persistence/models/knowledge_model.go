package models

import (
	"time"
)

// KnowledgeItemModel 数据库知识库条目模型
type KnowledgeItemModel struct {
	ID         string `gorm:"primaryKey;size:64"`
	Title      string `gorm:"uniqueIndex:idx_knowledge_lang_title,priority:2;size:255;not null"`
	Content    string `gorm:"type:text;not null"`
	Category   string `gorm:"index;size:64"`
	Language   string `gorm:"uniqueIndex:idx_knowledge_lang_title,priority:1;index:idx_knowledge_lang_active,priority:1;size:8;not null"`
	Keywords   string `gorm:"type:text"` // JSON encoded list
	Confidence *float64
	Active     bool `gorm:"index:idx_knowledge_lang_active,priority:2;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 指定表名
func (KnowledgeItemModel) TableName() string {
	return "knowledge_items"
}
