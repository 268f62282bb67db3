package entity

import (
	"time"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// KnowledgeItem 知识库条目（核心流程只读）
type KnowledgeItem struct {
	ID         string
	Title      string
	Content    string
	Category   string
	Language   valueobject.Language
	Keywords   []string
	Confidence *float64
	Active     bool
	UpdatedAt  time.Time
}

// ConfidenceOr 返回条目置信度，未设置时返回 def
func (k KnowledgeItem) ConfidenceOr(def float64) float64 {
	if k.Confidence == nil {
		return def
	}
	return *k.Confidence
}
