// Package knowledge loads knowledge base seed files and writes them to a
// KnowledgeRepository.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// SeedFile is the YAML layout of a knowledge seed.
type SeedFile struct {
	Items []SeedItem `yaml:"items"`
}

// SeedItem is one knowledge entry. Active defaults to true.
type SeedItem struct {
	Title      string   `yaml:"title"`
	Language   string   `yaml:"language"`
	Category   string   `yaml:"category"`
	Content    string   `yaml:"content"`
	Keywords   []string `yaml:"keywords"`
	Confidence *float64 `yaml:"confidence"`
	Active     *bool    `yaml:"active"`
}

// LoadSeedFile reads and validates a YAML seed file.
func LoadSeedFile(path string) ([]entity.KnowledgeItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML into knowledge items.
func ParseSeed(data []byte) ([]entity.KnowledgeItem, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	items := make([]entity.KnowledgeItem, 0, len(file.Items))
	for i, it := range file.Items {
		lang := valueobject.Language(strings.ToLower(strings.TrimSpace(it.Language)))
		if !lang.IsSupported() {
			return nil, fmt.Errorf("item %d (%q): unsupported language %q", i, it.Title, it.Language)
		}
		if strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.Content) == "" {
			return nil, fmt.Errorf("item %d: title and content are required", i)
		}
		if it.Confidence != nil && (*it.Confidence < 0 || *it.Confidence > 1) {
			return nil, fmt.Errorf("item %d (%q): confidence must be within [0,1]", i, it.Title)
		}

		active := true
		if it.Active != nil {
			active = *it.Active
		}
		items = append(items, entity.KnowledgeItem{
			Title:      strings.TrimSpace(it.Title),
			Content:    strings.TrimSpace(it.Content),
			Category:   it.Category,
			Language:   lang,
			Keywords:   it.Keywords,
			Confidence: it.Confidence,
			Active:     active,
		})
	}
	return items, nil
}

// Seed upserts items and returns how many were written.
// It stops at the first store error.
func Seed(ctx context.Context, repo repository.KnowledgeRepository, items []entity.KnowledgeItem, logger *zap.Logger) (int, error) {
	written := 0
	for _, item := range items {
		if err := repo.Upsert(ctx, item); err != nil {
			return written, fmt.Errorf("upsert %q (%s): %w", item.Title, item.Language, err)
		}
		written++
	}
	logger.Info("Knowledge base seeded", zap.Int("items", written))
	return written, nil
}
