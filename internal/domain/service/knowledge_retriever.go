package service

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"go.uber.org/zap"
)

// DefaultKnowledgeLimit is the number of items retrieved per message.
const DefaultKnowledgeLimit = 3

// KnowledgeRetriever queries the knowledge store and never fails: any store
// error or timeout is logged and reported as "no grounding available".
type KnowledgeRetriever struct {
	repo    repository.KnowledgeRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewKnowledgeRetriever creates a retriever. A zero timeout disables the
// per-call deadline.
func NewKnowledgeRetriever(repo repository.KnowledgeRepository, timeout time.Duration, logger *zap.Logger) *KnowledgeRetriever {
	return &KnowledgeRetriever{
		repo:    repo,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "knowledge-retriever")),
	}
}

// Search returns at most limit active items in language, most relevant first.
// A negative limit is treated as zero.
func (r *KnowledgeRetriever) Search(ctx context.Context, query string, language valueobject.Language, limit int) (items []entity.KnowledgeItem) {
	if limit <= 0 || r.repo == nil || strings.TrimSpace(query) == "" {
		return []entity.KnowledgeItem{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Knowledge search panicked", zap.Any("panic", rec))
			items = []entity.KnowledgeItem{}
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	found, err := r.repo.Search(ctx, query, language, limit)
	if err != nil {
		r.logger.Warn("Knowledge search failed, continuing without grounding",
			zap.String("language", language.String()),
			zap.Error(err),
		)
		return []entity.KnowledgeItem{}
	}
	if len(found) > limit {
		found = found[:limit]
	}
	return found
}

// --- Keyword relevance ---

var stopwords = map[string]bool{
	"the": true, "and": true, "are": true, "you": true, "your": true, "for": true,
	"what": true, "how": true, "does": true, "can": true, "with": true, "les": true,
	"des": true, "une": true, "est": true, "vous": true, "votre": true, "pour": true,
	"que": true, "qui": true, "quel": true, "quelle": true, "avec": true, "dans": true,
}

// QueryTerms splits a query into lower-case search terms, dropping stopwords
// and terms shorter than three runes.
func QueryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// ScoreRelevance weighs query term hits: 1 per occurrence in content, 2 per
// occurrence in the title, 3 when a keyword contains the term.
func ScoreRelevance(terms []string, item entity.KnowledgeItem) float64 {
	if len(terms) == 0 {
		return 0
	}
	content := strings.ToLower(item.Content)
	title := strings.ToLower(item.Title)

	var score float64
	for _, term := range terms {
		score += float64(strings.Count(content, term))
		score += 2 * float64(strings.Count(title, term))
		for _, kw := range item.Keywords {
			if strings.Contains(strings.ToLower(kw), term) {
				score += 3
				break
			}
		}
	}
	return score
}

// RankByRelevance scores items against query, drops non-matching ones and
// returns at most limit items. Ties are broken by confidence, then title.
func RankByRelevance(query string, items []entity.KnowledgeItem, limit int) []entity.KnowledgeItem {
	terms := QueryTerms(query)
	type scored struct {
		item  entity.KnowledgeItem
		score float64
	}
	ranked := make([]scored, 0, len(items))
	for _, it := range items {
		if s := ScoreRelevance(terms, it); s > 0 {
			ranked = append(ranked, scored{it, s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		ci, cj := ranked[i].item.ConfidenceOr(0), ranked[j].item.ConfidenceOr(0)
		if ci != cj {
			return ci > cj
		}
		return ranked[i].item.Title < ranked[j].item.Title
	})

	if limit < 0 {
		limit = 0
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]entity.KnowledgeItem, len(ranked))
	for i, r := range ranked {
		out[i] = r.item
	}
	return out
}
