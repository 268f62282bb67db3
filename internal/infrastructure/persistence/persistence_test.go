package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/config"
	"github.com/ngoclaw/sitebot/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDBConnection(&config.DatabaseConfig{
		Type:     "sqlite",
		DSN:      filepath.Join(t.TempDir(), "sitebot.db"),
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type repoSet struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	knowledge     repository.KnowledgeRepository
}

func forEachBackend(t *testing.T, fn func(t *testing.T, repos repoSet)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, repoSet{
			conversations: NewMemoryConversationRepository(),
			messages:      NewMemoryMessageRepository(),
			knowledge:     NewMemoryKnowledgeRepository(),
		})
	})
	t.Run("sqlite", func(t *testing.T) {
		db := newTestDB(t)
		fn(t, repoSet{
			conversations: NewGormConversationRepository(db),
			messages:      NewGormMessageRepository(db),
			knowledge:     NewGormKnowledgeRepository(db),
		})
	})
}

func TestConversationRepository_GetOrCreateIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()

		first, err := repos.conversations.GetOrCreate(ctx, "session-1", valueobject.LanguageEnglish)
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		if first.Language() != valueobject.LanguageEnglish {
			t.Errorf("expected language en, got %s", first.Language())
		}

		// A later call with another language keeps the original conversation.
		second, err := repos.conversations.GetOrCreate(ctx, "session-1", valueobject.LanguageFrench)
		if err != nil {
			t.Fatalf("second GetOrCreate failed: %v", err)
		}
		if second.ID() != first.ID() {
			t.Errorf("expected same conversation id, got %s and %s", first.ID(), second.ID())
		}
		if second.Language() != valueobject.LanguageEnglish {
			t.Errorf("language should be fixed at creation, got %s", second.Language())
		}

		other, err := repos.conversations.GetOrCreate(ctx, "session-2", valueobject.LanguageFrench)
		if err != nil {
			t.Fatalf("GetOrCreate for second session failed: %v", err)
		}
		if other.ID() == first.ID() {
			t.Error("distinct sessions must get distinct conversations")
		}
	})
}

func TestConversationRepository_ConcurrentGetOrCreate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()

		const workers = 8
		ids := make([]string, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				conv, err := repos.conversations.GetOrCreate(ctx, "race-session", valueobject.LanguageFrench)
				errs[i] = err
				if conv != nil {
					ids[i] = conv.ID()
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < workers; i++ {
			if errs[i] != nil {
				t.Fatalf("worker %d failed: %v", i, errs[i])
			}
			if ids[i] != ids[0] {
				t.Fatalf("worker %d got conversation %s, want %s", i, ids[i], ids[0])
			}
		}
	})
}

func TestConversationRepository_FindAndTouch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()

		if _, err := repos.conversations.FindBySessionID(ctx, "missing"); !errors.IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
		if err := repos.conversations.Touch(ctx, "missing"); !errors.IsNotFound(err) {
			t.Errorf("expected not found on touch, got %v", err)
		}
		if _, err := repos.conversations.GetOrCreate(ctx, "", valueobject.LanguageFrench); !errors.IsInvalidInput(err) {
			t.Errorf("expected invalid input for empty session, got %v", err)
		}

		conv, err := repos.conversations.GetOrCreate(ctx, "session-touch", valueobject.LanguageFrench)
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		if err := repos.conversations.Touch(ctx, conv.ID()); err != nil {
			t.Fatalf("Touch failed: %v", err)
		}
		found, err := repos.conversations.FindBySessionID(ctx, "session-touch")
		if err != nil {
			t.Fatalf("FindBySessionID failed: %v", err)
		}
		if found.ID() != conv.ID() {
			t.Errorf("expected %s, got %s", conv.ID(), found.ID())
		}
		if found.UpdatedAt().Before(found.CreatedAt()) {
			t.Error("updated_at should not precede created_at")
		}
	})
}

func newTestMessage(id, convID string, sender valueobject.Sender, text string, at time.Time) *entity.Message {
	msg := entity.ReconstructMessage(
		id,
		convID,
		valueobject.NewMessageContent(text, valueobject.MessageTypeText),
		sender,
		valueobject.LanguageEnglish,
		0.5,
		at,
		nil,
	)
	return msg
}

func TestMessageRepository_AppendAndOrdering(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			sender := valueobject.SenderUser
			if i%2 == 1 {
				sender = valueobject.SenderBot
			}
			msg := newTestMessage(fmt.Sprintf("m%d", i), "conv-1", sender, fmt.Sprintf("text %d", i), base.Add(time.Duration(i)*time.Second))
			if i == 1 {
				msg.SetMetadata(entity.MetaSource, string(valueobject.SourceFallback))
			}
			if err := repos.messages.Append(ctx, msg); err != nil {
				t.Fatalf("Append %d failed: %v", i, err)
			}
		}
		if err := repos.messages.Append(ctx, newTestMessage("other", "conv-2", valueobject.SenderUser, "elsewhere", base)); err != nil {
			t.Fatalf("Append to other conversation failed: %v", err)
		}

		count, err := repos.messages.Count(ctx, "conv-1")
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 5 {
			t.Errorf("expected 5 messages, got %d", count)
		}

		all, err := repos.messages.FindByConversationID(ctx, "conv-1", 10, 0)
		if err != nil {
			t.Fatalf("FindByConversationID failed: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("expected 5 messages, got %d", len(all))
		}
		for i, msg := range all {
			if msg.ID() != fmt.Sprintf("m%d", i) {
				t.Errorf("position %d: expected m%d, got %s", i, i, msg.ID())
			}
		}
		if !all[0].IsFromUser() || !all[1].IsFromBot() {
			t.Error("sender roles not preserved")
		}
		if v, ok := all[1].GetMetadata(entity.MetaSource); !ok || v != string(valueobject.SourceFallback) {
			t.Errorf("metadata not preserved, got %v", v)
		}

		page, err := repos.messages.FindByConversationID(ctx, "conv-1", 2, 2)
		if err != nil {
			t.Fatalf("paged FindByConversationID failed: %v", err)
		}
		if len(page) != 2 || page[0].ID() != "m2" || page[1].ID() != "m3" {
			t.Errorf("unexpected page: %v", ids(page))
		}

		recent, err := repos.messages.FindRecent(ctx, "conv-1", 3)
		if err != nil {
			t.Fatalf("FindRecent failed: %v", err)
		}
		if got := ids(recent); len(got) != 3 || got[0] != "m2" || got[2] != "m4" {
			t.Errorf("expected [m2 m3 m4], got %v", got)
		}

		none, err := repos.messages.FindRecent(ctx, "conv-1", 0)
		if err != nil || len(none) != 0 {
			t.Errorf("expected empty result for zero limit, got %v (%v)", ids(none), err)
		}
	})
}

func ids(messages []*entity.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID()
	}
	return out
}

func confidence(v float64) *float64 { return &v }

func seedKnowledge(t *testing.T, repo repository.KnowledgeRepository) {
	t.Helper()
	items := []entity.KnowledgeItem{
		{Title: "Website pricing", Content: "Showcase websites start at 990 EUR.", Category: "pricing", Language: valueobject.LanguageEnglish, Keywords: []string{"price", "cost"}, Confidence: confidence(0.95), Active: true},
		{Title: "Hosting", Content: "Hosting is included the first year, then priced yearly.", Category: "services", Language: valueobject.LanguageEnglish, Keywords: []string{"hosting"}, Active: true},
		{Title: "Maintenance", Content: "Monthly maintenance plans.", Category: "services", Language: valueobject.LanguageEnglish, Keywords: []string{"support"}, Active: true},
		{Title: "Archived pricing", Content: "Old pricing grid.", Category: "pricing", Language: valueobject.LanguageEnglish, Keywords: []string{"price"}, Active: false},
		{Title: "Tarifs", Content: "Les sites vitrines commencent à 990 EUR.", Category: "pricing", Language: valueobject.LanguageFrench, Keywords: []string{"prix", "tarif"}, Active: true},
	}
	for _, item := range items {
		if err := repo.Upsert(context.Background(), item); err != nil {
			t.Fatalf("Upsert %q failed: %v", item.Title, err)
		}
	}
}

func TestKnowledgeRepository_SearchFiltersAndRanks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos repoSet) {
		seedKnowledge(t, repos.knowledge)
		ctx := context.Background()

		results, err := repos.knowledge.Search(ctx, "What is the website price?", valueobject.LanguageEnglish, 3)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) == 0 {
			t.Fatal("expected at least one result")
		}
		if results[0].Title != "Website pricing" {
			t.Errorf("expected Website pricing first, got %q", results[0].Title)
		}
		for _, item := range results {
			if !item.Active {
				t.Errorf("inactive item %q returned", item.Title)
			}
			if item.Language != valueobject.LanguageEnglish {
				t.Errorf("item %q has language %s", item.Title, item.Language)
			}
		}
		if results[0].ConfidenceOr(0) != 0.95 {
			t.Errorf("confidence not preserved, got %v", results[0].ConfidenceOr(0))
		}

		bounded, err := repos.knowledge.Search(ctx, "pricing hosting maintenance price", valueobject.LanguageEnglish, 1)
		if err != nil {
			t.Fatalf("bounded Search failed: %v", err)
		}
		if len(bounded) != 1 {
			t.Errorf("expected 1 result, got %d", len(bounded))
		}

		empty, err := repos.knowledge.Search(ctx, "zzz qqq", valueobject.LanguageEnglish, 3)
		if err != nil {
			t.Fatalf("Search without matches failed: %v", err)
		}
		if empty == nil || len(empty) != 0 {
			t.Errorf("expected empty non-nil result, got %v", empty)
		}
	})
}

func TestKnowledgeRepository_UpsertReplacesByLanguageAndTitle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos repoSet) {
		ctx := context.Background()
		item := entity.KnowledgeItem{Title: "Delays", Content: "Two weeks.", Language: valueobject.LanguageEnglish, Keywords: []string{"delay"}, Active: true}
		if err := repos.knowledge.Upsert(ctx, item); err != nil {
			t.Fatalf("first Upsert failed: %v", err)
		}
		item.Content = "Three weeks for e-commerce delays."
		if err := repos.knowledge.Upsert(ctx, item); err != nil {
			t.Fatalf("second Upsert failed: %v", err)
		}

		results, err := repos.knowledge.Search(ctx, "delays", valueobject.LanguageEnglish, 5)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected a single item after upsert, got %d", len(results))
		}
		if results[0].Content != item.Content {
			t.Errorf("expected updated content, got %q", results[0].Content)
		}

		if err := repos.knowledge.Upsert(ctx, entity.KnowledgeItem{Language: valueobject.LanguageEnglish}); !errors.IsInvalidInput(err) {
			t.Errorf("expected invalid input for empty item, got %v", err)
		}
	})
}
