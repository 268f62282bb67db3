package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/application/usecase"
	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/service"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/eventbus"
)

// MockConversationRepository 模拟会话仓储
type MockConversationRepository struct {
	mu        sync.Mutex
	bySession map[string]*entity.Conversation
	err       error
	panicOn   bool
	created   int
}

func NewMockConversationRepository() *MockConversationRepository {
	return &MockConversationRepository{bySession: make(map[string]*entity.Conversation)}
}

func (m *MockConversationRepository) GetOrCreate(ctx context.Context, sessionID string, language valueobject.Language) (*entity.Conversation, error) {
	if m.panicOn {
		panic("conversation store exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.bySession[sessionID]; ok {
		return c, nil
	}
	m.created++
	c, err := entity.NewConversation("conv-"+sessionID, sessionID, language)
	if err != nil {
		return nil, err
	}
	m.bySession[sessionID] = c
	return c, nil
}

func (m *MockConversationRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.bySession[sessionID]; ok {
		return c, nil
	}
	return nil, errors.New("not found")
}

func (m *MockConversationRepository) Touch(ctx context.Context, conversationID string) error {
	return m.err
}

// MockMessageRepository 模拟消息仓储
type MockMessageRepository struct {
	mu       sync.Mutex
	messages []*entity.Message
	err      error
}

func (m *MockMessageRepository) Append(ctx context.Context, message *entity.Message) error {
	if m.err != nil {
		return m.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *MockMessageRepository) forConversation(conversationID string) []*entity.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Message
	for _, msg := range m.messages {
		if msg.ConversationID() == conversationID {
			out = append(out, msg)
		}
	}
	return out
}

func (m *MockMessageRepository) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.forConversation(conversationID), nil
}

func (m *MockMessageRepository) FindRecent(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	msgs := m.forConversation(conversationID)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *MockMessageRepository) Count(ctx context.Context, conversationID string) (int64, error) {
	return int64(len(m.forConversation(conversationID))), m.err
}

// MockKnowledgeRepository 模拟知识库仓储
type MockKnowledgeRepository struct {
	items []entity.KnowledgeItem
	err   error
}

func (m *MockKnowledgeRepository) Search(ctx context.Context, query string, language valueobject.Language, limit int) ([]entity.KnowledgeItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []entity.KnowledgeItem
	for _, it := range m.items {
		if it.Language == language {
			out = append(out, it)
		}
	}
	return service.RankByRelevance(query, out, limit), nil
}

func (m *MockKnowledgeRepository) Upsert(ctx context.Context, item entity.KnowledgeItem) error {
	m.items = append(m.items, item)
	return nil
}

// MockLLMClient 模拟 LLM 客户端
type MockLLMClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []*service.LLMRequest
}

func (m *MockLLMClient) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &service.LLMResponse{Content: m.reply, ModelUsed: req.Model}, nil
}

// MockMetrics 记录指标调用
type MockMetrics struct {
	mu       sync.Mutex
	runs     []valueobject.ResponseSource
	degraded int
	failures []string
}

func (m *MockMetrics) RecordPipeline(source valueobject.ResponseSource, degraded bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, source)
	if degraded {
		m.degraded++
	}
}

func (m *MockMetrics) RecordPersistenceFailure(step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, step)
}

// MockPublisher 记录发布的事件
type MockPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *MockPublisher) Publish(_ context.Context, ev eventbus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type pipelineDeps struct {
	conversations *MockConversationRepository
	messages      *MockMessageRepository
	knowledge     *MockKnowledgeRepository
	llm           service.LLMClient
}

func newPipeline(t *testing.T, deps pipelineDeps) *usecase.ProcessMessageUseCase {
	t.Helper()
	logger := zap.NewNop()
	tables := service.DefaultTables()
	business := service.DefaultBusinessProfile()

	detector, err := service.NewLanguageDetector(tables)
	if err != nil {
		t.Fatalf("NewLanguageDetector: %v", err)
	}
	classifier, err := service.NewIntentClassifier(tables)
	if err != nil {
		t.Fatalf("NewIntentClassifier: %v", err)
	}
	canned, err := service.NewCannedResponder(tables, business)
	if err != nil {
		t.Fatalf("NewCannedResponder: %v", err)
	}

	var tiers []service.Responder
	if gen := service.NewGenerativeResponder(deps.llm, valueobject.DefaultModelConfig(), business, time.Second, logger); gen != nil {
		tiers = append(tiers, gen)
	}
	tiers = append(tiers, service.NewKnowledgeResponder(business))
	generator := service.NewResponseGenerator(classifier, canned, logger, tiers...)

	var knowledge = deps.knowledge
	if knowledge == nil {
		knowledge = &MockKnowledgeRepository{}
	}
	retriever := service.NewKnowledgeRetriever(knowledge, time.Second, logger)

	return usecase.NewProcessMessageUseCase(
		deps.conversations,
		deps.messages,
		detector,
		classifier,
		retriever,
		generator,
		usecase.DefaultProcessMessageConfig(),
		logger,
	)
}

func cannedReply(t *testing.T, language valueobject.Language, intent valueobject.Intent) string {
	t.Helper()
	canned, err := service.NewCannedResponder(service.DefaultTables(), service.DefaultBusinessProfile())
	if err != nil {
		t.Fatalf("NewCannedResponder: %v", err)
	}
	return canned.Reply(language, intent)
}

func TestProcessMessage_EnglishPricingWithoutGenerator(t *testing.T) {
	conversations := NewMockConversationRepository()
	messages := &MockMessageRepository{}
	uc := newPipeline(t, pipelineDeps{conversations: conversations, messages: messages})

	result := uc.Execute(context.Background(), usecase.ProcessMessageInput{
		UserMessage: "What are your prices?",
		SessionID:   "s1",
	})

	if result.Language != valueobject.LanguageEnglish {
		t.Errorf("expected en, got %s", result.Language)
	}
	if result.Intent != valueobject.IntentPricing {
		t.Errorf("expected pricing intent, got %s", result.Intent)
	}
	if result.Source != valueobject.SourceFallback {
		t.Errorf("expected fallback source, got %s", result.Source)
	}
	if want := cannedReply(t, valueobject.LanguageEnglish, valueobject.IntentPricing); result.Response != want {
		t.Errorf("expected canned pricing reply %q, got %q", want, result.Response)
	}
	if result.State != service.StateCompleted {
		t.Errorf("expected completed state, got %s", result.State)
	}

	if conversations.created != 1 {
		t.Fatalf("expected 1 conversation, got %d", conversations.created)
	}
	stored := messages.forConversation(result.ConversationID)
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(stored))
	}
	if !stored[0].IsFromUser() || stored[0].Content().Text() != "What are your prices?" {
		t.Errorf("first message should be the user turn, got %+v", stored[0])
	}
	if !stored[1].IsFromBot() || stored[1].Content().Text() != result.Response {
		t.Errorf("second message should be the bot reply")
	}
	if src, _ := stored[1].GetMetadata(entity.MetaSource); src != string(valueobject.SourceFallback) {
		t.Errorf("bot message should carry its source, got %v", src)
	}
	if stored[1].Confidence() != service.ConfidenceCanned {
		t.Errorf("expected canned confidence, got %v", stored[1].Confidence())
	}
}

func TestProcessMessage_AllCollaboratorsFailing(t *testing.T) {
	conversations := NewMockConversationRepository()
	conversations.err = errors.New("db down")
	messages := &MockMessageRepository{err: errors.New("db down")}
	metrics := &MockMetrics{}

	uc := newPipeline(t, pipelineDeps{
		conversations: conversations,
		messages:      messages,
		knowledge:     &MockKnowledgeRepository{err: errors.New("search down")},
		llm:           &MockLLMClient{err: errors.New("503")},
	})
	uc.SetMetrics(metrics)

	result := uc.Execute(context.Background(), usecase.ProcessMessageInput{
		UserMessage: "Bonjour",
		SessionID:   "s-down",
	})

	if result.Language != valueobject.LanguageFrench {
		t.Errorf("expected fr, got %s", result.Language)
	}
	if want := cannedReply(t, valueobject.LanguageFrench, valueobject.IntentGreeting); result.Response != want {
		t.Errorf("expected canned greeting %q, got %q", want, result.Response)
	}
	if !result.Degraded {
		t.Error("result should be degraded")
	}
	if !strings.HasPrefix(result.ConversationID, "local-") {
		t.Errorf("expected local conversation id, got %q", result.ConversationID)
	}
	if len(metrics.runs) != 1 || metrics.degraded != 1 {
		t.Errorf("unexpected metrics: %+v", metrics)
	}
	if len(metrics.failures) == 0 || metrics.failures[0] != "conversation_store" {
		t.Errorf("expected conversation_store failure, got %v", metrics.failures)
	}
}

func TestProcessMessage_ConversationStorePanics(t *testing.T) {
	conversations := NewMockConversationRepository()
	conversations.panicOn = true
	messages := &MockMessageRepository{}
	uc := newPipeline(t, pipelineDeps{conversations: conversations, messages: messages})

	result := uc.Execute(context.Background(), usecase.ProcessMessageInput{
		UserMessage: "Hello, do you build websites?",
		SessionID:   "s-panic",
	})

	if strings.TrimSpace(result.Response) == "" {
		t.Fatal("response must never be blank")
	}
	if !result.Degraded {
		t.Error("expected degraded result")
	}
	if len(messages.messages) != 0 {
		t.Error("messages must not be persisted against a local conversation")
	}
}

func TestProcessMessage_SameSessionReusesConversation(t *testing.T) {
	conversations := NewMockConversationRepository()
	messages := &MockMessageRepository{}
	uc := newPipeline(t, pipelineDeps{conversations: conversations, messages: messages})

	first := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Bonjour", SessionID: "s2"})
	second := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Quels sont vos tarifs ?", SessionID: "s2"})

	if first.ConversationID != second.ConversationID {
		t.Errorf("expected the same conversation, got %s and %s", first.ConversationID, second.ConversationID)
	}
	if conversations.created != 1 {
		t.Errorf("expected a single conversation, got %d", conversations.created)
	}
	if n := len(messages.forConversation(first.ConversationID)); n != 4 {
		t.Errorf("expected 4 messages, got %d", n)
	}
}

func TestProcessMessage_GeneratedWithKnowledge(t *testing.T) {
	conversations := NewMockConversationRepository()
	messages := &MockMessageRepository{}
	llm := &MockLLMClient{reply: "A showcase website starts at €590."}
	knowledge := &MockKnowledgeRepository{items: []entity.KnowledgeItem{{
		Title:    "Website pricing",
		Content:  "A showcase website starts at 590 EUR.",
		Language: valueobject.LanguageEnglish,
		Keywords: []string{"price", "website"},
		Active:   true,
	}}}
	uc := newPipeline(t, pipelineDeps{conversations: conversations, messages: messages, knowledge: knowledge, llm: llm})

	// Seed one prior exchange so history is handed to the model.
	uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Hello", SessionID: "s3"})
	result := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "What is the website price?", SessionID: "s3"})

	if result.Source != valueobject.SourceKnowledgeBase {
		t.Errorf("expected knowledge_base source, got %s", result.Source)
	}
	if result.KnowledgeUsed != 1 {
		t.Errorf("expected 1 knowledge item used, got %d", result.KnowledgeUsed)
	}
	if result.Response != llm.reply {
		t.Errorf("expected generated reply, got %q", result.Response)
	}
	if result.Degraded {
		t.Error("generated reply should not be degraded")
	}

	last := llm.requests[len(llm.requests)-1]
	if last.Messages[0].Role != "system" || !strings.Contains(last.Messages[0].Content, "Website pricing") {
		t.Errorf("system prompt should carry the knowledge item, got %q", last.Messages[0].Content)
	}
	if got := last.Messages[len(last.Messages)-1]; got.Role != "user" || got.Content != "What is the website price?" {
		t.Errorf("last message should be the current utterance, got %+v", got)
	}
	if len(last.Messages) < 4 {
		t.Errorf("expected system + history + utterance, got %d messages", len(last.Messages))
	}
}

func TestProcessMessage_DirectKnowledgeWhenGeneratorFails(t *testing.T) {
	knowledge := &MockKnowledgeRepository{items: []entity.KnowledgeItem{{
		Title:    "Tarifs",
		Content:  "Un site vitrine démarre à 590 €.",
		Language: valueobject.LanguageFrench,
		Keywords: []string{"tarif", "prix"},
		Active:   true,
	}}}
	uc := newPipeline(t, pipelineDeps{
		conversations: NewMockConversationRepository(),
		messages:      &MockMessageRepository{},
		knowledge:     knowledge,
		llm:           &MockLLMClient{err: errors.New("timeout")},
	})

	result := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Quel est le prix d'un site ?", SessionID: "s4"})

	if result.Source != valueobject.SourceKnowledgeBase {
		t.Errorf("expected knowledge_base source, got %s", result.Source)
	}
	if !strings.Contains(result.Response, "590") {
		t.Errorf("expected the knowledge content in the reply, got %q", result.Response)
	}
	if !strings.Contains(result.Response, service.DefaultBusinessProfile().Email) {
		t.Errorf("direct knowledge reply should end with the contact line, got %q", result.Response)
	}
}

func TestProcessMessage_EmptySessionAndBlankMessage(t *testing.T) {
	conversations := NewMockConversationRepository()
	uc := newPipeline(t, pipelineDeps{conversations: conversations, messages: &MockMessageRepository{}})

	a := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "   ", SessionID: ""})
	b := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "", SessionID: ""})

	for _, r := range []*usecase.ProcessMessageResult{a, b} {
		if strings.TrimSpace(r.Response) == "" {
			t.Fatal("response must never be blank")
		}
		if r.Language != valueobject.DefaultLanguage {
			t.Errorf("blank input should use the default language, got %s", r.Language)
		}
		if r.Intent != valueobject.IntentGeneral {
			t.Errorf("blank input should be general, got %s", r.Intent)
		}
	}
	if a.ConversationID == b.ConversationID {
		t.Error("anonymous calls should not share a conversation")
	}
}

func TestProcessMessage_MessagePersistenceFailureStillReplies(t *testing.T) {
	metrics := &MockMetrics{}
	uc := newPipeline(t, pipelineDeps{
		conversations: NewMockConversationRepository(),
		messages:      &MockMessageRepository{err: errors.New("disk full")},
	})
	uc.SetMetrics(metrics)

	result := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Hello", SessionID: "s5"})

	if want := cannedReply(t, valueobject.LanguageEnglish, valueobject.IntentGreeting); result.Response != want {
		t.Errorf("expected canned greeting, got %q", result.Response)
	}
	if !result.Degraded {
		t.Error("persistence failure should mark the run degraded")
	}
	if strings.HasPrefix(result.ConversationID, "local-") {
		t.Error("the conversation itself was resolved and should keep its id")
	}
	want := map[string]bool{"user_message": true, "bot_message": true}
	for _, step := range metrics.failures {
		delete(want, step)
	}
	if len(want) != 0 {
		t.Errorf("missing persistence failure steps: %v (got %v)", want, metrics.failures)
	}
}

func TestProcessMessage_ConcurrentFirstMessages(t *testing.T) {
	conversations := NewMockConversationRepository()
	messages := &MockMessageRepository{}
	uc := newPipeline(t, pipelineDeps{conversations: conversations, messages: messages})

	var wg sync.WaitGroup
	ids := make([]string, 6)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Bonjour", SessionID: "shared"}).ConversationID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent first messages created different conversations: %v", ids)
		}
	}
	if n := len(messages.forConversation(ids[0])); n != 12 {
		t.Errorf("expected 12 messages, got %d", n)
	}
}

func TestConversationHistory_ListBySession(t *testing.T) {
	conversations := NewMockConversationRepository()
	messages := &MockMessageRepository{}
	uc := newPipeline(t, pipelineDeps{conversations: conversations, messages: messages})
	uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Hello", SessionID: "h1"})

	history := usecase.NewConversationHistoryUseCase(conversations, messages, zap.NewNop())
	conv, msgs, err := history.ListBySession(context.Background(), "h1", 50, 0)
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if conv.SessionID() != "h1" || len(msgs) != 2 {
		t.Errorf("unexpected history: conv=%s msgs=%d", conv.SessionID(), len(msgs))
	}

	if _, _, err := history.ListBySession(context.Background(), "unknown", 50, 0); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestProcessMessage_PublishesReplySent(t *testing.T) {
	pub := &MockPublisher{}
	uc := newPipeline(t, pipelineDeps{conversations: NewMockConversationRepository(), messages: &MockMessageRepository{}})
	uc.SetEventPublisher(pub)

	res := uc.Execute(context.Background(), usecase.ProcessMessageInput{
		UserMessage: "Bonjour",
		SessionID:   " s-events ",
		Origin:      "http",
	})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 || pub.events[0].Type() != eventbus.EventTypeReplySent {
		t.Fatalf("events = %+v", pub.events)
	}
	p, ok := pub.events[0].Payload().(*eventbus.ReplyPayload)
	if !ok {
		t.Fatalf("payload type %T", pub.events[0].Payload())
	}
	if p.SessionID != "s-events" || p.Origin != "http" || p.UserMessage != "Bonjour" {
		t.Fatalf("payload = %+v", p)
	}
	if p.ConversationID != res.ConversationID || p.Reply != res {
		t.Fatalf("payload does not carry the result: %+v", p)
	}
}

// cancellingLLM cancels the caller's context mid-generation, as an HTTP client
// disconnecting would, and answers only if its own context survived.
type cancellingLLM struct {
	cancel context.CancelFunc
}

func (c *cancellingLLM) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	c.cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &service.LLMResponse{Content: "A showcase site starts at 590 €.", ModelUsed: req.Model}, nil
}

func TestProcessMessage_CallerCancellationCompletesTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := &MockMessageRepository{}
	uc := newPipeline(t, pipelineDeps{
		conversations: NewMockConversationRepository(),
		messages:      messages,
		llm:           &cancellingLLM{cancel: cancel},
	})

	result := uc.Execute(ctx, usecase.ProcessMessageInput{UserMessage: "What are your prices?", SessionID: "s-cancel"})

	if result.Source != valueobject.SourceAIGenerated {
		t.Errorf("generation should survive caller cancellation, got source %s", result.Source)
	}
	stored := messages.forConversation(result.ConversationID)
	if len(stored) != 2 {
		t.Fatalf("expected user and bot messages, got %d", len(stored))
	}
	if !stored[0].IsFromUser() || !stored[1].IsFromBot() {
		t.Fatal("expected user message followed by bot message")
	}
	if result.Degraded {
		t.Error("completed turn should not be degraded")
	}
}

func TestProcessMessage_NoModelConfiguredIsNotDegraded(t *testing.T) {
	metrics := &MockMetrics{}
	uc := newPipeline(t, pipelineDeps{conversations: NewMockConversationRepository(), messages: &MockMessageRepository{}})
	uc.SetMetrics(metrics)

	result := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Hello", SessionID: "s-canned"})

	if result.Source != valueobject.SourceFallback {
		t.Fatalf("expected canned reply, got %s", result.Source)
	}
	if result.Degraded {
		t.Error("canned reply without a configured model is the normal path")
	}
	if metrics.degraded != 0 {
		t.Errorf("degraded runs = %d, want 0", metrics.degraded)
	}
}

func TestProcessMessage_ModelFailureIsDegraded(t *testing.T) {
	uc := newPipeline(t, pipelineDeps{
		conversations: NewMockConversationRepository(),
		messages:      &MockMessageRepository{},
		llm:           &MockLLMClient{err: errors.New("503")},
	})

	result := uc.Execute(context.Background(), usecase.ProcessMessageInput{UserMessage: "Hello", SessionID: "s-503"})

	if result.Source != valueobject.SourceFallback || !result.Degraded {
		t.Fatalf("expected degraded canned reply, got source=%s degraded=%v", result.Source, result.Degraded)
	}
}
