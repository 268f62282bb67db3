package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/service"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/eventbus"
)

// PipelineMetrics receives per-run outcomes. Implemented by monitoring.Monitor.
type PipelineMetrics interface {
	RecordPipeline(source valueobject.ResponseSource, degraded bool, latency time.Duration)
	RecordPersistenceFailure(step string)
}

// EventPublisher receives a reply_sent event per processed message.
type EventPublisher interface {
	Publish(ctx context.Context, event eventbus.Event)
}

// ProcessMessageConfig tunes the pipeline's bounded I/O.
type ProcessMessageConfig struct {
	KnowledgeLimit int           // items retrieved per message (default 3)
	StoreTimeout   time.Duration // per conversation/message store call (default 3s)
	HistoryLimit   int           // prior messages handed to the generator (default 6)
}

// DefaultProcessMessageConfig returns production defaults.
func DefaultProcessMessageConfig() ProcessMessageConfig {
	return ProcessMessageConfig{
		KnowledgeLimit: service.DefaultKnowledgeLimit,
		StoreTimeout:   3 * time.Second,
		HistoryLimit:   6,
	}
}

// ProcessMessageInput is one user turn as received from the transport layer.
type ProcessMessageInput struct {
	UserMessage string
	SessionID   string
	MessageType valueobject.MessageType
	Origin      string // transport client, echoed in reply_sent events
}

// ProcessMessageResult is returned for every input; Response is never blank.
type ProcessMessageResult struct {
	Response       string                     `json:"response"`
	Language       valueobject.Language       `json:"language"`
	ConversationID string                     `json:"conversation_id"`
	Intent         valueobject.Intent         `json:"intent"`
	Source         valueobject.ResponseSource `json:"source"`
	KnowledgeUsed  int                        `json:"knowledge_used"`
	Degraded       bool                       `json:"degraded"`
	State          service.PipelineState      `json:"state"`
}

// ProcessMessageUseCase is the chat pipeline: detect language, resolve the
// conversation, persist the user turn, retrieve knowledge, generate a reply
// and persist it. Store and network faults degrade the reply, never the
// availability: Execute always returns a result.
type ProcessMessageUseCase struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	detector      *service.LanguageDetector
	classifier    *service.IntentClassifier
	retriever     *service.KnowledgeRetriever
	generator     *service.ResponseGenerator
	metrics       PipelineMetrics
	events        EventPublisher
	config        ProcessMessageConfig
	logger        *zap.Logger
}

// NewProcessMessageUseCase creates the chat pipeline.
func NewProcessMessageUseCase(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	detector *service.LanguageDetector,
	classifier *service.IntentClassifier,
	retriever *service.KnowledgeRetriever,
	generator *service.ResponseGenerator,
	config ProcessMessageConfig,
	logger *zap.Logger,
) *ProcessMessageUseCase {
	if config.KnowledgeLimit < 0 {
		config.KnowledgeLimit = 0
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 3 * time.Second
	}
	if config.HistoryLimit < 0 {
		config.HistoryLimit = 0
	}
	return &ProcessMessageUseCase{
		conversations: conversations,
		messages:      messages,
		detector:      detector,
		classifier:    classifier,
		retriever:     retriever,
		generator:     generator,
		config:        config,
		logger:        logger.With(zap.String("component", "chat-pipeline")),
	}
}

// SetMetrics attaches an optional metrics sink.
func (uc *ProcessMessageUseCase) SetMetrics(m PipelineMetrics) {
	uc.metrics = m
}

// SetEventPublisher attaches an optional reply_sent sink.
func (uc *ProcessMessageUseCase) SetEventPublisher(p EventPublisher) {
	uc.events = p
}

// Execute runs one pipeline invocation.
func (uc *ProcessMessageUseCase) Execute(ctx context.Context, in ProcessMessageInput) (result *ProcessMessageResult) {
	// A turn always runs to completion once started. Each store and model
	// call keeps its own timeout.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	sm := service.NewStateMachine(uc.logger)
	language := valueobject.DefaultLanguage
	var sessionID string

	defer func() {
		if rec := recover(); rec != nil {
			uc.logger.Error("Chat pipeline panicked, replying with fallback",
				zap.String("session_id", in.SessionID),
				zap.String("state", string(sm.State())),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			fb := uc.generator.Fallback(language)
			result = &ProcessMessageResult{
				Response:       fb.Text,
				Language:       language,
				ConversationID: "",
				Intent:         valueobject.IntentGeneral,
				Source:         fb.Source,
				Degraded:       true,
				State:          service.StateCompleted,
			}
		}
		if uc.metrics != nil && result != nil {
			uc.metrics.RecordPipeline(result.Source, result.Degraded, time.Since(start))
		}
		if uc.events != nil && result != nil {
			uc.events.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeReplySent, &eventbus.ReplyPayload{
				SessionID:      sessionID,
				ConversationID: result.ConversationID,
				Origin:         in.Origin,
				UserMessage:    in.UserMessage,
				Reply:          result,
			}))
		}
	}()

	sessionID = strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = "anonymous-" + uuid.NewString()
	}

	if in.MessageType == "" {
		in.MessageType = valueobject.MessageTypeText
	}

	// Received → LanguageDetected
	language = uc.detector.Detect(in.UserMessage)
	sm.Advance()

	// → ConversationResolved
	conv := uc.resolveConversation(ctx, sessionID, language, sm)
	history := uc.loadHistory(ctx, conv)
	sm.Advance()

	// → UserMessagePersisted
	intent := uc.classifier.Classify(in.UserMessage, language)
	userMsg, err := entity.NewMessage(newMessageID(), conv.ID(),
		valueobject.NewMessageContent(in.UserMessage, in.MessageType),
		valueobject.SenderUser, language, 1.0)
	if err == nil {
		userMsg.SetMetadata(entity.MetaIntent, string(intent))
		uc.appendMessage(ctx, conv, userMsg, "user_message", sm)
	} else {
		uc.logger.Error("Failed to build user message", zap.Error(err))
		sm.MarkDegraded("user_message")
	}
	sm.Advance()

	// → KnowledgeRetrieved
	knowledge := uc.retriever.Search(ctx, in.UserMessage, language, uc.config.KnowledgeLimit)
	sm.Advance()

	// → ResponseGenerated
	resp := uc.generator.Respond(ctx, service.ResponseInput{
		Utterance: in.UserMessage,
		Language:  language,
		Intent:    intent,
		Knowledge: knowledge,
		History:   history,
	})
	if resp.Kind != service.KindGenerated && uc.generator.HasGenerativeTier() {
		sm.MarkDegraded("generation")
	}
	sm.Advance()

	// → BotMessagePersisted
	confidence := resp.Confidence
	botMsg, err := entity.NewMessage(newMessageID(), conv.ID(),
		valueobject.NewMessageContent(resp.Text, valueobject.MessageTypeText),
		valueobject.SenderBot, language, confidence)
	if err == nil {
		botMsg.SetMetadata(entity.MetaSource, string(resp.Source))
		botMsg.SetMetadata(entity.MetaKnowledgeUsed, resp.KnowledgeUsed)
		if resp.ModelUsed != "" {
			botMsg.SetMetadata("model_used", resp.ModelUsed)
		}
		uc.appendMessage(ctx, conv, botMsg, "bot_message", sm)
	} else {
		uc.logger.Error("Failed to build bot message", zap.Error(err))
		sm.MarkDegraded("bot_message")
	}
	uc.touchConversation(ctx, conv, sm)
	sm.Advance()

	// → Completed
	sm.Advance()

	uc.logger.Info("Message processed",
		zap.String("session_id", sessionID),
		zap.String("conversation_id", conv.ID()),
		zap.String("language", language.String()),
		zap.String("intent", intent.String()),
		zap.String("source", string(resp.Source)),
		zap.Int("knowledge_used", resp.KnowledgeUsed),
		zap.Bool("degraded", sm.IsDegraded()),
		zap.Duration("latency", time.Since(start)),
	)

	return &ProcessMessageResult{
		Response:       resp.Text,
		Language:       language,
		ConversationID: conv.ID(),
		Intent:         intent,
		Source:         resp.Source,
		KnowledgeUsed:  resp.KnowledgeUsed,
		Degraded:       sm.IsDegraded(),
		State:          sm.State(),
	}
}

// resolveConversation gets or creates the session's conversation. On any
// store fault it returns a local, unpersisted conversation.
func (uc *ProcessMessageUseCase) resolveConversation(ctx context.Context, sessionID string, language valueobject.Language, sm *service.StateMachine) (conv *entity.Conversation) {
	degrade := func(reason string, fields ...zap.Field) *entity.Conversation {
		uc.logger.Warn("Conversation store unavailable, using local conversation",
			append(fields, zap.String("session_id", sessionID), zap.String("reason", reason))...)
		uc.persistenceFailed("conversation_store", sm)
		return entity.NewLocalConversation("local-"+uuid.NewString(), sessionID, language)
	}

	defer func() {
		if rec := recover(); rec != nil {
			conv = degrade("panic", zap.Any("panic", rec))
		}
	}()

	if uc.conversations == nil {
		return degrade("not configured")
	}

	storeCtx, cancel := context.WithTimeout(ctx, uc.config.StoreTimeout)
	defer cancel()

	c, err := uc.conversations.GetOrCreate(storeCtx, sessionID, language)
	if err != nil || c == nil {
		return degrade("error", zap.Error(err))
	}
	return c
}

// loadHistory reads the most recent messages before the current turn.
// Failures yield an empty history.
func (uc *ProcessMessageUseCase) loadHistory(ctx context.Context, conv *entity.Conversation) (history []*entity.Message) {
	if !conv.IsPersisted() || uc.messages == nil || uc.config.HistoryLimit == 0 {
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			uc.logger.Error("History read panicked", zap.Any("panic", rec))
			history = nil
		}
	}()

	storeCtx, cancel := context.WithTimeout(ctx, uc.config.StoreTimeout)
	defer cancel()

	msgs, err := uc.messages.FindRecent(storeCtx, conv.ID(), uc.config.HistoryLimit)
	if err != nil {
		uc.logger.Warn("Failed to retrieve conversation history",
			zap.String("conversation_id", conv.ID()),
			zap.Error(err),
		)
		return nil
	}
	return msgs
}

// appendMessage persists best-effort: failures are logged and swallowed.
func (uc *ProcessMessageUseCase) appendMessage(ctx context.Context, conv *entity.Conversation, msg *entity.Message, step string, sm *service.StateMachine) {
	if !conv.IsPersisted() || uc.messages == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			uc.logger.Error("Message append panicked", zap.String("step", step), zap.Any("panic", rec))
			uc.persistenceFailed(step, sm)
		}
	}()

	storeCtx, cancel := context.WithTimeout(ctx, uc.config.StoreTimeout)
	defer cancel()

	if err := uc.messages.Append(storeCtx, msg); err != nil {
		uc.logger.Error("Failed to save message",
			zap.String("step", step),
			zap.String("conversation_id", conv.ID()),
			zap.String("message_id", msg.ID()),
			zap.Error(err),
		)
		uc.persistenceFailed(step, sm)
	}
}

func (uc *ProcessMessageUseCase) touchConversation(ctx context.Context, conv *entity.Conversation, sm *service.StateMachine) {
	if !conv.IsPersisted() || uc.conversations == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			uc.logger.Error("Conversation touch panicked", zap.Any("panic", rec))
		}
	}()

	storeCtx, cancel := context.WithTimeout(ctx, uc.config.StoreTimeout)
	defer cancel()

	if err := uc.conversations.Touch(storeCtx, conv.ID()); err != nil {
		uc.logger.Warn("Failed to update conversation", zap.String("conversation_id", conv.ID()), zap.Error(err))
		uc.persistenceFailed("touch_conversation", sm)
	}
}

func (uc *ProcessMessageUseCase) persistenceFailed(step string, sm *service.StateMachine) {
	sm.MarkDegraded(step)
	if uc.metrics != nil {
		uc.metrics.RecordPersistenceFailure(step)
	}
}

// newMessageID returns a time-ordered id so ids sort with creation time.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
