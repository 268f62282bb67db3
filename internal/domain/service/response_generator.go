package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"go.uber.org/zap"
)

// ResponseKind tags which tier of the fallback chain produced a reply.
type ResponseKind string

const (
	KindGenerated ResponseKind = "generated" // LLM output, with or without grounding
	KindGrounded  ResponseKind = "grounded"  // top knowledge item quoted directly
	KindCanned    ResponseKind = "canned"    // per-intent fixed reply
)

// Confidence reported on bot messages per tier.
const (
	ConfidenceGeneratedGrounded = 0.9
	ConfidenceGenerated         = 0.75
	ConfidenceKnowledge         = 0.8
	ConfidenceCanned            = 0.5
)

// ResponseInput is what every tier of the chain sees.
type ResponseInput struct {
	Utterance string
	Language  valueobject.Language
	Intent    valueobject.Intent
	Knowledge []entity.KnowledgeItem
	History   []*entity.Message
}

// Response is the outcome of the fallback chain. Text is never blank.
type Response struct {
	Text          string
	Kind          ResponseKind
	Source        valueobject.ResponseSource
	Intent        valueobject.Intent
	Confidence    float64
	KnowledgeUsed int
	ModelUsed     string
}

// Responder is one tier of the chain. It returns ok=false when it is not
// configured or produced nothing usable; it must not panic on bad input.
type Responder interface {
	Name() string
	Respond(ctx context.Context, in ResponseInput) (Response, bool)
}

// ResponseGenerator walks its tiers in order and returns the first usable
// reply. The canned responder is always the final tier.
type ResponseGenerator struct {
	tiers      []Responder
	canned     *CannedResponder
	classifier *IntentClassifier
	logger     *zap.Logger
}

// NewResponseGenerator chains tiers in the given order, then canned.
func NewResponseGenerator(classifier *IntentClassifier, canned *CannedResponder, logger *zap.Logger, tiers ...Responder) *ResponseGenerator {
	chain := make([]Responder, 0, len(tiers))
	for _, t := range tiers {
		if t != nil {
			chain = append(chain, t)
		}
	}
	return &ResponseGenerator{
		tiers:      chain,
		canned:     canned,
		classifier: classifier,
		logger:     logger.With(zap.String("component", "response-generator")),
	}
}

// HasGenerativeTier reports whether a model tier is configured. Without one,
// knowledge and canned replies are the normal path, not a degradation.
func (g *ResponseGenerator) HasGenerativeTier() bool {
	for _, t := range g.tiers {
		if _, ok := t.(*GenerativeResponder); ok {
			return true
		}
	}
	return false
}

// Generate classifies the utterance and runs the chain.
func (g *ResponseGenerator) Generate(ctx context.Context, utterance string, language valueobject.Language, knowledge []entity.KnowledgeItem, history []*entity.Message) Response {
	return g.Respond(ctx, ResponseInput{
		Utterance: utterance,
		Language:  language,
		Intent:    g.classifier.Classify(utterance, language),
		Knowledge: knowledge,
		History:   history,
	})
}

// Respond runs the chain for an already classified input.
func (g *ResponseGenerator) Respond(ctx context.Context, in ResponseInput) Response {
	if in.Intent == "" {
		in.Intent = g.classifier.Classify(in.Utterance, in.Language)
	}

	for _, tier := range g.tiers {
		resp, ok := g.try(ctx, tier, in)
		if ok && strings.TrimSpace(resp.Text) != "" {
			resp.Intent = in.Intent
			return resp
		}
		g.logger.Debug("Response tier unusable, falling through",
			zap.String("tier", tier.Name()),
			zap.String("intent", in.Intent.String()),
		)
	}

	resp, _ := g.canned.Respond(ctx, in)
	return resp
}

// Fallback returns the canned general reply without consulting any tier.
// Used when the pipeline itself hit an unexpected fault.
func (g *ResponseGenerator) Fallback(language valueobject.Language) Response {
	resp, _ := g.canned.Respond(context.Background(), ResponseInput{
		Language: language,
		Intent:   valueobject.IntentGeneral,
	})
	return resp
}

func (g *ResponseGenerator) try(ctx context.Context, tier Responder, in ResponseInput) (resp Response, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("Response tier panicked",
				zap.String("tier", tier.Name()),
				zap.Any("panic", rec),
			)
			resp, ok = Response{}, false
		}
	}()
	return tier.Respond(ctx, in)
}

// --- Generative tier ---

// GenerativeResponder asks the LLM for a reply grounded on the business
// facts and retrieved knowledge.
type GenerativeResponder struct {
	llm      LLMClient
	model    valueobject.ModelConfig
	business BusinessProfile
	timeout  time.Duration
	personas PersonaProvider
	logger   *zap.Logger
}

// NewGenerativeResponder returns nil when llm is nil so callers can pass the
// result straight into NewResponseGenerator.
func NewGenerativeResponder(llm LLMClient, model valueobject.ModelConfig, business BusinessProfile, timeout time.Duration, logger *zap.Logger) *GenerativeResponder {
	if llm == nil {
		return nil
	}
	return &GenerativeResponder{
		llm:      llm,
		model:    model,
		business: business,
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "generative-responder")),
	}
}

func (r *GenerativeResponder) Name() string { return "generative" }

// SetPersonas installs operator persona overrides.
func (r *GenerativeResponder) SetPersonas(p PersonaProvider) {
	r.personas = p
}

// Respond implements Responder. Network errors, non-success responses,
// timeouts and blank output all report ok=false.
func (r *GenerativeResponder) Respond(ctx context.Context, in ResponseInput) (Response, bool) {
	if r == nil || r.llm == nil {
		return Response{}, false
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req := &LLMRequest{
		Messages:    r.buildMessages(in),
		Model:       r.model.Model(),
		MaxTokens:   r.model.MaxTokens(),
		Temperature: r.model.Temperature(),
	}

	start := time.Now()
	llmResp, err := r.llm.Generate(ctx, req)
	if err != nil {
		r.logger.Warn("Generation failed",
			zap.String("language", in.Language.String()),
			zap.String("kind", ClassifyLLMFailure(err)),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return Response{}, false
	}
	var text string
	if llmResp != nil {
		text = CleanReply(llmResp.Content)
	}
	if text == "" {
		r.logger.Warn("Generation returned empty content",
			zap.String("language", in.Language.String()),
		)
		return Response{}, false
	}

	resp := Response{
		Text:          text,
		Kind:          KindGenerated,
		Source:        valueobject.SourceAIGenerated,
		Confidence:    ConfidenceGenerated,
		KnowledgeUsed: len(in.Knowledge),
		ModelUsed:     llmResp.ModelUsed,
	}
	if len(in.Knowledge) > 0 {
		resp.Source = valueobject.SourceKnowledgeBase
		resp.Confidence = ConfidenceGeneratedGrounded
	}
	return resp, true
}

func (r *GenerativeResponder) buildMessages(in ResponseInput) []LLMMessage {
	var persona string
	if r.personas != nil {
		persona, _ = r.personas.Persona(in.Language)
	}
	msgs := []LLMMessage{{
		Role:    "system",
		Content: ComposeInstructionsWithPersona(in.Language, persona, r.business, in.Knowledge),
	}}

	history := in.History
	if limit := r.model.HistoryLimit(); limit >= 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	for _, m := range history {
		if m == nil || m.Content().IsBlank() {
			continue
		}
		role := "user"
		if m.IsFromBot() {
			role = "assistant"
		}
		msgs = append(msgs, LLMMessage{Role: role, Content: m.Content().Text()})
	}

	return append(msgs, LLMMessage{Role: "user", Content: in.Utterance})
}

// --- Direct knowledge tier ---

// KnowledgeResponder quotes the most relevant knowledge item when no model
// answer is available.
type KnowledgeResponder struct {
	business BusinessProfile
}

// NewKnowledgeResponder creates the direct knowledge tier.
func NewKnowledgeResponder(business BusinessProfile) *KnowledgeResponder {
	return &KnowledgeResponder{business: business}
}

func (r *KnowledgeResponder) Name() string { return "knowledge" }

// Respond implements Responder.
func (r *KnowledgeResponder) Respond(_ context.Context, in ResponseInput) (Response, bool) {
	if len(in.Knowledge) == 0 {
		return Response{}, false
	}
	top := in.Knowledge[0]
	body := strings.TrimSpace(top.Content)
	if body == "" {
		return Response{}, false
	}
	text := body
	if title := strings.TrimSpace(top.Title); title != "" {
		text = fmt.Sprintf("%s\n\n%s", title, body)
	}
	return Response{
		Text:          text + "\n\n" + r.business.ContactLine(in.Language),
		Kind:          KindGrounded,
		Source:        valueobject.SourceKnowledgeBase,
		Confidence:    top.ConfidenceOr(ConfidenceKnowledge),
		KnowledgeUsed: 1,
	}, true
}

// --- Canned tier ---

// CannedResponder returns the fixed per-intent reply. It always succeeds.
type CannedResponder struct {
	replies map[valueobject.Language]map[valueobject.Intent]string
}

// NewCannedResponder expands the canned templates with business facts once.
func NewCannedResponder(tables *Tables, business BusinessProfile) (*CannedResponder, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	replies := make(map[valueobject.Language]map[valueobject.Intent]string, len(tables.Canned))
	for lang, byIntent := range tables.Canned {
		expanded := make(map[valueobject.Intent]string, len(byIntent))
		for intent, tmpl := range byIntent {
			expanded[intent] = business.Expand(tmpl)
		}
		replies[lang] = expanded
	}
	return &CannedResponder{replies: replies}, nil
}

func (r *CannedResponder) Name() string { return "canned" }

// Reply returns the canned message for intent in language, using the
// general message when the intent has none.
func (r *CannedResponder) Reply(language valueobject.Language, intent valueobject.Intent) string {
	byIntent, ok := r.replies[language]
	if !ok {
		byIntent = r.replies[valueobject.DefaultLanguage]
	}
	if msg := byIntent[intent]; strings.TrimSpace(msg) != "" {
		return msg
	}
	return byIntent[valueobject.IntentGeneral]
}

// Respond implements Responder.
func (r *CannedResponder) Respond(_ context.Context, in ResponseInput) (Response, bool) {
	intent := in.Intent
	if intent == "" {
		intent = valueobject.IntentGeneral
	}
	return Response{
		Text:       r.Reply(in.Language, intent),
		Kind:       KindCanned,
		Source:     valueobject.SourceFallback,
		Intent:     intent,
		Confidence: ConfidenceCanned,
	}, true
}
