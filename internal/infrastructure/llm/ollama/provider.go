package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/domain/service"
	llm "github.com/ngoclaw/sitebot/internal/infrastructure/llm"
)

func init() {
	llm.RegisterFactory("ollama", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider talks to a local Ollama server through /api/chat.
type Provider struct {
	name       string
	baseURL    string
	models     []string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an Ollama provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Provider{
		name:    cfg.Name,
		baseURL: baseURL,
		models:  cfg.Models,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With(zap.String("provider", cfg.Name), zap.String("type", "ollama")),
	}
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string     { return p.name }
func (p *Provider) Models() []string { return p.models }

// SupportsModel accepts every model when no list is configured.
func (p *Provider) SupportsModel(model string) bool {
	if len(p.models) == 0 {
		return true
	}
	model = stripPrefix(model)
	for _, m := range p.models {
		if stripPrefix(m) == model {
			return true
		}
	}
	return false
}

// IsAvailable always reports true; Ollama needs no credentials and
// connection failures are handled by the router's circuit breaker.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return true
}

// Generate sends a non-streaming chat request and returns the complete response
func (p *Provider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	chatReq := ChatRequest{
		Model:    stripPrefix(req.Model),
		Messages: make([]Message, 0, len(req.Messages)),
		Stream:   false,
		Options: &Options{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, Message{Role: m.Role, Content: m.Content})
	}

	jsonData, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &service.LLMResponse{
		Content:    chatResp.Message.Content,
		ModelUsed:  chatResp.Model,
		TokensUsed: chatResp.PromptEvalCount + chatResp.EvalCount,
	}, nil
}

func stripPrefix(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}
