package service

import "context"

// LLMClient is the external text-generation capability.
// It decouples the response generator from specific provider implementations.
type LLMClient interface {
	// Generate sends the instruction block and history, returning a full response.
	Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// LLMRequest is the request sent to the language model
type LLMRequest struct {
	Messages    []LLMMessage `json:"messages"`
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature"`
}

// LLMMessage represents a single message in the conversation
type LLMMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// LLMResponse is the response from the language model
type LLMResponse struct {
	Content    string `json:"content"`
	ModelUsed  string `json:"model_used"`
	TokensUsed int    `json:"tokens_used"`
}
