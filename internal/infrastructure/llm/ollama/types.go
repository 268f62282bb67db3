package ollama

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Options carries sampling parameters
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// Message represents a chat message
type Message struct {
	Role     string `json:"role"` // "user", "assistant", or "system"
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"` // reasoning models
}

// ChatResponse is a non-streaming /api/chat response
type ChatResponse struct {
	Model           string  `json:"model"`
	CreatedAt       string  `json:"created_at"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}
