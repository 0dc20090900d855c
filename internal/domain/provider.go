package domain

import "context"

// CompletionRequest is a single system+prompt completion against one model.
type CompletionRequest struct {
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the generated text plus the model that produced it.
type CompletionResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Completer is the interface for any text-completion backend.
type Completer interface {
	// Complete sends one request and returns the generated text.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the provider's identifier (e.g., "openai", "anthropic").
	Name() string
}
