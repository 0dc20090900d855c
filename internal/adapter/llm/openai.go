package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
)

// OpenAIProvider completes prompts through the OpenAI chat completions API,
// or any service that speaks it when BaseURL is set.
type OpenAIProvider struct {
	name      string
	client    *openai.Client
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAIProvider creates an OpenAI-compatible provider from cfg.
func NewOpenAIProvider(cfg config.ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = NewHTTPClient(cfg)

	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAIProvider{
		name:      name,
		client:    openai.NewClientWithConfig(clientCfg),
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// Complete implements domain.Completer.
func (p *OpenAIProvider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 || p.maxTokens > 0 {
		chatReq.MaxTokens = maxTokens(req, p.maxTokens)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, p.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewDomainError("OpenAI.Complete", domain.ErrProviderError, "empty choices in response")
	}

	p.logger.Debug("openai completion",
		"provider", p.name,
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &domain.CompletionResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Type
		if s, ok := apiErr.Code.(string); ok && s != "" {
			code = s
		}
		return mapAPIError("OpenAI.Complete", apiErr.HTTPStatusCode, code, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return mapAPIError("OpenAI.Complete", reqErr.HTTPStatusCode, "", err)
	}
	return fmt.Errorf("OpenAI.Complete: %w", err)
}

// Name implements domain.Completer.
func (p *OpenAIProvider) Name() string { return p.name }

var _ domain.Completer = (*OpenAIProvider)(nil)
