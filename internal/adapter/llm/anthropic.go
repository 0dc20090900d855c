package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
)

// AnthropicProvider completes prompts through the Anthropic Messages API.
type AnthropicProvider struct {
	name      string
	client    anthropic.Client
	maxTokens int
	logger    *slog.Logger
}

// NewAnthropicProvider creates an Anthropic provider from cfg.
func NewAnthropicProvider(cfg config.ProviderConfig, logger *slog.Logger) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(NewHTTPClient(cfg)),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	name := cfg.Name
	if name == "" {
		name = "anthropic"
	}
	return &AnthropicProvider{
		name:      name,
		client:    anthropic.NewClient(opts...),
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// Complete implements domain.Completer.
func (p *AnthropicProvider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens(req, p.maxTokens)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.mapError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	p.logger.Debug("anthropic completion",
		"provider", p.name,
		"model", msg.Model,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
	)

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	model := string(msg.Model)
	if model == "" {
		model = req.Model
	}
	return &domain.CompletionResponse{
		Text:  text.String(),
		Model: model,
		Usage: domain.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

func (p *AnthropicProvider) mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return mapAPIError("Anthropic.Complete", apiErr.StatusCode, "", err)
	}
	return fmt.Errorf("Anthropic.Complete: %w", err)
}

// Name implements domain.Completer.
func (p *AnthropicProvider) Name() string { return p.name }

var _ domain.Completer = (*AnthropicProvider)(nil)
