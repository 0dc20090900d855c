package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"agenthub/internal/domain"
)

// AgentGetter resolves a single catalog entry by ID.
type AgentGetter interface {
	Get(ctx context.Context, id string) (*domain.Agent, error)
}

// ChatRequest asks one agent to answer a message directly. Either AgentID or
// SystemPrompt identifies the persona.
type ChatRequest struct {
	Message      string
	AgentID      string
	SystemPrompt string
	Model        string
}

// ChatService talks to a single agent without routing or fallback.
type ChatService struct {
	agents       AgentGetter
	completer    domain.Completer
	defaultModel string
	logger       *slog.Logger
}

// NewChatService creates a ChatService. defaultModel is used when neither the
// request nor the agent names a model.
func NewChatService(agents AgentGetter, completer domain.Completer, defaultModel string, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ChatService{agents: agents, completer: completer, defaultModel: defaultModel, logger: logger}
}

// Chat sends req.Message to the selected agent and returns its reply.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*domain.ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.NewDomainError("ChatService.Chat", domain.ErrInvalidInput, "message is required")
	}

	system, model := req.SystemPrompt, req.Model
	if req.AgentID != "" {
		agent, err := s.resolve(ctx, req.AgentID)
		if err != nil {
			return nil, err
		}
		system = agent.SystemPrompt
		if model == "" {
			model = agent.Model
		}
	} else if strings.TrimSpace(system) == "" {
		return nil, domain.NewDomainError("ChatService.Chat", domain.ErrInvalidInput, "agentId or systemPrompt is required")
	}
	if model == "" {
		model = s.defaultModel
	}

	resp, err := s.completer.Complete(ctx, domain.CompletionRequest{
		System: system,
		Prompt: req.Message,
		Model:  model,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "agent chat failed", "agent_id", req.AgentID, "model", model, "error", err)
		return nil, err
	}
	return &domain.ChatResult{Response: resp.Text, ModelUsed: model}, nil
}

func (s *ChatService) resolve(ctx context.Context, id string) (*domain.Agent, error) {
	if s.agents == nil {
		return nil, domain.NewDomainError("ChatService.Chat", domain.ErrNotFound, "agent "+id)
	}
	agent, err := s.agents.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.NewDomainError("ChatService.Chat", domain.ErrNotFound, "agent "+id)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	case !agent.IsActive:
		return nil, domain.NewDomainError("ChatService.Chat", domain.ErrNotFound, "agent "+id+" is inactive")
	}
	return agent, nil
}
