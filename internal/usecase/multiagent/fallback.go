package multiagent

import (
	"context"
	"log/slog"

	"agenthub/internal/domain"
	"agenthub/internal/usecase"
)

// QuotaDetector decides whether a completion error should trigger the
// fallback model.
type QuotaDetector interface {
	IsQuotaError(err error) bool
}

// twoTierCompleter calls the primary model and, on a quota error only,
// retries exactly once with the fallback model and identical inputs.
type twoTierCompleter struct {
	completer  domain.Completer
	detector   QuotaDetector
	classifier *usecase.ErrorClassifier
	primary    string
	fallback   string
	logger     *slog.Logger
}

// complete returns the response along with the model that produced it.
// Errors are returned unmodified.
func (t *twoTierCompleter) complete(ctx context.Context, system, prompt string) (*domain.CompletionResponse, string, error) {
	req := domain.CompletionRequest{System: system, Prompt: prompt, Model: t.primary}

	resp, err := t.attempt(ctx, "primary", req)
	if err == nil {
		return resp, t.primary, nil
	}
	cl := t.classifier.Classify(err)
	if !t.detector.IsQuotaError(err) {
		t.logger.WarnContext(ctx, "primary model failed",
			"primary", t.primary, "category", cl.Category.String(), "status", cl.StatusCode, "error", err)
		return nil, "", err
	}

	t.logger.WarnContext(ctx, "primary model failed, falling back",
		"primary", t.primary, "fallback", t.fallback,
		"category", cl.Category.String(), "status", cl.StatusCode, "error", err)

	req.Model = t.fallback
	resp, err = t.attempt(ctx, "fallback", req)
	if err != nil {
		return nil, "", err
	}
	return resp, t.fallback, nil
}

func (t *twoTierCompleter) attempt(ctx context.Context, stage string, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	resp, err := t.completer.Complete(ctx, req)
	if err != nil {
		t.logger.DebugContext(ctx, "completion attempt failed", "stage", stage, "model", req.Model, "error", err)
		return nil, err
	}
	t.logger.DebugContext(ctx, "completion attempt succeeded", "stage", stage, "model", req.Model)
	return resp, nil
}
