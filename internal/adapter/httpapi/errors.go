package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"agenthub/internal/domain"
)

const genericMessage = "Failed to process request"

type errorBody struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

// statusFor maps an error to its HTTP status. Completion errors with no
// recognised sentinel are upstream failures.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoMasterAgent), errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// clientMessage keeps server-side detail out of responses.
func clientMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid request"
	case http.StatusNotFound:
		return "Agent not found"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusConflict:
		return "Conflicts with an existing agent"
	default:
		return genericMessage
	}
}

// respondError logs err and writes the JSON error body.
func (s *Server) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	code := domain.ErrorCodeOf(err)
	if status == http.StatusGatewayTimeout {
		code = domain.CodeUnknown
	}

	ctx := c.Request.Context()
	cl := s.classifier.Classify(err)
	attrs := []any{"error", err, "status", status, "code", code,
		"category", cl.Category.String(), "upstream_status", cl.StatusCode}
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		s.logger.ErrorContext(ctx, op+" failed", attrs...)
	} else {
		s.logger.WarnContext(ctx, op+" rejected", attrs...)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: clientMessage(status), Code: code})
}

// catalogErr marks unclassified store failures as catalog outages.
func catalogErr(err error) error {
	if domain.ErrorCodeOf(err) == domain.CodeUnknown {
		return fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	return err
}

func badRequest(detail string) error {
	return domain.NewDomainError("httpapi", domain.ErrInvalidInput, detail)
}
