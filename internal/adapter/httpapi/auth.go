package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agenthub/internal/domain"
)

// principal reads the caller identity set by the upstream authenticating
// proxy and stores it on the request context.
func (s *Server) principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := domain.Principal{
			Email:  strings.TrimSpace(c.GetHeader(s.access.UserHeader)),
			UserID: strings.TrimSpace(c.GetHeader(s.access.UserIDHeader)),
		}
		if p.Email != "" || p.UserID != "" {
			c.Request = c.Request.WithContext(domain.WithPrincipal(c.Request.Context(), p))
		}
		c.Next()
	}
}

// requireAdmin rejects callers the authorizer does not recognise as admins.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := domain.PrincipalFrom(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Error: "Authentication required",
				Code:  domain.CodeAuthInvalid,
			})
			return
		}
		if s.deps.Authz == nil {
			s.respondError(c, "authorize", domain.NewDomainError("requireAdmin", domain.ErrForbidden, "no authorizer configured"))
			return
		}
		admin, err := s.deps.Authz.IsAdmin(c.Request.Context(), p)
		if err != nil {
			s.respondError(c, "authorize", catalogErr(err))
			return
		}
		if !admin {
			s.audit(c, domain.AuditEvent{
				Type:     domain.AuditAccessDenied,
				Resource: c.Request.Method + " " + c.FullPath(),
				Outcome:  "denied",
			})
			s.respondError(c, "authorize", domain.NewDomainError("requireAdmin", domain.ErrForbidden, p.Email))
			return
		}
		c.Next()
	}
}

// audit records event for the current caller. Audit failures are logged and
// never fail the request.
func (s *Server) audit(c *gin.Context, event domain.AuditEvent) {
	if s.deps.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	if event.Actor == "" {
		event.Actor = domain.ActorOf(ctx)
	}
	if event.Outcome == "" {
		event.Outcome = "success"
	}
	if err := s.deps.Audit.Log(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit write failed", "type", event.Type, "error", err)
	}
}
