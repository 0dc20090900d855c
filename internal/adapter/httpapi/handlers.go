package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"agenthub/internal/domain"
	"agenthub/internal/usecase"
	"agenthub/internal/usecase/multiagent"
)

type masterAgentRequest struct {
	Message string `json:"message"`
}

type agentChatRequest struct {
	Message      string `json:"message"`
	AgentID      string `json:"agentId"`
	SystemPrompt string `json:"systemPrompt"`
	Model        string `json:"model"`
}

// agentRequest is the create/update payload. Omitted is_active means active.
type agentRequest struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Capabilities   []string `json:"capabilities"`
	IntentKeywords []string `json:"intent_keywords"`
	SystemPrompt   string   `json:"system_prompt"`
	Model          string   `json:"model"`
	IsActive       *bool    `json:"is_active"`
	IsMaster       bool     `json:"is_master"`
}

func (r agentRequest) toAgent() domain.Agent {
	return domain.Agent{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Capabilities:   r.Capabilities,
		IntentKeywords: r.IntentKeywords,
		SystemPrompt:   r.SystemPrompt,
		Model:          r.Model,
		IsActive:       r.IsActive == nil || *r.IsActive,
		IsMaster:       r.IsMaster,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleMasterAgent(c *gin.Context) {
	var req masterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "master-agent", badRequest(err.Error()))
		return
	}
	res, err := s.deps.Router.Route(c.Request.Context(), req.Message)
	if err != nil {
		s.respondError(c, "master-agent", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleAgentChat(c *gin.Context) {
	var req agentChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "agent-chat", badRequest(err.Error()))
		return
	}
	res, err := s.deps.Chat.Chat(c.Request.Context(), usecase.ChatRequest{
		Message:      req.Message,
		AgentID:      req.AgentID,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
	})
	if err != nil {
		s.respondError(c, "agent-chat", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListAgents(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	agents, err := s.deps.Agents.List(c.Request.Context(), !includeInactive)
	if err != nil {
		s.respondError(c, "list agents", catalogErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// handleSearchAgents scores every active agent against q.
func (s *Server) handleSearchAgents(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	agents, err := s.deps.Agents.List(c.Request.Context(), true)
	if err != nil {
		s.respondError(c, "search agents", catalogErr(err))
		return
	}
	results := multiagent.Search(agents, q)
	c.JSON(http.StatusOK, gin.H{"query": q, "results": results})
}

func (s *Server) handleGetAgent(c *gin.Context) {
	agent, err := s.deps.Agents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, "get agent", catalogErr(err))
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (s *Server) handleCreateAgent(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "create agent", badRequest(err.Error()))
		return
	}
	agent := req.toAgent()
	if p, ok := domain.PrincipalFrom(c.Request.Context()); ok {
		agent.CreatedBy = p.UserID
		if agent.CreatedBy == "" {
			agent.CreatedBy = p.Email
		}
	}
	if err := s.deps.Agents.Create(c.Request.Context(), &agent); err != nil {
		s.respondError(c, "create agent", catalogErr(err))
		return
	}
	s.logger.InfoContext(c.Request.Context(), "agent created", "id", agent.ID, "name", agent.Name, "by", agent.CreatedBy)
	s.audit(c, domain.AuditEvent{
		Type:     domain.AuditAgentCreate,
		Resource: "agent/" + agent.ID,
		Detail:   map[string]string{"name": agent.Name},
	})
	c.JSON(http.StatusCreated, agent)
}

func (s *Server) handleUpdateAgent(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, "update agent", badRequest(err.Error()))
		return
	}
	agent := req.toAgent()
	agent.ID = c.Param("id")
	if err := s.deps.Agents.Update(c.Request.Context(), &agent); err != nil {
		s.respondError(c, "update agent", catalogErr(err))
		return
	}
	updated, err := s.deps.Agents.Get(c.Request.Context(), agent.ID)
	if err != nil {
		s.respondError(c, "update agent", catalogErr(err))
		return
	}
	s.logger.InfoContext(c.Request.Context(), "agent updated", "id", agent.ID)
	s.audit(c, domain.AuditEvent{
		Type:     domain.AuditAgentUpdate,
		Resource: "agent/" + agent.ID,
		Detail:   map[string]string{"name": updated.Name, "is_active": strconv.FormatBool(updated.IsActive)},
	})
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteAgent(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Agents.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, "delete agent", catalogErr(err))
		return
	}
	s.logger.InfoContext(c.Request.Context(), "agent deleted", "id", id)
	s.audit(c, domain.AuditEvent{Type: domain.AuditAgentDelete, Resource: "agent/" + id})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := usecase.CatalogStats(c.Request.Context(), s.deps.Agents)
	if err != nil {
		s.respondError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
