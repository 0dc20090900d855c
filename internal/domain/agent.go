package domain

import (
	"context"
	"time"
)

// Agent is a configured persona that answers user queries through a
// completion service. The catalog owns agents; the routing core only reads them.
type Agent struct {
	ID             string    `json:"id"              yaml:"id"`
	Name           string    `json:"name"            yaml:"name"`
	Description    string    `json:"description"     yaml:"description"`
	Capabilities   []string  `json:"capabilities"    yaml:"capabilities"`
	IntentKeywords []string  `json:"intent_keywords" yaml:"intent_keywords"`
	SystemPrompt   string    `json:"system_prompt"   yaml:"system_prompt"`
	Model          string    `json:"model"           yaml:"model"`
	IsActive       bool      `json:"is_active"       yaml:"is_active"`
	IsMaster       bool      `json:"is_master"       yaml:"is_master"`
	CreatedBy      string    `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"      yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at"      yaml:"-"`
}

// IsSpecialist reports whether the agent is eligible for routing selection.
func (a Agent) IsSpecialist() bool {
	return a.IsActive && !a.IsMaster
}

// SearchResult is one scored match of an agent against a query.
type SearchResult struct {
	Agent           *Agent   `json:"agent"`
	RelevanceScore  int      `json:"relevanceScore"`
	MatchedKeywords []string `json:"matchedKeywords"`
}

// RouteResult is the outcome of a master-agent routing call.
type RouteResult struct {
	Response     string   `json:"response"`
	ModelUsed    string   `json:"modelUsed"`
	RoutedAgents []string `json:"routedAgents"`
}

// ChatResult is the outcome of a direct single-agent chat.
type ChatResult struct {
	Response  string `json:"response"`
	ModelUsed string `json:"modelUsed"`
}

// AgentCatalog is the read side of the agent store used by routing.
type AgentCatalog interface {
	// MasterAgent returns the active master agent, or ErrNotFound if none exists.
	MasterAgent(ctx context.Context) (*Agent, error)
	// Specialists returns all active, non-master agents in catalog order.
	Specialists(ctx context.Context) ([]Agent, error)
}

// AgentStore is the full catalog including the admin write paths.
type AgentStore interface {
	AgentCatalog
	List(ctx context.Context, activeOnly bool) ([]Agent, error)
	Get(ctx context.Context, id string) (*Agent, error)
	Create(ctx context.Context, agent *Agent) error
	Update(ctx context.Context, agent *Agent) error
	Delete(ctx context.Context, id string) error
}

// CatalogStats is a summary of the agent catalog for the admin dashboard.
type CatalogStats struct {
	TotalAgents     int            `json:"totalAgents"`
	ActiveAgents    int            `json:"activeAgents"`
	MasterAvailable bool           `json:"masterAvailable"`
	AgentsByCreator map[string]int `json:"agentsByCreator"`
}
