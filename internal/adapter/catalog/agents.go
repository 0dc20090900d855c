package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"agenthub/internal/domain"
)

// agentsFile is the on-disk layout for agent definitions.
type agentsFile struct {
	Agents []fileAgent `yaml:"agents" json:"agents"`
}

// fileAgent mirrors domain.Agent; agents are active unless is_active is false.
type fileAgent struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Description    string   `yaml:"description" json:"description"`
	Capabilities   []string `yaml:"capabilities" json:"capabilities"`
	IntentKeywords []string `yaml:"intent_keywords" json:"intent_keywords"`
	SystemPrompt   string   `yaml:"system_prompt" json:"system_prompt"`
	Model          string   `yaml:"model" json:"model"`
	IsActive       *bool    `yaml:"is_active" json:"is_active"`
	IsMaster       bool     `yaml:"is_master" json:"is_master"`
	CreatedBy      string   `yaml:"created_by" json:"created_by"`
}

func (f fileAgent) toDomain() domain.Agent {
	return domain.Agent{
		ID:             f.ID,
		Name:           f.Name,
		Description:    f.Description,
		Capabilities:   f.Capabilities,
		IntentKeywords: f.IntentKeywords,
		SystemPrompt:   f.SystemPrompt,
		Model:          f.Model,
		IsActive:       f.IsActive == nil || *f.IsActive,
		IsMaster:       f.IsMaster,
		CreatedBy:      f.CreatedBy,
	}
}

// LoadAgentsFile reads agent definitions from a YAML or JSON file. The format
// is chosen by extension; anything other than .json is parsed as YAML.
func LoadAgentsFile(path string) ([]domain.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var f agentsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse agents file %s: %w", path, err)
	}

	agents := make([]domain.Agent, len(f.Agents))
	for i, fa := range f.Agents {
		agents[i] = fa.toDomain()
		if err := validateAgent(&agents[i]); err != nil {
			return nil, fmt.Errorf("agents file %s: entry %d: %w", path, i, err)
		}
	}
	return agents, nil
}

// validateAgent normalizes agent and rejects entries without a name.
func validateAgent(agent *domain.Agent) error {
	agent.Name = strings.TrimSpace(agent.Name)
	if agent.Name == "" {
		return domain.NewDomainError("validateAgent", domain.ErrInvalidInput, "name is required")
	}
	agent.Capabilities = trimTerms(agent.Capabilities)
	agent.IntentKeywords = trimTerms(agent.IntentKeywords)
	return nil
}

func trimTerms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Import creates each agent in store and returns how many were written.
// Agents whose ID already exists are skipped.
func Import(ctx context.Context, store domain.AgentStore, agents []domain.Agent) (int, error) {
	created := 0
	for i := range agents {
		a := agents[i]
		if a.ID != "" {
			_, err := store.Get(ctx, a.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return created, fmt.Errorf("import %q: %w", a.Name, err)
			}
		}
		if err := store.Create(ctx, &a); err != nil {
			return created, fmt.Errorf("import %q: %w", a.Name, err)
		}
		created++
	}
	return created, nil
}

// Counter reports how many agents a store holds.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// SeedIfEmpty imports the agents in path when store holds no agents yet.
func SeedIfEmpty(ctx context.Context, store interface {
	domain.AgentStore
	Counter
}, path string) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	agents, err := LoadAgentsFile(path)
	if err != nil {
		return 0, err
	}
	return Import(ctx, store, agents)
}
