package usecase

import (
	"context"
	"strings"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
)

// AgentLister lists catalog entries, including inactive ones.
type AgentLister interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Agent, error)
}

// AccessPolicy implements domain.Authorizer. A principal is an admin when
// their email is on the allow-list or, if enabled, when they created an agent.
type AccessPolicy struct {
	admins          map[string]struct{}
	ownersAreAdmins bool
	agents          AgentLister
}

// NewAccessPolicy builds the policy from cfg. agents may be nil when
// ownership-based access is disabled.
func NewAccessPolicy(cfg config.AccessConfig, agents AgentLister) *AccessPolicy {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &AccessPolicy{
		admins:          admins,
		ownersAreAdmins: cfg.OwnersAreAdmins && agents != nil,
		agents:          agents,
	}
}

// IsAdmin reports whether p may manage the agent catalog.
func (a *AccessPolicy) IsAdmin(ctx context.Context, p domain.Principal) (bool, error) {
	email := normalizeEmail(p.Email)
	if email == "" && p.UserID == "" {
		return false, nil
	}
	if _, ok := a.admins[email]; ok && email != "" {
		return true, nil
	}
	if !a.ownersAreAdmins {
		return false, nil
	}

	agents, err := a.agents.List(ctx, false)
	if err != nil {
		return false, domain.WrapOp("AccessPolicy.IsAdmin", err)
	}
	for _, ag := range agents {
		owner := strings.TrimSpace(ag.CreatedBy)
		if owner == "" {
			continue
		}
		if (p.UserID != "" && owner == p.UserID) || (email != "" && normalizeEmail(owner) == email) {
			return true, nil
		}
	}
	return false, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
