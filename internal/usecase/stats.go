package usecase

import (
	"context"
	"fmt"

	"agenthub/internal/domain"
)

// CatalogStats summarizes the catalog for the admin dashboard. Per-creator
// counts include active agents only.
func CatalogStats(ctx context.Context, agents AgentLister) (*domain.CatalogStats, error) {
	all, err := agents.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	stats := &domain.CatalogStats{
		TotalAgents:     len(all),
		AgentsByCreator: make(map[string]int),
	}
	for _, a := range all {
		if !a.IsActive {
			continue
		}
		stats.ActiveAgents++
		if a.IsMaster {
			stats.MasterAvailable = true
		}
		if a.CreatedBy != "" {
			stats.AgentsByCreator[a.CreatedBy]++
		}
	}
	return stats, nil
}
