package catalog

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"agenthub/internal/domain"
)

const (
	cacheSize = 64

	keyMaster      = "master"
	keySpecialists = "specialists"
	keyAll         = "list:all"
	keyActive      = "list:active"
)

// CachedCatalog fronts a store with a short-lived read cache. The routing
// path reads the master and the specialists on every request; writes made
// through the cache purge it.
type CachedCatalog struct {
	domain.AgentStore
	master *expirable.LRU[string, *domain.Agent]
	lists  *expirable.LRU[string, []domain.Agent]
}

// NewCachedCatalog wraps store. A non-positive ttl returns store unchanged.
func NewCachedCatalog(store domain.AgentStore, ttl time.Duration) domain.AgentStore {
	if ttl <= 0 {
		return store
	}
	return &CachedCatalog{
		AgentStore: store,
		master:     expirable.NewLRU[string, *domain.Agent](1, nil, ttl),
		lists:      expirable.NewLRU[string, []domain.Agent](cacheSize, nil, ttl),
	}
}

func (c *CachedCatalog) MasterAgent(ctx context.Context) (*domain.Agent, error) {
	if a, ok := c.master.Get(keyMaster); ok {
		cp := *a
		return &cp, nil
	}
	a, err := c.AgentStore.MasterAgent(ctx)
	if err != nil {
		return nil, err
	}
	c.master.Add(keyMaster, a)
	cp := *a
	return &cp, nil
}

func (c *CachedCatalog) Specialists(ctx context.Context) ([]domain.Agent, error) {
	return c.cachedList(keySpecialists, func() ([]domain.Agent, error) {
		return c.AgentStore.Specialists(ctx)
	})
}

func (c *CachedCatalog) List(ctx context.Context, activeOnly bool) ([]domain.Agent, error) {
	key := keyAll
	if activeOnly {
		key = keyActive
	}
	return c.cachedList(key, func() ([]domain.Agent, error) {
		return c.AgentStore.List(ctx, activeOnly)
	})
}

func (c *CachedCatalog) cachedList(key string, load func() ([]domain.Agent, error)) ([]domain.Agent, error) {
	if agents, ok := c.lists.Get(key); ok {
		return append([]domain.Agent{}, agents...), nil
	}
	agents, err := load()
	if err != nil {
		return nil, err
	}
	c.lists.Add(key, agents)
	return append([]domain.Agent{}, agents...), nil
}

func (c *CachedCatalog) Create(ctx context.Context, agent *domain.Agent) error {
	defer c.Invalidate()
	return c.AgentStore.Create(ctx, agent)
}

func (c *CachedCatalog) Update(ctx context.Context, agent *domain.Agent) error {
	defer c.Invalidate()
	return c.AgentStore.Update(ctx, agent)
}

func (c *CachedCatalog) Delete(ctx context.Context, id string) error {
	defer c.Invalidate()
	return c.AgentStore.Delete(ctx, id)
}

// Invalidate drops every cached entry.
func (c *CachedCatalog) Invalidate() {
	c.master.Purge()
	c.lists.Purge()
}

// Count forwards to the wrapped store when it can count.
func (c *CachedCatalog) Count(ctx context.Context) (int, error) {
	if counter, ok := c.AgentStore.(Counter); ok {
		return counter.Count(ctx)
	}
	agents, err := c.AgentStore.List(ctx, false)
	return len(agents), err
}
