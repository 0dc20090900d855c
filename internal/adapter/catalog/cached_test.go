package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenthub/internal/domain"
)

// countingStore counts reads that reach the wrapped store.
type countingStore struct {
	domain.AgentStore
	masterCalls      int
	specialistsCalls int
	listCalls        int
	masterErr        error
}

func (c *countingStore) MasterAgent(ctx context.Context) (*domain.Agent, error) {
	c.masterCalls++
	if c.masterErr != nil {
		return nil, c.masterErr
	}
	return c.AgentStore.MasterAgent(ctx)
}

func (c *countingStore) Specialists(ctx context.Context) ([]domain.Agent, error) {
	c.specialistsCalls++
	return c.AgentStore.Specialists(ctx)
}

func (c *countingStore) List(ctx context.Context, activeOnly bool) ([]domain.Agent, error) {
	c.listCalls++
	return c.AgentStore.List(ctx, activeOnly)
}

func TestCachedCatalogPassThrough(t *testing.T) {
	s := newTestSQLite(t)
	assert.Same(t, domain.AgentStore(s), NewCachedCatalog(s, 0))
}

func TestCachedCatalogCachesReads(t *testing.T) {
	inner := &countingStore{AgentStore: newTestSQLite(t)}
	ctx := context.Background()
	mustCreate(t, inner, domain.Agent{Name: "Concierge", IsMaster: true, IsActive: true})
	mustCreate(t, inner, domain.Agent{Name: "Billing", IsActive: true})

	c := NewCachedCatalog(inner, time.Minute)
	for range 3 {
		m, err := c.MasterAgent(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Concierge", m.Name)

		sp, err := c.Specialists(ctx)
		require.NoError(t, err)
		assert.Len(t, sp, 1)

		_, err = c.List(ctx, true)
		require.NoError(t, err)
		_, err = c.List(ctx, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.masterCalls)
	assert.Equal(t, 1, inner.specialistsCalls)
	assert.Equal(t, 2, inner.listCalls)
}

func TestCachedCatalogWritesInvalidate(t *testing.T) {
	inner := &countingStore{AgentStore: newTestSQLite(t)}
	ctx := context.Background()
	c := NewCachedCatalog(inner, time.Minute)

	sp, err := c.Specialists(ctx)
	require.NoError(t, err)
	assert.Empty(t, sp)

	a := mustCreate(t, c, domain.Agent{Name: "Billing", IsActive: true})
	sp, err = c.Specialists(ctx)
	require.NoError(t, err)
	assert.Len(t, sp, 1)

	require.NoError(t, c.Delete(ctx, a.ID))
	sp, err = c.Specialists(ctx)
	require.NoError(t, err)
	assert.Empty(t, sp)
	assert.Equal(t, 3, inner.specialistsCalls)
}

func TestCachedCatalogErrorsNotCached(t *testing.T) {
	inner := &countingStore{AgentStore: newTestSQLite(t), masterErr: errors.New("db locked")}
	c := NewCachedCatalog(inner, time.Minute)

	_, err := c.MasterAgent(context.Background())
	assert.Error(t, err)
	_, err = c.MasterAgent(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, inner.masterCalls)
}

func TestCachedCatalogReturnsCopies(t *testing.T) {
	inner := newTestSQLite(t)
	mustCreate(t, inner, domain.Agent{Name: "Billing", IsActive: true})
	c := NewCachedCatalog(inner, time.Minute)
	ctx := context.Background()

	first, err := c.Specialists(ctx)
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := c.Specialists(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Billing", second[0].Name)
}

func TestCachedCatalogExpiry(t *testing.T) {
	inner := &countingStore{AgentStore: newTestSQLite(t)}
	c := NewCachedCatalog(inner, 50*time.Millisecond)
	ctx := context.Background()

	_, err := c.Specialists(ctx)
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)
	_, err = c.Specialists(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.specialistsCalls)
}
