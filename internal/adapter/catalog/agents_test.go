package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenthub/internal/domain"
)

const sampleAgentsYAML = `agents:
  - id: concierge
    name: Concierge
    description: Front desk that routes requests
    system_prompt: You coordinate the specialists.
    is_master: true
  - id: billing
    name: Billing Assistant
    description: Handles invoices and refunds
    capabilities: [refund, invoice]
    intent_keywords: [billing, payment]
    created_by: ops@example.com
  - name: Legacy Support
    is_active: false
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAgentsFileYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "agents.yaml", sampleAgentsYAML)

	agents, err := LoadAgentsFile(path)
	require.NoError(t, err)
	require.Len(t, agents, 3)

	assert.True(t, agents[0].IsMaster)
	assert.True(t, agents[0].IsActive, "is_active defaults to true")
	assert.Equal(t, []string{"refund", "invoice"}, agents[1].Capabilities)
	assert.Equal(t, []string{"billing", "payment"}, agents[1].IntentKeywords)
	assert.Equal(t, "ops@example.com", agents[1].CreatedBy)
	assert.False(t, agents[2].IsActive)
}

func TestLoadAgentsFileJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "agents.json", `{"agents": [
		{"id": "billing", "name": "Billing", "capabilities": ["refund"], "is_active": true}
	]}`)

	agents, err := LoadAgentsFile(path)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "billing", agents[0].ID)
	assert.Equal(t, []string{"refund"}, agents[0].Capabilities)
}

func TestLoadAgentsFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAgentsFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadAgentsFile(writeFile(t, dir, "bad.yaml", "agents: [unclosed"))
	assert.ErrorContains(t, err, "parse agents file")

	_, err = LoadAgentsFile(writeFile(t, dir, "noname.yaml", "agents:\n  - description: nameless\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestImportSkipsExisting(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	agents, err := LoadAgentsFile(writeFile(t, t.TempDir(), "agents.yaml", sampleAgentsYAML))
	require.NoError(t, err)

	n, err := Import(ctx, s, agents)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Re-importing skips entries with known IDs; the nameless-ID entry is new again.
	n, err = Import(ctx, s, agents)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportIntoReadOnlyStore(t *testing.T) {
	fs, err := NewFileStore(writeFile(t, t.TempDir(), "agents.yaml", sampleAgentsYAML), nil)
	require.NoError(t, err)

	_, err = Import(context.Background(), fs, []domain.Agent{{Name: "New"}})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSeedIfEmpty(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "agents.yaml", sampleAgentsYAML)

	n, err := SeedIfEmpty(ctx, s, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = SeedIfEmpty(ctx, s, path)
	require.NoError(t, err)
	assert.Zero(t, n, "non-empty catalog is not reseeded")
}
