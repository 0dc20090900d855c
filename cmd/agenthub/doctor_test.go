package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenthub/internal/adapter/catalog"
	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
)

func TestCheckConfigFile(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")
	assert.Equal(t, StatusWarn, checkConfigFile(missing, nil)(config.Defaults()).Status)

	present := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(present, []byte("{}"), 0o600))
	assert.Equal(t, StatusPass, checkConfigFile(present, nil)(config.Defaults()).Status)

	res := checkConfigFile(present, errors.New("parse config: bad indent"))(nil)
	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "bad indent")
	assert.NotEmpty(t, res.Fix)
}

func TestCheckLLMAPIKey(t *testing.T) {
	assert.Equal(t, StatusFail, checkLLMAPIKey(nil).Status)

	cfg := config.Defaults()
	cfg.LLM.Providers = nil
	assert.Equal(t, StatusFail, checkLLMAPIKey(cfg).Status)

	cfg.LLM.Providers = []config.ProviderConfig{{Name: "openai", Type: "openai"}}
	assert.Equal(t, StatusFail, checkLLMAPIKey(cfg).Status)

	cfg.LLM.Providers = append(cfg.LLM.Providers, config.ProviderConfig{Name: "anthropic", Type: "anthropic", APIKey: "sk-ant"})
	res := checkLLMAPIKey(cfg)
	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, res.Message, "openai")

	cfg.LLM.Providers[0].APIKey = "sk-test"
	assert.Equal(t, StatusPass, checkLLMAPIKey(cfg).Status)
}

func TestCheckModelRouting(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.Providers = []config.ProviderConfig{{Name: "openai", Type: "openai", APIKey: "sk-test"}}
	res := checkModelRouting(cfg)
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "gpt-4o -> openai, gpt-3.5-turbo -> openai (registered: openai)", res.Message)

	t.Run("same tier twice", func(t *testing.T) {
		c := *cfg
		c.Routing.FallbackModel = c.Routing.PrimaryModel
		assert.Equal(t, StatusWarn, checkModelRouting(&c).Status)
	})

	t.Run("provider without key", func(t *testing.T) {
		c := *cfg
		c.Routing.FallbackModel = "claude-3-haiku"
		c.LLM.Providers = []config.ProviderConfig{
			{Name: "openai", Type: "openai", APIKey: "sk-test"},
			{Name: "anthropic", Type: "anthropic"},
		}
		res := checkModelRouting(&c)
		assert.Equal(t, StatusWarn, res.Status)
		assert.Contains(t, res.Message, "anthropic")
	})

	t.Run("no provider for model", func(t *testing.T) {
		c := *cfg
		c.LLM.DefaultProvider = ""
		res := checkModelRouting(&c)
		assert.Equal(t, StatusFail, res.Status)
		assert.Contains(t, res.Message, "registered: openai")
	})
}

func TestCheckSeedFile(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, StatusPass, checkSeedFile(cfg).Status)

	dir := t.TempDir()
	cfg.Catalog.SeedFile = filepath.Join(dir, "agents.yaml")
	assert.Equal(t, StatusFail, checkSeedFile(cfg).Status)

	require.NoError(t, os.WriteFile(cfg.Catalog.SeedFile, []byte(testAgents), 0o600))
	res := checkSeedFile(cfg)
	assert.Equal(t, StatusPass, res.Status)
	assert.Contains(t, res.Message, "3 agents")
}

func TestCheckCatalogMissing(t *testing.T) {
	cfg := config.Defaults()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "agents.db")
	assert.Equal(t, StatusWarn, checkCatalog(cfg).Status)

	cfg.Catalog.Backend = "file"
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "agents.yaml")
	assert.Equal(t, StatusFail, checkCatalog(cfg).Status)
}

func TestInspectCatalog(t *testing.T) {
	ctx := context.Background()
	store, err := catalog.NewSQLiteStore(filepath.Join(t.TempDir(), "agents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	assert.Equal(t, StatusFail, inspectCatalog(ctx, store).Status)

	require.NoError(t, store.Create(ctx, &domain.Agent{Name: "Concierge", IsMaster: true, IsActive: true}))
	res := inspectCatalog(ctx, store)
	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, res.Message, "Concierge")

	require.NoError(t, store.Create(ctx, &domain.Agent{Name: "Billing", Capabilities: []string{"refund"}, IsActive: true}))
	res = inspectCatalog(ctx, store)
	assert.Equal(t, StatusPass, res.Status)
	assert.Contains(t, res.Message, "1 specialists")
}

func TestRunDoctor(t *testing.T) {
	env := newCLIEnv(t, "file", "llm:\n  providers:\n    - name: openai\n      type: openai\n      api_key: sk-test\n")

	var out bytes.Buffer
	require.NoError(t, runDoctor(&out, env.configPath))
	assert.Contains(t, out.String(), "Results: 5 passed, 0 warnings, 0 failed")

	out.Reset()
	err := runDoctor(&out, filepath.Join(env.dir, "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, out.String(), "[WARN] Config file")
}
