package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenthub/internal/domain"
)

const testAgents = `agents:
  - id: concierge
    name: Concierge
    system_prompt: You are the front desk.
    is_master: true
  - id: billing
    name: Billing Assistant
    description: Handles invoices and refunds
    capabilities: [refund, invoice]
    intent_keywords: [billing, payment]
  - id: shipping
    name: Shipping Desk
    description: Tracks parcels
    capabilities: [tracking]
    intent_keywords: [delivery, parcel]
`

type cliEnv struct {
	dir        string
	configPath string
}

// newCLIEnv writes an agents file and a config that points the catalog at
// it. extra is appended to the generated config.
func newCLIEnv(t *testing.T, backend, extra string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	agentsPath := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(agentsPath, []byte(testAgents), 0o600))

	catalogCfg := fmt.Sprintf("catalog:\n  backend: file\n  path: %s\n", agentsPath)
	if backend == "sqlite" {
		catalogCfg = fmt.Sprintf("catalog:\n  backend: sqlite\n  path: %s\n  seed_file: %s\n",
			filepath.Join(dir, "agents.db"), agentsPath)
	}
	cfg := catalogCfg + fmt.Sprintf("logger:\n  level: error\n  output: %s\n", filepath.Join(dir, "agenthub.log")) + extra

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	t.Setenv("AGENTHUB_CONFIG_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	return &cliEnv{dir: dir, configPath: configPath}
}

func (e *cliEnv) appendConfig(t *testing.T, extra string) {
	t.Helper()
	f, err := os.OpenFile(e.configPath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(extra)
	require.NoError(t, err)
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	env := newCLIEnv(t, "file", "")

	out, err := env.run(t, "search", "--json", "I", "need", "a", "refund")
	require.NoError(t, err)

	var results []domain.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results), out)
	require.Len(t, results, 1)
	assert.Equal(t, "billing", results[0].Agent.ID)
	assert.Equal(t, 2+1, results[0].RelevanceScore)
	assert.Equal(t, []string{"refund"}, results[0].MatchedKeywords)
}

func TestSearchCommandText(t *testing.T) {
	env := newCLIEnv(t, "file", "")

	out, err := env.run(t, "search", "parcel delivery")
	require.NoError(t, err)
	assert.Contains(t, out, "Shipping Desk")
	assert.Contains(t, out, "delivery, parcel")

	out, err = env.run(t, "search", "quantum")
	require.NoError(t, err)
	assert.Contains(t, out, `No agents match "quantum"`)
}

func TestAgentsListAndImport(t *testing.T) {
	env := newCLIEnv(t, "sqlite", "")
	auditPath := filepath.Join(env.dir, "audit", "audit.jsonl")
	env.appendConfig(t, fmt.Sprintf("audit:\n  enabled: true\n  path: %s\n", auditPath))

	out, err := env.run(t, "agents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Concierge")
	assert.Contains(t, out, "Billing Assistant")

	extra := filepath.Join(env.dir, "more.json")
	require.NoError(t, os.WriteFile(extra, []byte(`{"agents":[
		{"id":"billing","name":"Billing Again"},
		{"id":"returns","name":"Returns","capabilities":["return"]}
	]}`), 0o600))

	out, err = env.run(t, "agents", "import", extra)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 of 2 agents")

	out, err = env.run(t, "agents", "list", "--json")
	require.NoError(t, err)
	var agents []domain.Agent
	require.NoError(t, json.Unmarshal([]byte(out), &agents))
	assert.Len(t, agents, 4)

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	var event domain.AuditEvent
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &event))
	assert.Equal(t, domain.AuditAgentImport, event.Type)
	assert.Equal(t, extra, event.Resource)
	assert.Equal(t, "1", event.Detail["created"])
}

func TestAgentsImportReadOnlyCatalog(t *testing.T) {
	env := newCLIEnv(t, "file", "")

	out, err := env.run(t, "agents", "import", filepath.Join(env.dir, "agents.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "imported 0 of 3 agents")

	extra := filepath.Join(env.dir, "more.yaml")
	require.NoError(t, os.WriteFile(extra, []byte("agents:\n  - id: returns\n    name: Returns\n"), 0o600))
	_, err = env.run(t, "agents", "import", extra)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// fakeOpenAI answers chat completions; models listed in quota fail with an
// insufficient_quota error.
func fakeOpenAI(t *testing.T, quota ...string) (*httptest.Server, *[]string) {
	t.Helper()
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req.Model)

		w.Header().Set("Content-Type", "application/json")
		for _, q := range quota {
			if q == req.Model {
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
				return
			}
		}
		reply := "echo: " + req.Messages[len(req.Messages)-1].Content
		body, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-test",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}}},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &models
}

func providerConfig(url string) string {
	return fmt.Sprintf(`llm:
  default_provider: openai
  providers:
    - name: openai
      type: openai
      api_key: sk-test
      base_url: %s/v1
`, url)
}

func TestRouteCommandFallsBack(t *testing.T) {
	srv, models := fakeOpenAI(t, "gpt-4o")
	env := newCLIEnv(t, "file", providerConfig(srv.URL))

	out, err := env.run(t, "route", "--json", "refund", "my", "invoice")
	require.NoError(t, err)

	var res domain.RouteResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, "gpt-3.5-turbo", res.ModelUsed)
	assert.Equal(t, []string{"Billing Assistant"}, res.RoutedAgents)
	assert.Equal(t, []string{"gpt-4o", "gpt-3.5-turbo"}, *models)
}

func TestRouteCommandQuotaOnBothTiers(t *testing.T) {
	srv, _ := fakeOpenAI(t, "gpt-4o", "gpt-3.5-turbo")
	env := newCLIEnv(t, "file", providerConfig(srv.URL))

	_, err := env.run(t, "route", "refund")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestChatCommand(t *testing.T) {
	srv, models := fakeOpenAI(t)
	env := newCLIEnv(t, "file", providerConfig(srv.URL))

	out, err := env.run(t, "chat", "--agent", "billing", "--model", "gpt-4o-mini", "--raw", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "echo: hello")
	assert.Equal(t, []string{"gpt-4o-mini"}, *models)

	_, err = env.run(t, "chat", "--agent", "ghost", "hello")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfigEncrypt(t *testing.T) {
	env := newCLIEnv(t, "file", "")
	t.Setenv("AGENTHUB_CONFIG_KEY", "")
	_, err := env.run(t, "config", "encrypt", "sk-secret")
	assert.ErrorContains(t, err, "AGENTHUB_CONFIG_KEY")

	t.Setenv("AGENTHUB_CONFIG_KEY", "passphrase")
	out, err := env.run(t, "config", "encrypt", "sk-secret")
	require.NoError(t, err)
	enc := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(enc, "enc:"))

	// The encrypted value round-trips through config loading.
	cfgWithSecret := fmt.Sprintf("llm:\n  providers:\n    - name: openai\n      type: openai\n      api_key: %q\n", enc)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfgWithSecret), 0o600))
	out, err = env.run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}
