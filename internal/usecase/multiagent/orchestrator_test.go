package multiagent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
)

type mockCatalog struct {
	master      *domain.Agent
	masterErr   error
	specialists []domain.Agent
	listErr     error
}

func (m *mockCatalog) MasterAgent(context.Context) (*domain.Agent, error) {
	if m.masterErr != nil {
		return nil, m.masterErr
	}
	if m.master == nil {
		return nil, domain.ErrNotFound
	}
	return m.master, nil
}

func (m *mockCatalog) Specialists(context.Context) ([]domain.Agent, error) {
	return m.specialists, m.listErr
}

// mockCompleter returns one scripted outcome per call, in order.
type mockCompleter struct {
	mu       sync.Mutex
	outcomes []outcome
	calls    []domain.CompletionRequest
}

type outcome struct {
	text string
	err  error
}

func (m *mockCompleter) Complete(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if len(m.outcomes) == 0 {
		return nil, errors.New("unexpected completion call")
	}
	o := m.outcomes[0]
	m.outcomes = m.outcomes[1:]
	if o.err != nil {
		return nil, o.err
	}
	return &domain.CompletionResponse{Text: o.text, Model: req.Model}, nil
}

func (m *mockCompleter) Name() string { return "mock" }

func testRouting() config.RoutingConfig {
	return config.RoutingConfig{
		PrimaryModel:   "primary-model",
		FallbackModel:  "fallback-model",
		MaxSpecialists: 3,
		TaskPrompt:     "TASK",
		Guidance:       "GUIDANCE",
	}
}

func masterAgent() *domain.Agent {
	return &domain.Agent{ID: "m", Name: "Knocker", SystemPrompt: "You are the concierge.", IsActive: true, IsMaster: true}
}

func TestRouteTopThreeOfFive(t *testing.T) {
	catalog := &mockCatalog{
		master: masterAgent(),
		specialists: []domain.Agent{
			{Name: "Returns", Description: "Handles refund requests", Capabilities: []string{"refund"}, IsActive: true},
			{Name: "Billing", IntentKeywords: []string{"refund", "charge"}, Capabilities: []string{"payments", "refund"}, IsActive: true},
			{Name: "Weather", IntentKeywords: []string{"forecast"}, IsActive: true},
			{Name: "Orders", IntentKeywords: []string{"refund status"}, IsActive: true},
			{Name: "Gifts", Description: "refund of gift cards", IsActive: true},
		},
	}
	completer := &mockCompleter{outcomes: []outcome{{text: "Here is your answer"}}}
	o := NewOrchestrator(catalog, completer, testRouting(), nil)

	got, err := o.Route(context.Background(), "I need a refund")
	require.NoError(t, err)
	assert.Equal(t, "Here is your answer", got.Response)
	assert.Equal(t, "primary-model", got.ModelUsed)
	assert.Equal(t, []string{"Billing", "Returns", "Orders"}, got.RoutedAgents)

	require.Len(t, completer.calls, 1)
	call := completer.calls[0]
	assert.Equal(t, "primary-model", call.Model)
	assert.Equal(t, "TASK", call.Prompt)
	assert.True(t, strings.HasPrefix(call.System, "You are the concierge.\n\nAvailable Specialist Agents:\n"))
	assert.Contains(t, call.System, "\n- Billing: \n  Capabilities: payments, refund\n  Relevance Score: 5\n")
	assert.Contains(t, call.System, "\n- Returns: Handles refund requests\n  Capabilities: refund\n  Relevance Score: 3\n")
	assert.NotContains(t, call.System, "Weather")
	assert.NotContains(t, call.System, "Gifts")
	assert.True(t, strings.HasSuffix(call.System, "\n\nCurrent user request: \"I need a refund\"\n\nGUIDANCE"))
}

func TestRouteNoMatchesStillCompletes(t *testing.T) {
	catalog := &mockCatalog{
		master:      masterAgent(),
		specialists: []domain.Agent{{Name: "Weather", IntentKeywords: []string{"forecast"}, IsActive: true}},
	}
	completer := &mockCompleter{outcomes: []outcome{{text: "hello"}}}
	o := NewOrchestrator(catalog, completer, testRouting(), nil)

	got, err := o.Route(context.Background(), "hi")
	require.NoError(t, err)
	assert.NotNil(t, got.RoutedAgents)
	assert.Empty(t, got.RoutedAgents)
	assert.Equal(t,
		"You are the concierge.\n\nAvailable Specialist Agents:\n\n\nCurrent user request: \"hi\"\n\nGUIDANCE",
		completer.calls[0].System)
}

func TestRouteFallbackOnQuota(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"you exceeded", errors.New("You exceeded your current quota, please check your plan and billing details")},
		{"insufficient_quota", errors.New("error code: insufficient_quota")},
		{"rate limit", errors.New("Rate limit reached for requests")},
		{"sentinel", fmt.Errorf("OpenAI.Complete: %w", domain.ErrQuotaExceeded)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &mockCompleter{outcomes: []outcome{{err: tt.err}, {text: "from fallback"}}}
			o := NewOrchestrator(&mockCatalog{master: masterAgent()}, completer, testRouting(), nil)

			got, err := o.Route(context.Background(), "refund please")
			require.NoError(t, err)
			assert.Equal(t, "fallback-model", got.ModelUsed)
			assert.Equal(t, "from fallback", got.Response)

			require.Len(t, completer.calls, 2)
			assert.Equal(t, "primary-model", completer.calls[0].Model)
			assert.Equal(t, "fallback-model", completer.calls[1].Model)
			assert.Equal(t, completer.calls[0].System, completer.calls[1].System)
			assert.Equal(t, completer.calls[0].Prompt, completer.calls[1].Prompt)
		})
	}
}

func TestRouteNoFallbackOnOtherErrors(t *testing.T) {
	primaryErr := errors.New("invalid request: malformed JSON")
	completer := &mockCompleter{outcomes: []outcome{{err: primaryErr}, {text: "never"}}}
	o := NewOrchestrator(&mockCatalog{master: masterAgent()}, completer, testRouting(), nil)

	got, err := o.Route(context.Background(), "refund please")
	assert.Nil(t, got)
	assert.Same(t, primaryErr, err)
	assert.Len(t, completer.calls, 1)
}

func TestRouteFallbackFailureReturnsFallbackError(t *testing.T) {
	fallbackErr := errors.New("You exceeded your current quota")
	completer := &mockCompleter{outcomes: []outcome{
		{err: errors.New("insufficient_quota")},
		{err: fallbackErr},
		{text: "never"},
	}}
	o := NewOrchestrator(&mockCatalog{master: masterAgent()}, completer, testRouting(), nil)

	_, err := o.Route(context.Background(), "refund please")
	assert.Same(t, fallbackErr, err)
	assert.Len(t, completer.calls, 2, "fallback must be attempted exactly once")
}

func TestRouteNoMaster(t *testing.T) {
	completer := &mockCompleter{}
	o := NewOrchestrator(&mockCatalog{}, completer, testRouting(), nil)

	_, err := o.Route(context.Background(), "refund please")
	assert.ErrorIs(t, err, domain.ErrNoMasterAgent)
	assert.Equal(t, domain.CodeNoMasterAgent, domain.ErrorCodeOf(err))
	assert.Empty(t, completer.calls)
}

func TestRouteCatalogErrors(t *testing.T) {
	storeErr := errors.New("database is locked")
	tests := []struct {
		name    string
		catalog *mockCatalog
	}{
		{"master lookup", &mockCatalog{masterErr: storeErr}},
		{"specialist listing", &mockCatalog{master: masterAgent(), listErr: storeErr}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &mockCompleter{}
			o := NewOrchestrator(tt.catalog, completer, testRouting(), nil)

			_, err := o.Route(context.Background(), "refund please")
			assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
			assert.ErrorIs(t, err, storeErr)
			assert.Empty(t, completer.calls)
		})
	}
}

func TestRouteFiltersNonSpecialists(t *testing.T) {
	catalog := &mockCatalog{
		master: masterAgent(),
		specialists: []domain.Agent{
			{Name: "Refund Master", IsActive: true, IsMaster: true},
			{Name: "Refund Retired", IsActive: false},
			{Name: "Refund Desk", IsActive: true},
		},
	}
	completer := &mockCompleter{outcomes: []outcome{{text: "ok"}}}
	o := NewOrchestrator(catalog, completer, testRouting(), nil)

	got, err := o.Route(context.Background(), "refund")
	require.NoError(t, err)
	assert.Equal(t, []string{"Refund Desk"}, got.RoutedAgents)
}

func TestRouteRespectsMaxSpecialists(t *testing.T) {
	specialists := make([]domain.Agent, 6)
	for i := range specialists {
		specialists[i] = domain.Agent{Name: fmt.Sprintf("Refund %d", i), IsActive: true}
	}
	cfg := testRouting()
	cfg.MaxSpecialists = 5
	completer := &mockCompleter{outcomes: []outcome{{text: "ok"}}}
	o := NewOrchestrator(&mockCatalog{master: masterAgent(), specialists: specialists}, completer, cfg, nil)

	got, err := o.Route(context.Background(), "refund")
	require.NoError(t, err)
	assert.Len(t, got.RoutedAgents, 5)
	assert.Equal(t, "Refund 0", got.RoutedAgents[0])
}

type alwaysQuota struct{}

func (alwaysQuota) IsQuotaError(error) bool { return true }

func TestRouteCustomQuotaDetector(t *testing.T) {
	completer := &mockCompleter{outcomes: []outcome{{err: errors.New("503 overloaded")}, {text: "ok"}}}
	o := NewOrchestrator(&mockCatalog{master: masterAgent()}, completer, testRouting(), nil,
		WithQuotaDetector(alwaysQuota{}))

	got, err := o.Route(context.Background(), "status")
	require.NoError(t, err)
	assert.Equal(t, "fallback-model", got.ModelUsed)
}

func TestNewOrchestratorDefaults(t *testing.T) {
	o := NewOrchestrator(&mockCatalog{}, &mockCompleter{}, config.RoutingConfig{}, nil)
	assert.Equal(t, 3, o.cfg.MaxSpecialists)
	assert.Equal(t, config.DefaultTaskPrompt, o.cfg.TaskPrompt)
	assert.Equal(t, config.DefaultGuidance, o.cfg.Guidance)
}

func TestRouteLogsErrorCategory(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		want    []string
	}{
		{
			name:    "quota falls back",
			err:     errors.New("API error 429: You exceeded your current quota"),
			message: `msg="primary model failed, falling back"`,
			want:    []string{"category=quota", "status=429", "fallback=fallback-model"},
		},
		{
			name:    "transient does not fall back",
			err:     errors.New("API error 503: overloaded"),
			message: `msg="primary model failed"`,
			want:    []string{"category=transient", "status=503"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			completer := &mockCompleter{outcomes: []outcome{{err: tt.err}, {text: "from fallback"}}}
			o := NewOrchestrator(&mockCatalog{master: masterAgent()}, completer, testRouting(), logger)

			_, _ = o.Route(context.Background(), "refund please")

			out := buf.String()
			assert.Contains(t, out, tt.message)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}
