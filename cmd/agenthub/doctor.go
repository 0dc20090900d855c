package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"agenthub/internal/adapter/catalog"
	"agenthub/internal/adapter/llm"
	"agenthub/internal/domain"
	"agenthub/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run health checks on configuration and catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.OutOrStdout(), opts.configPath)
		},
	}
}

// runDoctor executes all health checks and reports results.
func runDoctor(w io.Writer, cfgPath string) error {
	// Try to load config; some checks work without it.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "LLM API key", Fn: checkLLMAPIKey},
		{Name: "Model routing", Fn: checkModelRouting},
		{Name: "Seed file", Fn: checkSeedFile},
		{Name: "Agent catalog", Fn: checkCatalog},
	}

	fmt.Fprintln(w, styleBold.Render("agenthub doctor"))
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return styleSuccess.Render("[PASS]")
	case StatusWarn:
		return styleWarning.Render("[WARN]")
	case StatusFail:
		return styleError.Render("[FAIL]")
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check that verifies the config file parses. A
// missing file is only a warning because defaults and env vars still apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and run 'agenthub config validate'",
			}
		}
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s; using defaults and environment", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLLMAPIKey verifies at least one completion provider has an API key.
func checkLLMAPIKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if len(cfg.LLM.Providers) == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: "no LLM providers configured",
			Fix:     "Add at least one provider in config.yaml under llm.providers",
		}
	}

	var withKey, withoutKey []string
	for _, p := range cfg.LLM.Providers {
		if p.APIKey != "" {
			withKey = append(withKey, p.Name)
		} else {
			withoutKey = append(withoutKey, p.Name)
		}
	}

	if len(withKey) == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no API keys found for providers: %s", strings.Join(withoutKey, ", ")),
			Fix:     "Set OPENAI_API_KEY or AGENTHUB_LLM_PROVIDER_<NAME>_API_KEY",
		}
	}
	if len(withoutKey) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("keys configured for [%s]; missing for [%s]", strings.Join(withKey, ", "), strings.Join(withoutKey, ", ")),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("API keys configured for: %s", strings.Join(withKey, ", ")),
	}
}

// checkModelRouting verifies both routing tiers resolve to a provider that
// has a key.
func checkModelRouting(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	router, err := llm.NewFromConfig(cfg.LLM, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}

	keys := make(map[string]bool, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		keys[p.Name] = p.APIKey != ""
	}

	var parts []string
	for _, model := range []string{cfg.Routing.PrimaryModel, cfg.Routing.FallbackModel} {
		p, err := router.Resolve(model)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("model %q has no provider (registered: %s)", model, strings.Join(router.Providers(), ", ")),
				Fix:     "Set llm.default_provider or add a matching model_prefixes entry",
			}
		}
		if !keys[p.Name()] {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("model %q routes to %s, which has no API key", model, p.Name()),
			}
		}
		parts = append(parts, fmt.Sprintf("%s -> %s", model, p.Name()))
	}
	if cfg.Routing.PrimaryModel == cfg.Routing.FallbackModel {
		return CheckResult{
			Status:  StatusWarn,
			Message: "primary and fallback models are the same; quota fallback will not help",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (registered: %s)", strings.Join(parts, ", "), strings.Join(router.Providers(), ", ")),
	}
}

func checkSeedFile(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if cfg.Catalog.SeedFile == "" {
		return CheckResult{Status: StatusPass, Message: "no seed file configured"}
	}
	agents, err := catalog.LoadAgentsFile(cfg.Catalog.SeedFile)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d agents in %s", len(agents), cfg.Catalog.SeedFile),
	}
}

// checkCatalog opens the catalog read-only and looks for a master agent and
// specialists to route to.
func checkCatalog(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if _, err := os.Stat(cfg.Catalog.Path); errors.Is(err, os.ErrNotExist) {
		if cfg.Catalog.Backend == "file" {
			return CheckResult{Status: StatusFail, Message: fmt.Sprintf("agents file %s not found", cfg.Catalog.Path)}
		}
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("database %s does not exist yet; it is created on first start", cfg.Catalog.Path),
			Fix:     "Set catalog.seed_file or run 'agenthub agents import <file>'",
		}
	}

	var (
		store domain.AgentCatalog
		err   error
	)
	switch cfg.Catalog.Backend {
	case "file":
		store, err = catalog.NewFileStore(cfg.Catalog.Path, nil)
	default:
		var db *catalog.SQLiteStore
		db, err = catalog.NewSQLiteStore(cfg.Catalog.Path)
		if err == nil {
			defer db.Close()
			store = db
		}
	}
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return inspectCatalog(ctx, store)
}

func inspectCatalog(ctx context.Context, store domain.AgentCatalog) CheckResult {
	specialists, err := store.Specialists(ctx)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	master, err := store.MasterAgent(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no active master agent (%d specialists)", len(specialists)),
			Fix:     "Create an agent with is_master: true",
		}
	case err != nil:
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	if len(specialists) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("master %q has no active specialists to route to", master.Name),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("master %q with %d specialists", master.Name, len(specialists)),
	}
}
