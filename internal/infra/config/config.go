package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"agenthub/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Routing RoutingConfig `yaml:"routing"`
	LLM     LLMConfig     `yaml:"llm"`
	Catalog CatalogConfig `yaml:"catalog"`
	Access  AccessConfig  `yaml:"access"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	Mode           string        `yaml:"mode"` // gin mode: "release", "debug", "test"
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      RateLimit     `yaml:"rate_limit"`
	TrustedProxies []string      `yaml:"trusted_proxies,omitempty"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// RateLimit holds per-client token bucket settings.
type RateLimit struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// RoutingConfig holds master-agent routing settings.
type RoutingConfig struct {
	PrimaryModel   string `yaml:"primary_model"`
	FallbackModel  string `yaml:"fallback_model"`
	MaxSpecialists int    `yaml:"max_specialists"`
	TaskPrompt     string `yaml:"task_prompt"`
	Guidance       string `yaml:"guidance"`
}

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for completion providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// ProviderConfig holds settings for a single completion provider.
type ProviderConfig struct {
	Name          string        `yaml:"name"`
	Type          string        `yaml:"type"` // "openai" or "anthropic"
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	ModelPrefixes []string      `yaml:"model_prefixes,omitempty"`
	MaxTokens     int           `yaml:"max_tokens,omitempty"`
	Timeout       time.Duration `yaml:"timeout"`
}

// CatalogConfig holds agent catalog settings.
type CatalogConfig struct {
	Backend  string        `yaml:"backend"` // "sqlite" or "file"
	Path     string        `yaml:"path"`    // sqlite database or agents file
	SeedFile string        `yaml:"seed_file,omitempty"`
	Watch    bool          `yaml:"watch"`     // file backend: reload on change
	CacheTTL time.Duration `yaml:"cache_ttl"` // 0 disables read caching
}

// AccessConfig holds the admin authorization policy.
type AccessConfig struct {
	AdminEmails     []string `yaml:"admin_emails"`
	OwnersAreAdmins bool     `yaml:"owners_are_admins"`
	UserHeader      string   `yaml:"user_header"`
	UserIDHeader    string   `yaml:"user_id_header"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// AuditConfig holds the audit trail settings for catalog changes.
type AuditConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	MaxAge  time.Duration `yaml:"max_age"`  // 0 keeps entries forever
	MaxSize string        `yaml:"max_size"` // e.g. "50MB"; empty means unbounded
}

// DefaultTaskPrompt is the fixed prompt sent alongside the augmented system
// instruction on every routing call.
const DefaultTaskPrompt = "Please provide a comprehensive response to the user's request, " +
	"incorporating insights from the most relevant specialized agents while maintaining your role."

// DefaultGuidance closes the augmented system instruction.
const DefaultGuidance = "Please provide a comprehensive response that incorporates insights from " +
	"the most relevant specialist agents. Always stay consistent with your role and tone."

// defaultDataDir returns the persistent data directory under $HOME/.agenthub.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".agenthub")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			Mode:           "release",
			RequestTimeout: 120 * time.Second,
			RateLimit: RateLimit{
				Enabled:        true,
				RequestsPerMin: 100,
				Burst:          20,
			},
			MaxBodyBytes: 1 << 20,
		},
		Routing: RoutingConfig{
			PrimaryModel:   "gpt-4o",
			FallbackModel:  "gpt-3.5-turbo",
			MaxSpecialists: 3,
			TaskPrompt:     DefaultTaskPrompt,
			Guidance:       DefaultGuidance,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Providers: []ProviderConfig{
				{Name: "openai", Type: "openai"},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     false,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Catalog: CatalogConfig{
			Backend: "sqlite",
			Path:    filepath.Join(defaultDataDir(), "agents.db"),
		},
		Access: AccessConfig{
			OwnersAreAdmins: false,
			UserHeader:      "X-User-Email",
			UserIDHeader:    "X-User-ID",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Audit: AuditConfig{
			Path:   filepath.Join(defaultDataDir(), "audit.jsonl"),
			MaxAge: 90 * 24 * time.Hour,
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults plus environment are used. Read,
// parse and permission failures wrap domain.ErrConfigLoad.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("%w: read config: %w", domain.ErrConfigLoad, err)
	default:
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve config path: %w", domain.ErrConfigLoad, err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config: %w", domain.ErrConfigLoad, err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("AGENTHUB_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps AGENTHUB_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTHUB_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGENTHUB_SERVER_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("AGENTHUB_SERVER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Server.RequestTimeout = d
		}
	}
	if v := os.Getenv("AGENTHUB_SERVER_RATE_LIMIT_ENABLED"); v == "false" {
		cfg.Server.RateLimit.Enabled = false
	}
	if v := os.Getenv("AGENTHUB_SERVER_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.RateLimit.RequestsPerMin = n
		}
	}

	if v := os.Getenv("AGENTHUB_ROUTING_PRIMARY_MODEL"); v != "" {
		cfg.Routing.PrimaryModel = v
	}
	if v := os.Getenv("AGENTHUB_ROUTING_FALLBACK_MODEL"); v != "" {
		cfg.Routing.FallbackModel = v
	}
	if v := os.Getenv("AGENTHUB_ROUTING_MAX_SPECIALISTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Routing.MaxSpecialists = n
		}
	}

	if v := os.Getenv("AGENTHUB_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("AGENTHUB_LLM_CIRCUIT_BREAKER_ENABLED"); v == "true" {
		cfg.LLM.CircuitBreaker.Enabled = true
	}

	// Per-provider API key overrides: AGENTHUB_LLM_PROVIDER_<NAME>_API_KEY,
	// then the vendor's conventional variable when the key is still empty.
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		envKey := fmt.Sprintf("AGENTHUB_LLM_PROVIDER_%s_API_KEY", strings.ToUpper(p.Name))
		if v := os.Getenv(envKey); v != "" {
			p.APIKey = v
		}
		if p.APIKey != "" {
			continue
		}
		switch p.Type {
		case "openai":
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			p.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	if v := os.Getenv("AGENTHUB_CATALOG_BACKEND"); v != "" {
		cfg.Catalog.Backend = v
	}
	if v := os.Getenv("AGENTHUB_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("AGENTHUB_CATALOG_SEED_FILE"); v != "" {
		cfg.Catalog.SeedFile = v
	}
	if v := os.Getenv("AGENTHUB_CATALOG_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Catalog.CacheTTL = d
		}
	}

	if v := os.Getenv("AGENTHUB_ACCESS_ADMIN_EMAILS"); v != "" {
		cfg.Access.AdminEmails = splitAndTrim(v, ",")
	}

	if v := os.Getenv("AGENTHUB_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("AGENTHUB_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("AGENTHUB_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("AGENTHUB_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	if v := os.Getenv("AGENTHUB_AUDIT_ENABLED"); v != "" {
		cfg.Audit.Enabled = v == "true"
	}
	if v := os.Getenv("AGENTHUB_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
}

// splitAndTrim splits s by sep and trims whitespace, dropping empty parts.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets replaces "enc:"-prefixed provider keys with their plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		key := cfg.LLM.Providers[i].APIKey
		if strings.HasPrefix(key, "enc:") {
			decrypted, err := DecryptValue(strings.TrimPrefix(key, "enc:"), passphrase)
			if err != nil {
				return fmt.Errorf("provider %s api_key: %w", cfg.LLM.Providers[i].Name, err)
			}
			cfg.LLM.Providers[i].APIKey = decrypted
		}
	}
	return nil
}

// EncryptValue encrypts plaintext with a passphrase-derived AES-256-GCM key.
// The result is suitable for an "enc:" config value.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue reverses EncryptValue. Failures wrap domain.ErrDecryption.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: invalid encrypted format", domain.ErrDecryption)
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: decode salt: %w", domain.ErrDecryption, err)
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %w", domain.ErrDecryption, err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryption)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDecryption, err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
