// Package config provides configuration management for the gateway.
// It handles loading and parsing YAML configuration files, and provides structured
// access to application settings including server port, upstream connection,
// reasoning-effort overrides, and inbound API keys.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port"`

	// AuthDir is kept for credential-file location; unused by the translation core.
	AuthDir string `yaml:"auth-dir"`

	// Debug enables or disables debug-level logging and other debug features.
	Debug bool `yaml:"debug"`

	// TranscriptLog enables or disables capture of full request/response transcripts.
	TranscriptLog bool `yaml:"transcript-log"`

	// RequestRetry is read from request-retry but nothing uses it: a failed
	// upstream request is not retried.
	RequestRetry int `yaml:"request-retry"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// APIKeys is a list of keys for authenticating clients to this gateway.
	APIKeys []string `yaml:"api-keys"`

	// Upstream carries the single backend this gateway translates into.
	Upstream Upstream `yaml:"upstream"`

	// ReasoningEffort configures the default and per-model reasoning effort
	// forwarded to the upstream on the Responses dialect.
	ReasoningEffort ReasoningEffort `yaml:"reasoning-effort"`

	// ExtraPrompt maps a model name to additional system-prompt text appended
	// to the instructions of requests sent to that model on the Responses
	// upstream; requests sent to the ChatCompletions upstream do not get it.
	ExtraPrompt map[string]string `yaml:"extra-prompt"`

	// Access lists pluggable inbound authentication providers. When empty,
	// APIKeys above is used to build a single config-api-key provider.
	Access Access `yaml:"access"`
}

// Upstream describes the single backend the gateway forwards translated
// requests to.
type Upstream struct {
	// BaseURL is the root URL of the upstream API (e.g. "https://api.example.com").
	BaseURL string `yaml:"base-url"`

	// APIKey authenticates the gateway to the upstream.
	APIKey string `yaml:"api-key"`

	// SmallModel is the model substituted for lightweight/background requests.
	SmallModel string `yaml:"small-model"`
}

// ReasoningEffort configures the "reasoning.effort" field sent on the
// Responses dialect, with a default and per-model overrides.
type ReasoningEffort struct {
	Default   string            `yaml:"default"`
	Overrides map[string]string `yaml:"overrides"`
}

// Access configures pluggable inbound authentication providers.
type Access struct {
	Providers []AccessProvider `yaml:"providers"`
}

// AccessProvider configures one inbound authentication provider instance.
type AccessProvider struct {
	Type    string   `yaml:"type"`
	Name    string   `yaml:"name"`
	APIKeys []string `yaml:"api-keys"`
}

// AccessProviderTypeConfigAPIKey is the provider type backed by a flat list
// of bearer/x-api-key/x-goog-api-key/query-param keys.
const AccessProviderTypeConfigAPIKey = "config-api-key"

// DefaultAccessProviderName is used when an access provider omits a name.
const DefaultAccessProviderName = "default"

// ConfigAPIKeyProvider returns a synthetic provider built from the top-level
// APIKeys field, or nil if none are configured. Used when Access.Providers is
// empty so a bare api-keys list still authenticates requests.
func (c *Config) ConfigAPIKeyProvider() *AccessProvider {
	if c == nil || len(c.APIKeys) == 0 {
		return nil
	}
	return &AccessProvider{
		Type:    AccessProviderTypeConfigAPIKey,
		Name:    DefaultAccessProviderName,
		APIKeys: c.APIKeys,
	}
}

// ReasoningEffortForModel returns the configured reasoning effort for the
// given model, falling back to the configured default, then to "high".
func (c *Config) ReasoningEffortForModel(model string) string {
	if c == nil {
		return "high"
	}
	if v, ok := c.ReasoningEffort.Overrides[model]; ok && v != "" {
		return v
	}
	if c.ReasoningEffort.Default != "" {
		return c.ReasoningEffort.Default
	}
	return "high"
}

// ExtraPromptForModel returns the extra system prompt configured for a model,
// or the empty string if none is configured.
func (c *Config) ExtraPromptForModel(model string) string {
	if c == nil {
		return ""
	}
	return c.ExtraPrompt[model]
}

// LoadConfig reads a YAML configuration file from the given path and
// unmarshals it into a Config struct.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Store holds an atomically-swappable config snapshot so handlers always read
// a consistent pointer while a background watcher reloads the file.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps an initial config in a Store.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns the current config snapshot.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set swaps in a new config snapshot.
func (s *Store) Set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// globalStore backs the package-level Global/SetGlobal accessors. Request
// translators are plain functions (sdk/translator.RequestTransform) with no
// config parameter, so the few of them that need a per-model config lookup
// (reasoning effort, extra prompt) read this process-wide snapshot instead,
// the same way the model catalog is reached through its own singleton.
var globalStore = NewStore(&Config{})

// SetGlobal installs cfg as the snapshot read by Global.
func SetGlobal(cfg *Config) {
	globalStore.Set(cfg)
}

// Global returns the current process-wide config snapshot.
func Global() *Config {
	return globalStore.Get()
}
