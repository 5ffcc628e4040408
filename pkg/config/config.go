package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Engine     EngineConfig     `json:"engine"`
	Providers  ProvidersConfig  `json:"providers"`
	Memory     MemoryConfig     `json:"memory"`
	Delegation DelegationConfig `json:"delegation"`
	Gateway    GatewayConfig    `json:"gateway"`
	Heartbeat  HeartbeatConfig  `json:"heartbeat"`
	mu         sync.RWMutex
}

type EngineConfig struct {
	SystemPrompt string  `json:"system_prompt" env:"PARLEY_ENGINE_SYSTEM_PROMPT"`
	DefaultAgent string  `json:"default_agent" env:"PARLEY_ENGINE_DEFAULT_AGENT"`
	Model        string  `json:"model" env:"PARLEY_ENGINE_MODEL"`
	MaxTokens    int     `json:"max_tokens" env:"PARLEY_ENGINE_MAX_TOKENS"`
	Temperature  float64 `json:"temperature" env:"PARLEY_ENGINE_TEMPERATURE"`
}

type ProvidersConfig struct {
	OpenRouter ProviderConfig `json:"openrouter"`
}

type ProviderConfig struct {
	APIKey        string `json:"api_key" env:"PARLEY_PROVIDERS_OPENROUTER_API_KEY"`
	APIBase       string `json:"api_base" env:"PARLEY_PROVIDERS_OPENROUTER_API_BASE"`
	Proxy         string `json:"proxy,omitempty" env:"PARLEY_PROVIDERS_OPENROUTER_PROXY"`
	RetryAttempts int    `json:"retry_attempts" env:"PARLEY_PROVIDERS_OPENROUTER_RETRY_ATTEMPTS"`
	RetryDelayMS  int    `json:"retry_delay_ms" env:"PARLEY_PROVIDERS_OPENROUTER_RETRY_DELAY_MS"`
}

type MemoryConfig struct {
	MaxMessages        int    `json:"max_messages" env:"PARLEY_MEMORY_MAX_MESSAGES"`
	SummarizeThreshold int    `json:"summarize_threshold" env:"PARLEY_MEMORY_SUMMARIZE_THRESHOLD"`
	SummaryPrompt      string `json:"summary_prompt,omitempty" env:"PARLEY_MEMORY_SUMMARY_PROMPT"`
}

type AgentProfileConfig struct {
	Name         string   `json:"name"`
	Domains      []string `json:"domains"`
	Capabilities []string `json:"capabilities"`
	Complexity   []string `json:"complexity,omitempty"`
	Intents      []string `json:"intents,omitempty"`
}

type DelegationConfig struct {
	AutoSwitch     bool                 `json:"auto_switch" env:"PARLEY_DELEGATION_AUTO_SWITCH"`
	MinConfidence  float64              `json:"min_confidence" env:"PARLEY_DELEGATION_MIN_CONFIDENCE"`
	MinReasoning   int                  `json:"min_reasoning" env:"PARLEY_DELEGATION_MIN_REASONING"`
	MinFactorScore float64              `json:"min_factor_score" env:"PARLEY_DELEGATION_MIN_FACTOR_SCORE"`
	Agents         []AgentProfileConfig `json:"agents"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"PARLEY_GATEWAY_HOST"`
	Port int    `json:"port" env:"PARLEY_GATEWAY_PORT"`
}

type HeartbeatConfig struct {
	Enabled  bool   `json:"enabled" env:"PARLEY_HEARTBEAT_ENABLED"`
	Schedule string `json:"schedule" env:"PARLEY_HEARTBEAT_SCHEDULE"` // cron expression
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			SystemPrompt: "",
			DefaultAgent: "concierge",
			Model:        "openai/gpt-5.2",
			MaxTokens:    8192,
			Temperature:  0.7,
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderConfig{
				RetryAttempts: 3,
				RetryDelayMS:  1000,
			},
		},
		Memory: MemoryConfig{
			MaxMessages:        10,
			SummarizeThreshold: 5,
		},
		Delegation: DelegationConfig{
			AutoSwitch:     false,
			MinConfidence:  0.95,
			MinReasoning:   3,
			MinFactorScore: 0.9,
			Agents: []AgentProfileConfig{
				{
					Name:         "concierge",
					Domains:      []string{"general"},
					Capabilities: []string{"general_assistance"},
				},
				{
					Name:         "engineer",
					Domains:      []string{"technology"},
					Capabilities: []string{"technical_knowledge", "code_understanding", "detailed_analysis", "complex_reasoning"},
					Complexity:   []string{"medium", "high"},
					Intents:      []string{"action_request", "information_seeking"},
				},
				{
					Name:         "researcher",
					Domains:      []string{"science", "health"},
					Capabilities: []string{"scientific_reasoning", "health_guidance", "detailed_analysis"},
					Intents:      []string{"information_seeking"},
				},
				{
					Name:         "planner",
					Domains:      []string{"business", "travel", "finance"},
					Capabilities: []string{"business_analysis", "planning", "trip_planning", "financial_analysis"},
				},
			},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18890,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Schedule: "*/10 * * * *",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(expandHome(path))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Env always applies, with or without a config file.
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	path = expandHome(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Providers.OpenRouter.APIKey
}

func (c *Config) GetAPIBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Providers.OpenRouter.APIBase != "" {
		return c.Providers.OpenRouter.APIBase
	}
	return "https://openrouter.ai/api/v1"
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
