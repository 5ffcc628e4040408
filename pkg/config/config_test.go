package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestDefaultConfig_Model verifies model is set
func TestDefaultConfig_Model(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.Model == "" {
		t.Error("Model should not be empty")
	}
	if cfg.Engine.Model != "openai/gpt-5.2" {
		t.Errorf("Model = %q, want %q", cfg.Engine.Model, "openai/gpt-5.2")
	}
}

// TestDefaultConfig_Memory verifies the memory window defaults
func TestDefaultConfig_Memory(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.MaxMessages != 10 {
		t.Errorf("MaxMessages = %d, want 10", cfg.Memory.MaxMessages)
	}
	if cfg.Memory.SummarizeThreshold != 5 {
		t.Errorf("SummarizeThreshold = %d, want 5", cfg.Memory.SummarizeThreshold)
	}
}

// TestDefaultConfig_Delegation verifies the gate defaults and roster
func TestDefaultConfig_Delegation(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Delegation.AutoSwitch {
		t.Error("AutoSwitch should be disabled by default")
	}
	if cfg.Delegation.MinConfidence != 0.95 {
		t.Errorf("MinConfidence = %v, want 0.95", cfg.Delegation.MinConfidence)
	}
	if cfg.Delegation.MinReasoning != 3 {
		t.Errorf("MinReasoning = %d, want 3", cfg.Delegation.MinReasoning)
	}
	if cfg.Delegation.MinFactorScore != 0.9 {
		t.Errorf("MinFactorScore = %v, want 0.9", cfg.Delegation.MinFactorScore)
	}
	if len(cfg.Delegation.Agents) == 0 {
		t.Error("Default agent roster should not be empty")
	}
	if cfg.Delegation.Agents[0].Name != cfg.Engine.DefaultAgent {
		t.Errorf("Default agent %q is not first in the roster", cfg.Engine.DefaultAgent)
	}
}

// TestDefaultConfig_Gateway verifies gateway defaults
func TestDefaultConfig_Gateway(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Gateway.Host != "0.0.0.0" {
		t.Error("Gateway host should have default value")
	}
	if cfg.Gateway.Port == 0 {
		t.Error("Gateway port should have default value")
	}
}

// TestDefaultConfig_Heartbeat verifies heartbeat defaults
func TestDefaultConfig_Heartbeat(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Heartbeat.Enabled {
		t.Error("Heartbeat should be enabled by default")
	}
	if cfg.Heartbeat.Schedule == "" {
		t.Error("Heartbeat schedule should have default value")
	}
}

// TestDefaultConfig_Providers verifies provider credentials are empty
func TestDefaultConfig_Providers(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Providers.OpenRouter.APIKey != "" {
		t.Error("OpenRouter API key should be empty by default")
	}
	if cfg.Providers.OpenRouter.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.Providers.OpenRouter.RetryAttempts)
	}
	if cfg.Providers.OpenRouter.RetryDelayMS != 1000 {
		t.Errorf("RetryDelayMS = %d, want 1000", cfg.Providers.OpenRouter.RetryDelayMS)
	}
}

func TestGetAPIBase_DefaultsWhenUnset(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.GetAPIBase(); got != "https://openrouter.ai/api/v1" {
		t.Errorf("GetAPIBase() = %q", got)
	}

	cfg.Providers.OpenRouter.APIBase = "http://localhost:9999/v1"
	if got := cfg.GetAPIBase(); got != "http://localhost:9999/v1" {
		t.Errorf("GetAPIBase() = %q", got)
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Memory.MaxMessages != 10 {
		t.Errorf("expected default MaxMessages, got %d", cfg.Memory.MaxMessages)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("PARLEY_ENGINE_MODEL", "env/model")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Engine.Model; got != "env/model" {
		t.Fatalf("expected env override model, got %q", got)
	}
}

func TestLoadConfig_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"memory": {"max_messages": 30}, "engine": {"model": "file/model"}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PARLEY_ENGINE_MODEL", "env/model")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Memory.MaxMessages != 30 {
		t.Errorf("expected file override MaxMessages 30, got %d", cfg.Memory.MaxMessages)
	}
	if cfg.Engine.Model != "env/model" {
		t.Errorf("env should win over file, got %q", cfg.Engine.Model)
	}
}
