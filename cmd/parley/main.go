// Parley - conversation memory and context-analysis engine
//
// Copyright (c) 2026 Parley contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dotsetgreg/parley/pkg/analysis"
	"github.com/dotsetgreg/parley/pkg/analytics"
	"github.com/dotsetgreg/parley/pkg/config"
	"github.com/dotsetgreg/parley/pkg/delegation"
	"github.com/dotsetgreg/parley/pkg/logger"
	"github.com/dotsetgreg/parley/pkg/memory"
	"github.com/dotsetgreg/parley/pkg/providers"
	"github.com/dotsetgreg/parley/pkg/session"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "parley"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func getConfigPath() string {
	if p := os.Getenv("PARLEY_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".parley", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

// buildCompleter wires the HTTP provider with its retry wrapper from
// config.
func buildCompleter(cfg *config.Config) providers.Completer {
	base := providers.NewHTTPProvider(cfg.GetAPIKey(), cfg.GetAPIBase(), cfg.Providers.OpenRouter.Proxy)
	retry := providers.DefaultRetryConfig()
	if cfg.Providers.OpenRouter.RetryAttempts > 0 {
		retry.Attempts = cfg.Providers.OpenRouter.RetryAttempts
	}
	if cfg.Providers.OpenRouter.RetryDelayMS > 0 {
		retry.BaseDelay = time.Duration(cfg.Providers.OpenRouter.RetryDelayMS) * time.Millisecond
	}
	return providers.NewRetryingCompleter(base, retry)
}

// buildSummaryFunc compresses a window through the same completer the
// conversation uses.
func buildSummaryFunc(completer providers.Completer, cfg *config.Config) memory.SummaryFunc {
	return func(ctx context.Context, prompt, transcript string) (string, error) {
		reply, err := completer.Complete(ctx, []providers.Message{
			{Role: memory.RoleSystem, Content: prompt},
			{Role: memory.RoleUser, Content: transcript},
		}, providers.Options{
			Model:       cfg.Engine.Model,
			Temperature: 0.3,
			MaxTokens:   cfg.Engine.MaxTokens,
		})
		if err != nil {
			return "", err
		}
		return reply.Content, nil
	}
}

func rosterFromConfig(cfg *config.Config) []delegation.AgentProfile {
	roster := make([]delegation.AgentProfile, 0, len(cfg.Delegation.Agents))
	for _, a := range cfg.Delegation.Agents {
		complexity := make([]analysis.Complexity, 0, len(a.Complexity))
		for _, c := range a.Complexity {
			complexity = append(complexity, analysis.Complexity(c))
		}
		roster = append(roster, delegation.AgentProfile{
			Name:         a.Name,
			Domains:      a.Domains,
			Capabilities: a.Capabilities,
			Complexity:   complexity,
			Intents:      a.Intents,
		})
	}
	return roster
}

func gateFromConfig(cfg *config.Config) delegation.GateConfig {
	gate := delegation.DefaultGateConfig()
	if cfg.Delegation.MinConfidence > 0 {
		gate.MinConfidence = cfg.Delegation.MinConfidence
	}
	if cfg.Delegation.MinReasoning > 0 {
		gate.MinReasoning = cfg.Delegation.MinReasoning
	}
	if cfg.Delegation.MinFactorScore > 0 {
		gate.MinFactorScore = cfg.Delegation.MinFactorScore
	}
	return gate
}

// buildEngine assembles one conversation engine from config.
func buildEngine(cfg *config.Config, completer providers.Completer) *session.Engine {
	chain := memory.NewChain(memory.Config{
		MaxMessages:        cfg.Memory.MaxMessages,
		SummarizeThreshold: cfg.Memory.SummarizeThreshold,
		SummaryPrompt:      cfg.Memory.SummaryPrompt,
	}, buildSummaryFunc(completer, cfg))

	tracker := analytics.NewTracker()
	if cfg.Engine.DefaultAgent != "" {
		tracker.SetCurrentAgent(cfg.Engine.DefaultAgent)
	}
	advisor := delegation.NewAdvisor(tracker, rosterFromConfig(cfg))

	return session.NewEngine(session.Options{
		SystemPrompt: cfg.Engine.SystemPrompt,
		Model:        cfg.Engine.Model,
		Temperature:  cfg.Engine.Temperature,
		MaxTokens:    cfg.Engine.MaxTokens,
		Gate:         gateFromConfig(cfg),
	}, chain, tracker, advisor, completer)
}

func onboard() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}
	cfg := config.DefaultConfig()
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	fmt.Println("Set providers.openrouter.api_key (or PARLEY_PROVIDERS_OPENROUTER_API_KEY) before chatting.")
	return nil
}

func status() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n\n", appName, formatVersion())
	fmt.Printf("Config:      %s\n", getConfigPath())
	fmt.Printf("Model:       %s\n", cfg.Engine.Model)
	fmt.Printf("API base:    %s\n", cfg.GetAPIBase())
	if cfg.GetAPIKey() == "" {
		fmt.Println("API key:     MISSING")
	} else {
		fmt.Println("API key:     set")
	}
	fmt.Printf("Memory:      window %d, summarize at %d\n", cfg.Memory.MaxMessages, cfg.Memory.SummarizeThreshold)
	fmt.Printf("Gateway:     %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Printf("Heartbeat:   enabled=%v schedule=%q\n", cfg.Heartbeat.Enabled, cfg.Heartbeat.Schedule)
	fmt.Printf("Delegation:  auto_switch=%v agents=%d\n", cfg.Delegation.AutoSwitch, len(cfg.Delegation.Agents))
	return nil
}

func agentNames(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.Delegation.Agents))
	for _, a := range cfg.Delegation.Agents {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func main() {
	defer logger.Sync()
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
