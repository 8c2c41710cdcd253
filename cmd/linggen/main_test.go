package main

import (
	"testing"

	"github.com/linggen/linggen-agent/internal/config"
)

func TestRootCmdIncludesSubcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"agent", "serve"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestAgentCmdFlags(t *testing.T) {
	cmd := newAgentCmd()
	required := []string{"model", "ollama-url", "root", "max-iters", "no-stream"}
	for _, name := range required {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected --%s flag on agent command", name)
		}
	}
}

func TestServeCmdFlags(t *testing.T) {
	cmd := newServeCmd()
	required := []string{"port", "root", "dev"}
	for _, name := range required {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected --%s flag on serve command", name)
		}
	}
}

func TestDefaultAgentIDRequiresAtLeastOne(t *testing.T) {
	cfg := &config.Config{}
	if _, err := defaultAgentID(cfg); err == nil {
		t.Fatal("expected an error when no agents are configured")
	}
}

func TestApplyModelOverrideSetsOllamaBinding(t *testing.T) {
	cfg := &config.Config{
		Agents: map[string]config.AgentConfig{"coder": {Model: "claude"}},
	}
	applyModelOverride(cfg, "llama3", "http://localhost:11434/v1")

	if cfg.Agents["coder"].Model != "llama3" {
		t.Fatalf("expected agent model override, got %q", cfg.Agents["coder"].Model)
	}
	binding, ok := cfg.Models["llama3"]
	if !ok {
		t.Fatal("expected an ollama model binding to be registered")
	}
	if binding.Provider != "ollama" || binding.BaseURL != "http://localhost:11434/v1" {
		t.Fatalf("unexpected binding: %+v", binding)
	}
}
