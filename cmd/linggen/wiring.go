package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/linggen/linggen-agent/internal/config"
	"github.com/linggen/linggen-agent/internal/delegation"
	"github.com/linggen/linggen-agent/internal/engine"
	"github.com/linggen/linggen-agent/internal/eventbus"
	"github.com/linggen/linggen-agent/internal/observability"
	"github.com/linggen/linggen-agent/internal/providers"
	"github.com/linggen/linggen-agent/internal/providers/anthropic"
	"github.com/linggen/linggen-agent/internal/providers/openai"
	"github.com/linggen/linggen-agent/internal/runrecords"
	"github.com/linggen/linggen-agent/internal/sessions"
	"github.com/linggen/linggen-agent/internal/skills"
	"github.com/linggen/linggen-agent/internal/tools/computeruse"
	"github.com/linggen/linggen-agent/internal/tools/exec"
	"github.com/linggen/linggen-agent/internal/tools/files"
	"github.com/linggen/linggen-agent/internal/tools/interactive"
	"github.com/linggen/linggen-agent/internal/tools/policy"
	"github.com/linggen/linggen-agent/internal/tools/websearch"
	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// runtime bundles every component the CLI commands drive once cfg has been
// loaded and tools/providers/delegation are wired together.
type runtime struct {
	cfg        *config.Config
	logger     *observability.Logger
	metrics    *observability.Metrics
	sessions   *sessions.Store
	bus        *eventbus.Bus
	events     <-chan models.Event
	loop       *engine.TurnLoop
	delegation *delegation.Manager
	skills     *skills.Manager
}

// loadCredentials reads the global credentials.json, the second
// credential-resolution source after inline config, tolerating a missing file.
func loadCredentials(home string) map[string]string {
	path := filepath.Join(home, ".linggen", "credentials.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var creds map[string]string
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil
	}
	return creds
}

// buildProviders constructs one LLMProvider backend per distinct provider
// name referenced by cfg.Models, resolving credentials per
// Config.CredentialForModel's precedence order.
func buildProviders(cfg *config.Config, creds map[string]string) (map[string]providers.LLMProvider, error) {
	backends := make(map[string]providers.LLMProvider)
	for modelID, binding := range cfg.Models {
		if _, ok := backends[binding.Provider]; ok {
			continue
		}
		apiKey, err := cfg.CredentialForModel(modelID, creds)
		if err != nil {
			return nil, err
		}
		switch binding.Provider {
		case "anthropic":
			p, err := anthropic.New(anthropic.Config{APIKey: apiKey})
			if err != nil {
				return nil, fmt.Errorf("provider %q: %w", binding.Provider, err)
			}
			backends["anthropic"] = p
		case "openai":
			backends["openai"] = openai.New(apiKey)
		case "ollama":
			backends["ollama"] = openai.NewWithBaseURL(apiKey, binding.BaseURL)
		default:
			return nil, fmt.Errorf("model %q: unknown provider %q", modelID, binding.Provider)
		}
	}
	return backends, nil
}

// buildRegistry registers every tool in the fixed vocabulary that doesn't
// require a per-run Prompter: Glob/Read/Grep/Write/Edit/Bash/WebSearch/
// WebFetch/capture_screenshot/Skill, plus whatever skill-defined tools the
// discovered skills contribute.
func buildRegistry(cfg *config.Config, logger *observability.Logger, home string) (*toolexec.Registry, *skills.Manager, error) {
	registry := toolexec.NewRegistry()
	fileCfg := files.Config{Workspace: cfg.WorkspaceRoot, MemoryRoot: filepath.Join(home, ".linggen", "memory")}

	toRegister := []toolexec.Tool{
		files.NewGlobTool(fileCfg),
		files.NewReadTool(fileCfg),
		files.NewGrepTool(fileCfg),
		files.NewWriteTool(fileCfg),
		files.NewEditTool(fileCfg),
		exec.NewBashTool(cfg.WorkspaceRoot),
		websearch.NewWebSearchTool(&websearch.Config{}),
		websearch.NewWebFetchTool(0),
		computeruse.NewTool(0),
	}
	for _, t := range toRegister {
		if err := registry.Register(t); err != nil {
			return nil, nil, fmt.Errorf("registering %s: %w", t.Name(), err)
		}
	}

	skillMgr, err := skills.NewManager(nil, filepath.Join(cfg.WorkspaceRoot, ".linggen"), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("skills manager: %w", err)
	}
	if err := skillMgr.Discover(context.Background()); err != nil {
		logger.Warn(context.Background(), "skill discovery failed", "error", err)
	}
	if err := registry.Register(skills.NewTool(skillMgr)); err != nil {
		return nil, nil, fmt.Errorf("registering Skill: %w", err)
	}
	for _, entry := range skillMgr.ListEligible() {
		for _, t := range skills.BuildSkillTools(entry, cfg.WorkspaceRoot) {
			_ = registry.Register(t) // best effort: a name clash just keeps the first registrant
		}
	}

	return registry, skillMgr, nil
}

// buildRuntime wires config, sessions, event bus, tools, providers, the
// Turn Loop, and delegation into one ready-to-drive runtime. prompter
// supplies AskUser's terminal (nil disables AskUser, e.g. under serve).
// The caller owns draining the returned events channel.
func buildRuntime(cfg *config.Config, projectPath string, prompter interactive.Prompter) (*runtime, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	projectLinggenDir := filepath.Join(projectPath, ".linggen")
	store := sessions.NewStore(projectLinggenDir, sessions.NewLocalLocker(2*time.Minute))

	bus, eventsCh := eventbus.New(eventbus.DefaultConfig())
	bus.OnDrop(func() { metrics.EventBusDropped.Inc() })

	registry, skillMgr, err := buildRegistry(cfg, logger, home)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(interactive.NewAskUserTool(prompter)); err != nil {
		return nil, err
	}
	if err := registry.Register(interactive.NewExitPlanModeTool()); err != nil {
		return nil, err
	}

	creds := loadCredentials(home)
	backends, err := buildProviders(cfg, creds)
	if err != nil {
		return nil, err
	}
	resolver := engine.NewProviderResolver(cfg.Models, backends)

	policyResolver := policy.NewResolver()
	for _, entry := range skillMgr.ListEligible() {
		for _, t := range skills.BuildSkillTools(entry, cfg.WorkspaceRoot) {
			policyResolver.RegisterSkillTool(t.Name())
		}
	}

	executor := toolexec.NewExecutor(registry, toolexec.DefaultExecutorConfig(), nil)
	loop := engine.NewTurnLoop(cfg, registry, executor, policyResolver, store, bus, resolver)
	loop.SetMetrics(metrics)
	loop.SetLogger(logger)
	loop.SetRecorder(runrecords.NewStore(home, projectPath))

	runStore := delegation.NewMemoryStore()
	mgr := delegation.NewManager(runStore, cfg.MaxDepth, loop.ChildRun)
	loop.SetDelegation(mgr)
	if err := registry.Register(delegation.NewTool(mgr, loop.LookupRun)); err != nil {
		return nil, err
	}

	return &runtime{
		cfg: cfg, logger: logger, metrics: metrics, sessions: store,
		bus: bus, events: eventsCh, loop: loop, delegation: mgr, skills: skillMgr,
	}, nil
}
