package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linggen/linggen-agent/internal/config"
	"github.com/linggen/linggen-agent/internal/engine"
	"github.com/linggen/linggen-agent/internal/tools/interactive"
	"github.com/linggen/linggen-agent/pkg/models"
)

func newAgentCmd() *cobra.Command {
	var (
		agentID   string
		model     string
		ollamaURL string
		root      string
		configPath string
		maxIters  int
		noStream  bool
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run one agent interactively in a read-eval-print loop over the turn loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolving --root: %w", err)
			}
			if configPath == "" {
				configPath = filepath.Join(root, "linggen.yaml")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg.WorkspaceRoot = root
			if maxIters > 0 {
				cfg.MaxIters = maxIters
			}
			applyModelOverride(cfg, model, ollamaURL)

			rt, err := buildRuntime(cfg, root, interactive.NewStdinPrompter(os.Stdin, os.Stdout))
			if err != nil {
				return fmt.Errorf("initializing runtime: %w", err)
			}

			if agentID == "" {
				agentID, err = defaultAgentID(cfg)
				if err != nil {
					return err
				}
			}

			session, err := rt.sessions.GetOrCreate("interactive", root)
			if err != nil {
				return fmt.Errorf("opening session: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if !noStream {
				go printEvents(rt.events)
			}

			fmt.Printf("linggen-agent ready: agent=%s model=%s root=%s\n", agentID, cfg.Agents[agentID].Model, root)
			fmt.Println("Type a task and press Enter. Ctrl-D or Ctrl-C to exit.")

			reader := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !reader.Scan() {
					return nil
				}
				task := reader.Text()
				if task == "" {
					continue
				}

				outcome, err := rt.loop.RunRoot(ctx, agentID, session.ID, task)
				if err != nil {
					fmt.Fprintf(os.Stderr, "run error: %v\n", err)
					continue
				}
				printOutcome(outcome)

				if ctx.Err() != nil {
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent id to run (defaults to the config's only agent)")
	cmd.Flags().StringVar(&model, "model", "", "override the agent's configured model id")
	cmd.Flags().StringVar(&ollamaURL, "ollama-url", "", "point the overridden model at a local Ollama endpoint instead of OpenAI")
	cmd.Flags().StringVar(&root, "root", ".", "workspace root the agent operates under")
	cmd.Flags().StringVar(&configPath, "config", "", "path to the agent roster/model config (defaults to <root>/linggen.yaml)")
	cmd.Flags().IntVar(&maxIters, "max-iters", 0, "override the per-run iteration cap")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "don't print token/activity events as they stream; only the final outcome")

	return cmd
}

// applyModelOverride rewires every agent to use model when set, and
// registers an "ollama" provider binding for it when --ollama-url is given.
func applyModelOverride(cfg *config.Config, model, ollamaURL string) {
	if model == "" {
		return
	}
	if ollamaURL != "" {
		if cfg.Models == nil {
			cfg.Models = make(map[string]config.ModelConfig)
		}
		cfg.Models[model] = config.ModelConfig{Provider: "ollama", Name: model, BaseURL: ollamaURL}
	}
	for id, agentCfg := range cfg.Agents {
		agentCfg.Model = model
		cfg.Agents[id] = agentCfg
	}
}

func defaultAgentID(cfg *config.Config) (string, error) {
	if len(cfg.Agents) == 0 {
		return "", fmt.Errorf("no agents configured; add at least one under agents: in the config file")
	}
	for id := range cfg.Agents {
		return id, nil
	}
	return "", fmt.Errorf("unreachable")
}

func printEvents(events <-chan models.Event) {
	for e := range events {
		switch e.Kind {
		case models.EventToken:
			fmt.Print(e.Text)
		case models.EventActivity:
			fmt.Printf("\n[%s %s] %s\n", e.Tool, e.Status, e.ArgsSummary)
		case models.EventMessage:
			fmt.Printf("\n%s\n", e.Text)
		}
	}
}

func printOutcome(o *engine.Outcome) {
	switch o.Kind {
	case engine.OutcomeCompleted:
		fmt.Printf("\n%s\n", o.FinalMessage)
	case engine.OutcomePlanProposed:
		fmt.Printf("\n[plan proposed] %s\n", o.PlanSummary)
		for _, item := range o.PlanItems {
			fmt.Printf("  - %s\n", item)
		}
	case engine.OutcomeFailed:
		fmt.Fprintf(os.Stderr, "\n[run failed] %s\n", o.FailReason)
	case engine.OutcomeCancelled:
		fmt.Println("\n[run cancelled]")
	case engine.OutcomeIterationCapExceeded:
		fmt.Fprintln(os.Stderr, "\n[iteration cap exceeded]")
	default:
		fmt.Printf("\n[%s]\n", o.Kind)
	}
}
