package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linggen/linggen-agent/internal/config"
	"github.com/linggen/linggen-agent/internal/delegation"
	"github.com/linggen/linggen-agent/internal/eventbus"
	"github.com/linggen/linggen-agent/internal/observability"
	"github.com/linggen/linggen-agent/internal/providers"
	"github.com/linggen/linggen-agent/internal/sessions"
	"github.com/linggen/linggen-agent/internal/tools/policy"
	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/pkg/models"
)

// OutcomeKind is the terminal classification of one Turn Loop invocation:
// the five ways a run can end.
type OutcomeKind string

const (
	OutcomeCompleted            OutcomeKind = "completed"
	OutcomePlanProposed         OutcomeKind = "plan_proposed"
	OutcomeFailed               OutcomeKind = "failed"
	OutcomeCancelled            OutcomeKind = "cancelled"
	OutcomeIterationCapExceeded OutcomeKind = "iteration_cap_exceeded"
)

// Outcome is the result of one TurnLoop run, root or delegated.
type Outcome struct {
	Kind         OutcomeKind
	FinalMessage string   // Completed
	PlanSummary  string   // PlanProposed
	PlanItems    []string // PlanProposed
	FailReason   string   // Failed
}

// TurnLoop drives one agent's model -> parse -> tool -> observation cycle
// to a terminal Outcome. A single TurnLoop instance serves every agent and
// every run (root or delegated) in a process; each
// call to Run or the delegation ChildRunner it exposes is independent,
// keyed only by the AgentRun passed in.
type TurnLoop struct {
	agents        map[string]config.AgentConfig
	defaultModel  string
	maxIters      int
	workspaceRoot string

	resolver   *ProviderResolver
	registry   *toolexec.Registry
	executor   *toolexec.Executor
	policy     *policy.Resolver
	sessions   *sessions.Store
	bus        *eventbus.Bus
	delegation *delegation.Manager
	metrics    *observability.Metrics
	recorder   RunRecorder
	logger     *observability.Logger

	mu   sync.RWMutex
	runs map[string]*models.AgentRun
}

// RunRecorder persists a terminal AgentRun snapshot outside the Session
// Log, e.g. to the global per-project runs/ tree. Save errors are logged,
// never fatal to the run itself.
type RunRecorder interface {
	Save(run *models.AgentRun) error
}

// NewTurnLoop builds a TurnLoop. Call SetDelegation once the delegation
// manager (which needs the loop's ChildRun method) has been constructed —
// the two have a circular dependency broken by this two-step wiring rather
// than an interface neither package needs elsewhere.
func NewTurnLoop(cfg *config.Config, registry *toolexec.Registry, executor *toolexec.Executor, policyResolver *policy.Resolver, sessionStore *sessions.Store, bus *eventbus.Bus, resolver *ProviderResolver) *TurnLoop {
	maxIters := cfg.MaxIters
	if maxIters <= 0 {
		maxIters = 30
	}
	return &TurnLoop{
		agents:        cfg.Agents,
		maxIters:      maxIters,
		workspaceRoot: cfg.WorkspaceRoot,
		resolver:      resolver,
		registry:      registry,
		executor:      executor,
		policy:        policyResolver,
		sessions:      sessionStore,
		bus:           bus,
		runs:          make(map[string]*models.AgentRun),
	}
}

// SetDelegation wires the delegation manager after construction.
func (l *TurnLoop) SetDelegation(m *delegation.Manager) { l.delegation = m }

// SetMetrics attaches a Prometheus collector set; nil (the zero value) is
// safe and simply skips instrumentation.
func (l *TurnLoop) SetMetrics(m *observability.Metrics) { l.metrics = m }

// SetRecorder attaches a RunRecorder; nil (the zero value) skips persistence.
func (l *TurnLoop) SetRecorder(r RunRecorder) { l.recorder = r }

// SetLogger attaches a logger used for non-fatal warnings (e.g. a failed
// run-record write); nil is safe and simply drops those warnings.
func (l *TurnLoop) SetLogger(logger *observability.Logger) { l.logger = logger }

// LookupRun resolves a run by id for the Task tool's RunLookup callback.
func (l *TurnLoop) LookupRun(runID string) (*models.AgentRun, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.runs[runID]
	return run, ok
}

func (l *TurnLoop) trackRun(run *models.AgentRun) {
	l.mu.Lock()
	l.runs[run.RunID] = run
	l.mu.Unlock()
}

// RunRoot starts a fresh, user-initiated run for agentID in sessionID and
// drives it to completion, transitioning its AgentRun record to a terminal
// status before returning.
func (l *TurnLoop) RunRoot(ctx context.Context, agentID, sessionID, task string) (*Outcome, error) {
	run, runCtx, cancel := l.delegation.RootRun(ctx, agentID, sessionID)
	defer cancel()
	l.trackRun(run)

	outcome, err := l.run(runCtx, run, task)
	status, detail := terminalStatus(outcome, err)
	_ = l.delegation.Store().Transition(run.RunID, status, detail)
	return outcome, err
}

// ChildRun implements delegation.ChildRunner: it drives a nested Turn Loop
// for a Task delegation to completion and reduces its Outcome to the
// (text, error) shape Spawn needs. Spawn itself transitions the child
// run's terminal status, so this method must not do so again.
func (l *TurnLoop) ChildRun(ctx context.Context, targetAgentID, task string, run *models.AgentRun) (string, error) {
	l.trackRun(run)
	outcome, err := l.run(ctx, run, task)
	if err != nil {
		return "", err
	}
	switch outcome.Kind {
	case OutcomeCompleted:
		return outcome.FinalMessage, nil
	case OutcomePlanProposed:
		return formatPlanOutcome(outcome), nil
	case OutcomeCancelled:
		return "", fmt.Errorf("delegated run was cancelled")
	case OutcomeIterationCapExceeded:
		return "", fmt.Errorf("delegated run exceeded its iteration cap")
	default:
		return "", fmt.Errorf("delegated run failed: %s", outcome.FailReason)
	}
}

func terminalStatus(outcome *Outcome, err error) (models.RunStatus, string) {
	if err != nil {
		return models.RunFailed, err.Error()
	}
	switch outcome.Kind {
	case OutcomeCompleted, OutcomePlanProposed:
		return models.RunCompleted, ""
	case OutcomeCancelled:
		return models.RunCancelled, ""
	default:
		return models.RunFailed, outcome.FailReason
	}
}

func formatPlanOutcome(o *Outcome) string {
	if len(o.PlanItems) == 0 {
		return o.PlanSummary
	}
	out := o.PlanSummary + "\n"
	for _, item := range o.PlanItems {
		out += "- " + item + "\n"
	}
	return out
}

// run is the core state machine shared by RunRoot and ChildRun: prompt
// assembly, model call, reply parse, nudge-or-terminate check, sequential
// tool execution, session append, repeat — honoring maxIters and
// cancellation, and emitting exactly one Run{start} and one Run{outcome}
// event per call.
func (l *TurnLoop) run(ctx context.Context, run *models.AgentRun, task string) (outcome *Outcome, runErr error) {
	l.bus.Emit(ctx, models.Event{Kind: models.EventRun, AgentID: run.AgentID, SessionID: run.SessionID, RunPhase: models.RunPhaseStart, RunID: run.RunID, RunStatus: models.RunRunning})
	defer func() {
		status, detail := terminalStatus(outcome, runErr)
		l.bus.Emit(ctx, models.Event{Kind: models.EventRun, AgentID: run.AgentID, SessionID: run.SessionID, RunPhase: models.RunPhaseOutcome, RunID: run.RunID, RunStatus: status})
		if l.metrics != nil && outcome != nil {
			l.metrics.TurnCounter.WithLabelValues(string(outcome.Kind)).Inc()
		}
		if l.recorder != nil && run.Depth == 0 {
			run.Status = status
			run.Detail = detail
			run.EndedAt = time.Now()
			if err := l.recorder.Save(run); err != nil && l.logger != nil {
				l.logger.Warn(ctx, "saving run record failed", "run_id", run.RunID, "error", err)
			}
		}
	}()

	agentCfg, ok := l.agents[run.AgentID]
	if !ok {
		return &Outcome{Kind: OutcomeFailed, FailReason: fmt.Sprintf("no agent configured with id %q", run.AgentID)}, nil
	}

	if err := l.sessions.AppendMessage(ctx, run.SessionID, &models.Message{
		SessionID: run.SessionID,
		AgentID:   run.AgentID,
		FromID:    run.AgentID,
		Role:      models.RoleUser,
		Content:   task,
	}); err != nil {
		return nil, fmt.Errorf("engine: recording task message: %w", err)
	}

	toolPolicy := &policy.Policy{Allow: agentCfg.Capabilities}

	var prevTurn turnOutcome
	hasPrev := false
	var nudgeText string

	for iter := 0; iter < l.maxIters; iter++ {
		select {
		case <-ctx.Done():
			return &Outcome{Kind: OutcomeCancelled}, nil
		default:
		}

		history, err := l.sessions.History(run.SessionID, run.AgentID, 0)
		if err != nil {
			return &Outcome{Kind: OutcomeFailed, FailReason: err.Error()}, nil
		}

		allowedTools := l.policy.AllowedNames(toolPolicy, l.registry.Names())
		system, messages := buildPrompt(agentCfg.RolePrompt, allowedTools, history, false, nudgeText)

		provider, nativeModel, err := l.resolver.Resolve(agentCfg.Model)
		if err != nil {
			return &Outcome{Kind: OutcomeFailed, FailReason: err.Error()}, nil
		}

		raw, err := l.complete(ctx, provider, nativeModel, system, messages, run)
		if err != nil {
			return &Outcome{Kind: OutcomeFailed, FailReason: err.Error()}, nil
		}

		allowedSet := make(map[string]bool, len(allowedTools))
		for _, name := range allowedTools {
			allowedSet[name] = true
		}
		parsed := ParseReply(raw, func(name string) bool { return allowedSet[name] })

		if err := l.sessions.AppendMessage(ctx, run.SessionID, &models.Message{
			SessionID: run.SessionID,
			AgentID:   run.AgentID,
			FromID:    run.AgentID,
			Role:      models.RoleAssistant,
			Content:   parsed.Thought,
			ToolCalls: parsed.ToolCalls,
		}); err != nil {
			return nil, fmt.Errorf("engine: recording assistant message: %w", err)
		}
		l.bus.Emit(ctx, models.Event{Kind: models.EventMessage, AgentID: run.AgentID, SessionID: run.SessionID, Role: models.RoleAssistant, Text: parsed.Thought})

		curr := turnOutcome{rawReply: raw, thought: parsed.Thought, calls: parsed.ToolCalls, malformed: parsed.Malformed}
		nudgeKind, nudgeMsg := selectNudge(prevTurn, curr, hasPrev)
		if l.metrics != nil && nudgeKind != NudgeNone {
			l.metrics.NudgesInjected.WithLabelValues(string(nudgeKind)).Inc()
		}

		if len(parsed.ToolCalls) == 0 && nudgeKind == NudgeNone {
			return &Outcome{Kind: OutcomeCompleted, FinalMessage: parsed.Thought}, nil
		}
		if len(parsed.ToolCalls) == 0 {
			nudgeText = nudgeMsg
			prevTurn, hasPrev = curr, true
			continue
		}

		if planOutcome := l.executeTurn(ctx, run, parsed.ToolCalls); planOutcome != nil {
			return planOutcome, nil
		}

		nudgeText = nudgeMsg
		prevTurn, hasPrev = curr, true
	}

	return &Outcome{Kind: OutcomeIterationCapExceeded}, nil
}

// complete drives one model call to completion, concatenating text chunks
// and forwarding them to the event bus as they stream in. Tool
// definitions are deliberately never attached to the request — the legal
// tool vocabulary reaches the model through the prompt's response-format
// instruction, and calls are recovered by bracket-matching the reply text
// (see reply.go), not via provider-native tool-calling.
func (l *TurnLoop) complete(ctx context.Context, provider providers.LLMProvider, model, system string, messages []providers.CompletionMessage, run *models.AgentRun) (string, error) {
	chunks, err := provider.Complete(ctx, &providers.CompletionRequest{Model: model, System: system, Messages: messages})
	if err != nil {
		return "", err
	}
	var text string
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		if chunk.Text != "" {
			text += chunk.Text
			l.bus.Emit(ctx, models.Event{Kind: models.EventToken, AgentID: run.AgentID, SessionID: run.SessionID, Text: chunk.Text})
		}
		if chunk.Done {
			break
		}
	}
	return text, nil
}

// executeTurn runs a turn's tool calls sequentially in parse order,
// recording each result and emitting an Activity event. It returns a
// non-nil Outcome only when ExitPlanMode was called successfully, which
// ends the run immediately with a PlanProposed outcome: a proposed plan
// always halts the loop for approval before any further tool may run.
func (l *TurnLoop) executeTurn(ctx context.Context, run *models.AgentRun, calls []models.ToolCall) *Outcome {
	for _, tc := range calls {
		result := l.executor.Execute(ctx, toolexec.Request{
			ToolCallID:    tc.ID,
			ToolName:      tc.Name,
			Args:          tc.Args,
			WorkspaceRoot: l.workspaceRoot,
			RunID:         run.RunID,
			AgentID:       run.AgentID,
			Depth:         run.Depth,
		})

		status := "ok"
		if result.IsError() {
			status = "error"
		}
		if l.metrics != nil {
			l.metrics.ToolExecutionCounter.WithLabelValues(tc.Name, status).Inc()
		}
		l.bus.Emit(ctx, models.Event{
			Kind: models.EventActivity, AgentID: run.AgentID, SessionID: run.SessionID,
			Tool: tc.Name, Status: status, ArgsSummary: summarizeArgs(tc.Args),
		})

		_ = l.sessions.AppendMessage(ctx, run.SessionID, &models.Message{
			SessionID:     run.SessionID,
			AgentID:       run.AgentID,
			FromID:        run.AgentID,
			Role:          models.RoleTool,
			IsObservation: true,
			ToolResults:   []models.ToolResult{result},
		})

		if tc.Name == "ExitPlanMode" && !result.IsError() {
			summary, items := parsePlanArgs(tc.Args)
			return &Outcome{Kind: OutcomePlanProposed, PlanSummary: summary, PlanItems: items}
		}
	}
	return nil
}
