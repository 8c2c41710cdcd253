package delegation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/linggen/linggen-agent/pkg/models"
)

// ErrDepthLimit is returned when a Task call would exceed the configured
// delegation depth.
var ErrDepthLimit = fmt.Errorf("depth limit")

// ChildRunner drives a nested Turn Loop to completion for a delegated task.
// It is injected rather than imported directly so the delegation package
// never depends on the engine package — the agent/child-run/parent
// relationship goes through run_id strings and this callback rather than
// in-memory back-pointers.
type ChildRunner func(ctx context.Context, targetAgentID, task string, run *models.AgentRun) (outcomeText string, err error)

// Manager owns the run tree and enforces the delegation policy: depth
// limits, synchronous Task execution, and cascading cancellation. AskUser's
// root-run-only rule is enforced by the AskUser tool itself, from the
// request's Depth.
type Manager struct {
	store    Store
	maxDepth int
	runner   ChildRunner
	cancels  *cancelRegistry

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewManager builds a Manager. maxDepth is the cap (3 if unset) that Spawn
// applies to every delegation; there is no per-agent override.
func NewManager(store Store, maxDepth int, runner ChildRunner) *Manager {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Manager{
		store:    store,
		maxDepth: maxDepth,
		runner:   runner,
		cancels:  newCancelRegistry(),
		active:   make(map[string]context.CancelFunc),
	}
}

// RootRun creates the root AgentRun for a user-initiated turn loop
// invocation. There is no parent and no depth check.
func (m *Manager) RootRun(ctx context.Context, agentID, sessionID string) (*models.AgentRun, context.Context, context.CancelFunc) {
	run := &models.AgentRun{
		RunID:     uuid.NewString(),
		AgentID:   agentID,
		SessionID: sessionID,
		Depth:     0,
		Status:    models.RunRunning,
	}
	_ = m.store.Create(run)
	runCtx, cancel := context.WithCancel(ctx)
	m.cancels.register(run.RunID, cancel)
	return run, runCtx, cancel
}

// Spawn executes a Task tool call synchronously: it creates the child
// AgentRun, enforces the depth limit, drives the nested loop via runner to
// completion, and records the terminal status. The call blocks the parent
// turn until the child run resolves.
func (m *Manager) Spawn(ctx context.Context, parent *models.AgentRun, targetAgentID, task string) (string, error) {
	parentDepth := m.store.Depth(parent.RunID)
	if parentDepth+1 > m.maxDepth {
		return "", fmt.Errorf("%w: max depth %d exceeded", ErrDepthLimit, m.maxDepth)
	}

	child := &models.AgentRun{
		RunID:       uuid.NewString(),
		ParentRunID: parent.RunID,
		AgentID:     targetAgentID,
		SessionID:   parent.SessionID,
		Depth:       parentDepth + 1,
		Status:      models.RunRunning,
	}
	if err := m.store.Create(child); err != nil {
		return "", err
	}

	childCtx, cancel := context.WithCancel(ctx)
	m.cancels.register(child.RunID, cancel)
	defer func() {
		cancel()
		m.cancels.unregister(child.RunID)
	}()

	outcome, err := m.runner(childCtx, targetAgentID, task, child)
	if err != nil {
		_ = m.store.Transition(child.RunID, models.RunFailed, err.Error())
		return "", err
	}
	_ = m.store.Transition(child.RunID, models.RunCompleted, "")
	return outcome, nil
}

// CancelTree cancels runID and every descendant, via both the context
// cancellation registered at spawn time and a Cancelled status transition.
func (m *Manager) CancelTree(runID string) {
	ms, ok := m.store.(*MemoryStore)
	var ids []string
	if ok {
		ids = ms.descendants(runID)
	} else {
		ids = []string{runID}
	}
	for _, id := range ids {
		m.cancels.cancelOne(id)
		if run, ok := m.store.Get(id); ok && !run.Status.IsTerminal() {
			_ = m.store.Transition(id, models.RunCancelled, "parent cancelled")
		}
	}
}

// Store exposes the underlying run tree store for observer traversal APIs.
func (m *Manager) Store() Store { return m.store }
