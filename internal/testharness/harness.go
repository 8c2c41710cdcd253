// Package testharness wires a complete in-memory Runtime — the same
// components cmd/linggen assembles for a live process, minus anything that
// touches the real network (the skills Manager still scans the user's
// ~/.linggen/skills directory) — behind a stub
// OpenAI-compatible chat endpoint, so integration tests can replay a
// scripted model conversation against the real Turn Loop, Tool Executor,
// and Event Bus.
package testharness

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/linggen/linggen-agent/internal/config"
	"github.com/linggen/linggen-agent/internal/delegation"
	"github.com/linggen/linggen-agent/internal/engine"
	"github.com/linggen/linggen-agent/internal/eventbus"
	"github.com/linggen/linggen-agent/internal/observability"
	"github.com/linggen/linggen-agent/internal/providers"
	"github.com/linggen/linggen-agent/internal/providers/openai"
	"github.com/linggen/linggen-agent/internal/sessions"
	"github.com/linggen/linggen-agent/internal/skills"
	"github.com/linggen/linggen-agent/internal/toolexec"
	"github.com/linggen/linggen-agent/internal/tools/exec"
	"github.com/linggen/linggen-agent/internal/tools/files"
	"github.com/linggen/linggen-agent/internal/tools/policy"
	"github.com/linggen/linggen-agent/pkg/models"
)

// Runtime bundles the engine components a seed scenario drives.
type Runtime struct {
	Loop       *engine.TurnLoop
	Sessions   *sessions.Store
	Delegation *delegation.Manager
	Events     <-chan models.Event
	Server     *httptest.Server
	recorder   *requestRecorder
}

// Requests returns the raw request body sent to the stub model endpoint on
// each call, in order — the prompt the Turn Loop sent the model that turn,
// including any nudge text injected ahead of the user's task.
func (rt *Runtime) Requests() []string { return rt.recorder.snapshot() }

// requestRecorder captures every request body the stub server receives.
type requestRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (r *requestRecorder) record(body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, string(body))
}

func (r *requestRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.bodies))
	copy(out, r.bodies)
	return out
}

// Reply scripts one model turn: Text is the conversational prefix (may be
// empty); ToolCall, when non-empty, is the raw `{"name":...,"args":...}`
// text the Turn Loop's bracket-matching parser recovers as a tool call.
type Reply struct {
	Text     string
	ToolCall string
}

// NewScriptedServer starts a stub /v1/chat/completions endpoint that
// replies with the next entry in replies on each call, holding the last
// entry steady once the script is exhausted (so a run that keeps
// retrying past the scripted turns doesn't panic on an out-of-range index).
// Every request body received is appended to rec (nil disables recording).
func NewScriptedServer(replies []Reply, rec *requestRecorder) *httptest.Server {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if rec != nil {
			if body, err := io.ReadAll(r.Body); err == nil {
				rec.record(body)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		var reply Reply
		if n >= 0 {
			reply = replies[n]
		}
		if reply.Text != "" {
			streamChunk(w, reply.Text, "")
		}
		streamChunk(w, reply.ToolCall, "stop")
		fmt.Fprint(w, "data: [DONE]\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	})
	return httptest.NewServer(mux)
}

func streamChunk(w http.ResponseWriter, content, finishReason string) {
	reason := "null"
	if finishReason != "" {
		reason = fmt.Sprintf("%q", finishReason)
	}
	fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"stub-model\","+
		"\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":%s}]}\n\n", content, reason)
}

// Options configures New.
type Options struct {
	Workspace  string
	MemoryRoot string
	MaxIters   int
	MaxDepth   int
	Replies    []Reply
	// ExtraAgents names additional agents (beyond the default "ling")
	// to register in the roster, all bound to the same stub model —
	// needed for delegation-chain scenarios where Task targets a
	// second or third hop.
	ExtraAgents []string
}

// New builds a Runtime scoped to opts.Workspace, with an agent named "ling"
// (plus any opts.ExtraAgents) bound to a stub server scripted from
// opts.Replies. The caller must defer rt.Server.Close().
func New(opts Options) (*Runtime, error) {
	if opts.MaxIters <= 0 {
		opts.MaxIters = 10
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	rec := &requestRecorder{}
	server := NewScriptedServer(opts.Replies, rec)

	agents := map[string]config.AgentConfig{
		"ling": {RolePrompt: "You are ling, a careful coding agent.", Model: "stub-model", MaxDepth: opts.MaxDepth},
	}
	for _, id := range opts.ExtraAgents {
		agents[id] = config.AgentConfig{RolePrompt: fmt.Sprintf("You are %s, a delegated agent.", id), Model: "stub-model", MaxDepth: opts.MaxDepth}
	}

	cfg := &config.Config{
		WorkspaceRoot: opts.Workspace,
		MaxIters:      opts.MaxIters,
		MaxDepth:      opts.MaxDepth,
		Agents:        agents,
		Models: map[string]config.ModelConfig{
			"stub-model": {Provider: "ollama", Name: "stub-model", APIKey: "unused", BaseURL: server.URL + "/v1"},
		},
		Logging: config.LoggingConfig{Level: "error", Format: "console"},
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	metrics := observability.NewMetrics()

	registry := toolexec.NewRegistry()
	fileCfg := files.Config{Workspace: cfg.WorkspaceRoot, MemoryRoot: opts.MemoryRoot}
	toRegister := []toolexec.Tool{
		files.NewGlobTool(fileCfg),
		files.NewReadTool(fileCfg),
		files.NewGrepTool(fileCfg),
		files.NewWriteTool(fileCfg),
		files.NewEditTool(fileCfg),
		exec.NewBashTool(cfg.WorkspaceRoot),
	}
	for _, t := range toRegister {
		if err := registry.Register(t); err != nil {
			server.Close()
			return nil, fmt.Errorf("registering %s: %w", t.Name(), err)
		}
	}

	linggenDir := filepath.Join(opts.Workspace, ".linggen")
	skillMgr, err := skills.NewManager(nil, linggenDir, nil)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("skills manager: %w", err)
	}
	if err := registry.Register(skills.NewTool(skillMgr)); err != nil {
		server.Close()
		return nil, err
	}

	store := sessions.NewStore(linggenDir, sessions.NewLocalLocker(0))
	bus, eventsCh := eventbus.New(eventbus.DefaultConfig())

	backends := map[string]providers.LLMProvider{
		"ollama": openai.NewWithBaseURL("unused", server.URL+"/v1"),
	}
	providerResolver := engine.NewProviderResolver(cfg.Models, backends)

	policyResolver := policy.NewResolver()

	executor := toolexec.NewExecutor(registry, toolexec.DefaultExecutorConfig(), nil)
	loop := engine.NewTurnLoop(cfg, registry, executor, policyResolver, store, bus, providerResolver)
	loop.SetMetrics(metrics)
	loop.SetLogger(logger)

	runStore := delegation.NewMemoryStore()
	mgr := delegation.NewManager(runStore, cfg.MaxDepth, loop.ChildRun)
	loop.SetDelegation(mgr)
	if err := registry.Register(delegation.NewTool(mgr, loop.LookupRun)); err != nil {
		server.Close()
		return nil, err
	}

	return &Runtime{
		Loop: loop, Sessions: store, Delegation: mgr, Events: eventsCh, Server: server, recorder: rec,
	}, nil
}

// DrainEvents discards every event the Runtime emits until the returned
// stop func is called or Events closes, so a test never needs its own
// event bus consumer and Emit is never left blocking on an unread channel.
func DrainEvents(rt *Runtime) (stop func()) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case _, ok := <-rt.Events:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
