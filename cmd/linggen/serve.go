package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/linggen/linggen-agent/internal/config"
	"github.com/linggen/linggen-agent/pkg/models"
)

func newServeCmd() *cobra.Command {
	var (
		port       int
		root       string
		configPath string
		dev        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine as a long-lived process behind a thin HTTP boundary",
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
			if dev {
				cfg.Logging.Format = "console"
				cfg.Logging.Level = "debug"
			}

			// AskUser has no terminal to block on under serve; a nil Prompter
			// makes the tool fail every call rather than block forever.
			rt, err := buildRuntime(cfg, root, nil)
			if err != nil {
				return fmt.Errorf("initializing runtime: %w", err)
			}

			srv := newAPIServer(rt)
			go srv.drainEvents()

			addr := fmt.Sprintf(":%d", port)
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.mux(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			rt.logger.Info(context.Background(), "starting http server", "addr", addr)
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&root, "root", ".", "workspace root the engine operates under")
	cmd.Flags().StringVar(&configPath, "config", "", "path to the agent roster/model config (defaults to <root>/linggen.yaml)")
	cmd.Flags().BoolVar(&dev, "dev", false, "verbose console logging instead of structured JSON")

	return cmd
}

// apiServer exposes the minimal HTTP boundary named in the CLI surface:
// health, metrics, run submission, and a best-effort event stream. It is
// deliberately not a full REST product surface — no auth, no session
// listing, no artifact browsing.
type apiServer struct {
	rt *runtime

	subsMu sync.RWMutex
	subs   map[chan models.Event]struct{}
}

func newAPIServer(rt *runtime) *apiServer {
	return &apiServer{rt: rt, subs: make(map[chan models.Event]struct{})}
}

// drainEvents is the sole consumer of rt.events; it fans each event out to
// every currently-subscribed SSE client without blocking on slow readers.
func (s *apiServer) drainEvents() {
	for e := range s.rt.events {
		s.subsMu.RLock()
		for ch := range s.subs {
			select {
			case ch <- e:
			default:
			}
		}
		s.subsMu.RUnlock()
	}
}

func (s *apiServer) subscribe() chan models.Event {
	ch := make(chan models.Event, 32)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	return ch
}

func (s *apiServer) unsubscribe(ch chan models.Event) {
	s.subsMu.Lock()
	delete(s.subs, ch)
	s.subsMu.Unlock()
	close(ch)
}

func (s *apiServer) mux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/runs", s.handleRuns)
	mux.HandleFunc("/v1/events", s.handleEvents)
	return mux
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

type runRequest struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Task      string `json:"task"`
}

type runResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// handleRuns runs one root agent turn loop to completion and responds with
// its terminal outcome. Streaming progress is only available via /v1/events.
func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Task == "" {
		http.Error(w, "task is required", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		agentID, err := defaultAgentID(s.rt.cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.AgentID = agentID
	}
	if req.SessionID == "" {
		req.SessionID = fmt.Sprintf("http-%d", time.Now().UnixNano())
	}
	if _, err := s.rt.sessions.GetOrCreate(req.SessionID, s.rt.cfg.WorkspaceRoot); err != nil {
		http.Error(w, "opening session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	outcome, err := s.rt.loop.RunRoot(r.Context(), req.AgentID, req.SessionID, req.Task)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := runResponse{Outcome: string(outcome.Kind)}
	switch {
	case outcome.FinalMessage != "":
		resp.Message = outcome.FinalMessage
	case outcome.PlanSummary != "":
		resp.Message = outcome.PlanSummary
	case outcome.FailReason != "":
		resp.Message = outcome.FailReason
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleEvents streams the Event Bus as Server-Sent Events. Fire-and-forget,
// per pkg/models.Event's doc comment: a slow or disconnected client drops
// events rather than blocking the bus.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
			flusher.Flush()
		}
	}
}
