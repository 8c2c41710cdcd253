package sessions

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/linggen/linggen-agent/pkg/models"
)

// Store is the Session Log: the exclusive owner of persisted history,
// file-backed as `sessions/<session_id>/session.yaml` +
// `sessions/<session_id>/messages.jsonl` under a project's `.linggen/`
// directory. The turn loop only ever reads and appends through this API; it
// never mutates the on-disk files directly.
type Store struct {
	root   string // <project>/.linggen
	locker Locker

	mu    sync.RWMutex
	cache map[string][]*models.Message // sessionID -> ordered messages, read cache
}

// NewStore opens (without yet creating) the session log rooted at
// projectLinggenDir (typically "<project>/.linggen").
func NewStore(projectLinggenDir string, locker Locker) *Store {
	return &Store{
		root:   projectLinggenDir,
		locker: locker,
		cache:  make(map[string][]*models.Message),
	}
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.root, "sessions", id)
}

// Create writes a new session.yaml and an empty messages.jsonl. Returns an
// error if a session with this ID is already on disk.
func (s *Store) Create(sess *models.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	dir := s.sessionDir(sess.ID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("sessions: session %s already exists", sess.ID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sessions: create dir: %w", err)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	if err := s.writeSessionYAML(sess); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "messages.jsonl"), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sessions: create messages.jsonl: %w", err)
	}
	return f.Close()
}

func (s *Store) writeSessionYAML(sess *models.Session) error {
	b, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("sessions: marshal session.yaml: %w", err)
	}
	return os.WriteFile(filepath.Join(s.sessionDir(sess.ID), "session.yaml"), b, 0o644)
}

// Get reads a session's metadata from session.yaml.
func (s *Store) Get(id string) (*models.Session, error) {
	b, err := os.ReadFile(filepath.Join(s.sessionDir(id), "session.yaml"))
	if err != nil {
		return nil, fmt.Errorf("sessions: read session.yaml: %w", err)
	}
	var sess models.Session
	if err := yaml.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("sessions: unmarshal session.yaml: %w", err)
	}
	sess.ID = id
	return &sess, nil
}

// GetOrCreate loads an existing session by id, or creates one if absent.
func (s *Store) GetOrCreate(id, projectPath string) (*models.Session, error) {
	if sess, err := s.Get(id); err == nil {
		return sess, nil
	}
	sess := &models.Session{ID: id, ProjectPath: projectPath, CreatedAt: time.Now().UTC()}
	if err := s.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// jsonLine is the on-disk shape of one messages.jsonl record:
// {agent_id, from_id, to_id, content, timestamp, is_observation}.
type jsonLine struct {
	AgentID       string `json:"agent_id"`
	FromID        string `json:"from_id"`
	ToID          string `json:"to_id,omitempty"`
	Content       string `json:"content"`
	Timestamp     int64  `json:"timestamp"`
	IsObservation bool   `json:"is_observation,omitempty"`
	Role          string `json:"role,omitempty"`
	ID            string `json:"id,omitempty"`
}

// AppendMessage appends msg to the session's messages.jsonl, always assigning
// a monotonically increasing TimestampNanos. Writers are serialised
// per session via the Locker: a single writer per session at a time.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if err := s.locker.Lock(ctx, sessionID); err != nil {
		return fmt.Errorf("sessions: acquire write lock: %w", err)
	}
	defer s.locker.Unlock(sessionID)

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}

	s.mu.Lock()
	last := s.lastTimestampLocked(sessionID)
	now := time.Now().UnixNano()
	if now <= last {
		now = last + 1
	}
	msg.TimestampNanos = now
	msg.CreatedAt = time.Unix(0, now).UTC()
	s.mu.Unlock()

	line := jsonLine{
		AgentID:       msg.AgentID,
		FromID:        msg.FromID,
		ToID:          msg.ToID,
		Content:       msg.Content,
		Timestamp:     msg.TimestampNanos,
		IsObservation: msg.IsObservation,
		Role:          string(msg.Role),
		ID:            msg.ID,
	}
	b, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("sessions: marshal message: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(s.sessionDir(sessionID), "messages.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sessions: open messages.jsonl: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("sessions: append message: %w", err)
	}

	s.mu.Lock()
	s.cache[sessionID] = append(s.cache[sessionID], msg)
	s.mu.Unlock()
	return nil
}

// lastTimestampLocked returns the highest TimestampNanos seen for a
// session, loading its cache from disk on first access. Caller holds s.mu.
func (s *Store) lastTimestampLocked(sessionID string) int64 {
	msgs, ok := s.cache[sessionID]
	if !ok {
		loaded, err := s.loadFromDisk(sessionID)
		if err == nil {
			s.cache[sessionID] = loaded
			msgs = loaded
		}
	}
	if len(msgs) == 0 {
		return 0
	}
	return msgs[len(msgs)-1].TimestampNanos
}

func (s *Store) loadFromDisk(sessionID string) ([]*models.Message, error) {
	f, err := os.Open(filepath.Join(s.sessionDir(sessionID), "messages.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []*models.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var jl jsonLine
		if err := json.Unmarshal(line, &jl); err != nil {
			continue // skip malformed lines rather than fail the whole read
		}
		out = append(out, &models.Message{
			ID:             jl.ID,
			SessionID:      sessionID,
			AgentID:        jl.AgentID,
			FromID:         jl.FromID,
			ToID:           jl.ToID,
			Role:           models.Role(jl.Role),
			Content:        jl.Content,
			IsObservation:  jl.IsObservation,
			TimestampNanos: jl.Timestamp,
			CreatedAt:      time.Unix(0, jl.Timestamp).UTC(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampNanos < out[j].TimestampNanos })
	return out, scanner.Err()
}

// History returns the ordered history for a session, optionally filtered to
// a single agent, and capped to the last `limit` messages (0 = unlimited).
func (s *Store) History(sessionID, agentID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	msgs, ok := s.cache[sessionID]
	s.mu.RUnlock()
	if !ok {
		loaded, err := s.loadFromDisk(sessionID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[sessionID] = loaded
		s.mu.Unlock()
		msgs = loaded
	}

	var filtered []*models.Message
	for _, m := range msgs {
		if agentID == "" || m.AgentID == agentID {
			filtered = append(filtered, m)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}
