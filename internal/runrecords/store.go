// Package runrecords persists a terminal snapshot of each root AgentRun to
// the user-home global layout, `projects/<encoded_path>/runs/<run_id>.json`,
// independent of the project-scoped Session Log. It exists so an operator
// can audit what a run did after the fact without the project's own
// .linggen/ directory (sessions, skills) in scope.
package runrecords

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/linggen/linggen-agent/internal/config"
	"github.com/linggen/linggen-agent/pkg/models"
)

// Store writes AgentRun snapshots under <home>/.linggen/projects/<encoded>/runs/.
type Store struct {
	runsDir string
}

// NewStore opens a Store rooted at home (typically the user's $HOME),
// scoped to the project at projectPath via config.EncodeProjectPath.
func NewStore(home, projectPath string) *Store {
	dir := filepath.Join(home, ".linggen", "projects", config.EncodeProjectPath(projectPath), "runs")
	return &Store{runsDir: dir}
}

// Save writes run as <run_id>.json, overwriting any prior snapshot for the
// same run id (a run is recorded once, on its terminal transition, but a
// caller recording mid-run state is tolerated).
func (s *Store) Save(run *models.AgentRun) error {
	if run.RunID == "" {
		return fmt.Errorf("runrecords: run id is required")
	}
	if err := os.MkdirAll(s.runsDir, 0o755); err != nil {
		return fmt.Errorf("runrecords: creating %s: %w", s.runsDir, err)
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("runrecords: encoding run %s: %w", run.RunID, err)
	}
	path := filepath.Join(s.runsDir, run.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("runrecords: writing %s: %w", path, err)
	}
	return nil
}

// Load reads back a previously saved run snapshot.
func (s *Store) Load(runID string) (*models.AgentRun, error) {
	data, err := os.ReadFile(filepath.Join(s.runsDir, runID+".json"))
	if err != nil {
		return nil, err
	}
	var run models.AgentRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("runrecords: decoding %s: %w", runID, err)
	}
	return &run, nil
}
