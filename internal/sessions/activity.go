package sessions

import (
	"sync"
	"time"

	"github.com/linggen/linggen-agent/pkg/models"
)

// ActivityStore is a keyed store of (repo_path, file_path) -> latest
// FileActivity. It is an advisory marker,
// not part of the durable session log — the core does no per-file locking
// beyond recording who last touched a file, so this lives in memory for the
// lifetime of the process.
type ActivityStore struct {
	mu    sync.RWMutex
	byKey map[activityKey]*models.FileActivity
}

type activityKey struct {
	repoPath string
	filePath string
}

// NewActivityStore creates an empty ActivityStore.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{byKey: make(map[activityKey]*models.FileActivity)}
}

// Record overwrites the latest activity for (repoPath, filePath).
func (a *ActivityStore) Record(repoPath, filePath, agentID string, status models.FileActivityStatus) {
	key := activityKey{repoPath: repoPath, filePath: filePath}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byKey[key] = &models.FileActivity{
		RepoPath:     repoPath,
		FilePath:     filePath,
		AgentID:      agentID,
		Status:       status,
		LastModified: time.Now().UTC(),
	}
}

// Get returns the latest activity for a single file, if any.
func (a *ActivityStore) Get(repoPath, filePath string) (*models.FileActivity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.byKey[activityKey{repoPath: repoPath, filePath: filePath}]
	return v, ok
}

// ForRepo enumerates every tracked activity under repoPath.
func (a *ActivityStore) ForRepo(repoPath string) []*models.FileActivity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*models.FileActivity, 0)
	for key, v := range a.byKey {
		if key.repoPath == repoPath {
			out = append(out, v)
		}
	}
	return out
}
