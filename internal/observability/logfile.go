package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// logFilePrefix is the base name rolled daily under the global log directory,
// per the on-disk layout contract: logs/linggen-agent.YYYY-MM-DD.
const logFilePrefix = "linggen-agent"

// logRetentionDays is how many days of rolled logs are kept before cleanup.
const logRetentionDays = 30

// DailyLogWriter opens (creating if needed) today's rolled log file under
// dir and returns it for use as a Logger's Output. Callers should call
// PruneOldLogs periodically (e.g. once per process start) to enforce
// retention.
func DailyLogWriter(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := fmt.Sprintf("%s.%s", logFilePrefix, time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// PruneOldLogs removes rolled log files older than logRetentionDays.
func PruneOldLogs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -logRetentionDays)
	prefix := logFilePrefix + "."
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		dateStr := strings.TrimPrefix(name, prefix)
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

// listRolledLogs returns rolled log file names in the directory, sorted
// ascending by date.
func listRolledLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	prefix := logFilePrefix + "."
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
