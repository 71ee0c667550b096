// Package scope manages isolated per-job working directories.
package scope

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Manager allocates working directories under a single root. Each Scope
// is owned exclusively by the job that acquired it.
type Manager struct {
	root string
}

// NewManager validates the root directory, creating it if needed, and
// proves it is writable before any job runs.
func NewManager(root string) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("workdir root is required")
	}
	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(root, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create workdir root: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat workdir root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("workdir root %s is not a directory", root)
	}
	probe := filepath.Join(root, ".writable_probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("workdir root is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("remove writability probe: %w", err)
	}
	return &Manager{root: root}, nil
}

// Acquire creates the working directory for jobID and returns its handle.
// Job IDs are UUIDs; anything resembling a path component is rejected so
// a scope can never escape the root.
func (m *Manager) Acquire(jobID string) (*Scope, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return nil, fmt.Errorf("job id %q is not a valid directory name", jobID)
	}
	dir := filepath.Join(m.root, jobID)
	if err := os.Mkdir(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create job workdir: %w", err)
	}
	return &Scope{jobID: jobID, dir: dir}, nil
}

// Scope is the exclusively-owned working storage for one job's lifetime.
type Scope struct {
	jobID    string
	dir      string
	released atomic.Bool
}

// Dir returns the scope's directory path.
func (s *Scope) Dir() string {
	return s.dir
}

// JobID returns the owning job's ID.
func (s *Scope) JobID() string {
	return s.jobID
}

// Path joins name into the scope directory.
func (s *Scope) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Release recursively removes the directory and everything inside it.
// Safe to call more than once and safe if the directory was partially
// consumed by a failed write; subsequent calls are no-ops.
func (s *Scope) Release() error {
	if s == nil {
		return nil
	}
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	if err := os.RemoveAll(s.dir); err != nil {
		// Allow a later retry; the leak gets reported either way.
		s.released.Store(false)
		return fmt.Errorf("remove job workdir: %w", err)
	}
	return nil
}
