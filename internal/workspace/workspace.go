package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/llnl/doxysite/internal/logfields"
)

// Manager owns one workspace directory, either a throwaway per-build scratch
// dir or a fixed persistent one.
type Manager struct {
	baseDir    string
	dir        string
	persistent bool
}

// NewEphemeral returns a manager that creates a fresh uniquely named scratch
// directory under baseDir on Create and deletes it on Cleanup. An empty
// baseDir falls back to the system temp dir.
func NewEphemeral(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistent returns a manager for the fixed directory baseDir/name.
// Cleanup leaves the directory in place so checkouts and extraction output
// carry over to the next build. An empty name defaults to "workspace".
func NewPersistent(baseDir, name string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if name == "" {
		name = "workspace"
	}
	return &Manager{
		baseDir:    baseDir,
		dir:        filepath.Join(baseDir, name),
		persistent: true,
	}
}

// Create materializes the workspace directory. Ephemeral managers get a new
// unique directory each call; concurrent daemon workers starting in the same
// second must not collide, so the timestamp is suffixed by MkdirTemp.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("create persistent workspace: %w", err)
		}
		slog.Debug("Using persistent workspace", logfields.Path(m.dir))
		return nil
	}

	stamp := time.Now().Format("20060102-150405")
	dir, err := os.MkdirTemp(m.baseDir, fmt.Sprintf("doxysite-%s-", stamp))
	if err != nil {
		return fmt.Errorf("create scratch workspace: %w", err)
	}
	m.dir = dir
	slog.Debug("Created scratch workspace", logfields.Path(dir))
	return nil
}

// Path returns the workspace directory, empty until Create has run for
// ephemeral managers.
func (m *Manager) Path() string { return m.dir }

// Cleanup removes an ephemeral workspace. Persistent workspaces are kept.
func (m *Manager) Cleanup() error {
	if m.dir == "" || m.persistent {
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("cleanup workspace: %w", err)
	}
	slog.Debug("Removed scratch workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

// Subdir creates and returns a subdirectory inside the workspace.
func (m *Manager) Subdir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	sub := filepath.Join(m.dir, name)
	if err := os.MkdirAll(sub, 0o750); err != nil {
		return "", fmt.Errorf("create workspace subdir %s: %w", name, err)
	}
	return sub, nil
}
