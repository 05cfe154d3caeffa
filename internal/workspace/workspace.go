// Package workspace manages the per-submission scratch directories that are
// bind-mounted into the sandbox.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// SandboxDir is where every workspace is mounted inside the sandbox.
const SandboxDir = "/workspace"

// Workspace is one uniquely named directory holding a submission's source
// and build artifacts.
type Workspace struct {
	ID string
	// HostDir is the directory on the host filesystem.
	HostDir string
}

// Manager creates and removes workspaces under a base directory.
type Manager struct {
	fs      afero.Fs
	baseDir string
}

// NewManager returns a Manager rooted at baseDir on fs. Passing
// afero.NewOsFs() gives real directories; tests use afero.NewMemMapFs().
func NewManager(fs afero.Fs, baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{fs: fs, baseDir: baseDir}
}

// BaseDir returns the directory workspaces are created in.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Create makes a fresh workspace and writes source to fileName inside it.
// On any failure nothing is left behind.
func (m *Manager) Create(fileName, source string) (*Workspace, error) {
	if err := m.fs.MkdirAll(m.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace base %s: %w", m.baseDir, err)
	}

	id := uuid.NewString()
	dir := filepath.Join(m.baseDir, "judge-"+id)
	// 0777 so the unprivileged sandbox user can write build artifacts.
	if err := m.fs.Mkdir(dir, 0o777); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}
	if err := m.fs.Chmod(dir, 0o777); err != nil {
		_ = m.fs.RemoveAll(dir)
		return nil, fmt.Errorf("chmod workspace %s: %w", dir, err)
	}

	if err := afero.WriteFile(m.fs, filepath.Join(dir, fileName), []byte(source), 0o644); err != nil {
		_ = m.fs.RemoveAll(dir)
		return nil, fmt.Errorf("write source file: %w", err)
	}

	return &Workspace{ID: id, HostDir: dir}, nil
}

// Remove deletes the workspace and everything in it.
func (m *Manager) Remove(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	if err := m.fs.RemoveAll(ws.HostDir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", ws.HostDir, err)
	}
	return nil
}

// Exists reports whether the workspace directory is still present.
func (m *Manager) Exists(ws *Workspace) bool {
	ok, err := afero.DirExists(m.fs, ws.HostDir)
	return err == nil && ok
}
