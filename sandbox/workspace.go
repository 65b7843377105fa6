package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	workspacePrefix = "jcl_"
	sourceFile      = "out.c"
	binaryFile      = "a.out"
)

// workspace is a private directory holding one source file and, after a
// successful compile, one binary.
type workspace struct {
	dir string
}

func newWorkspace(root string) (*workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o750); err != nil {
			return nil, fmt.Errorf("create workspace root %q: %w", root, err)
		}
	}
	dir, err := os.MkdirTemp(root, workspacePrefix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	// exec resolves a relative binary path against cmd.Dir.
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &workspace{dir: abs}, nil
}

func (w *workspace) source() string { return filepath.Join(w.dir, sourceFile) }
func (w *workspace) binary() string { return filepath.Join(w.dir, binaryFile) }

func (w *workspace) writeSource(target string) error {
	if err := os.WriteFile(w.source(), []byte(target), 0o640); err != nil {
		return fmt.Errorf("write %s: %w", sourceFile, err)
	}
	return nil
}

// release removes the workspace and everything in it.
func (w *workspace) release() error {
	if err := os.RemoveAll(w.dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove workspace %q: %w", w.dir, err)
	}
	return nil
}
