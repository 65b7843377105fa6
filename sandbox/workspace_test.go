package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceLifecycle(t *testing.T) {
	root := t.TempDir()
	ws, err := newWorkspace(root)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(ws.dir), workspacePrefix))
	require.NoError(t, ws.writeSource("int main(){}"))
	data, err := os.ReadFile(ws.source())
	require.NoError(t, err)
	assert.Equal(t, "int main(){}", string(data))
	assert.Equal(t, filepath.Join(ws.dir, "a.out"), ws.binary())

	require.NoError(t, ws.release())
	_, err = os.Stat(ws.dir)
	assert.True(t, os.IsNotExist(err))

	// Releasing twice is harmless.
	assert.NoError(t, ws.release())
}

func TestWorkspacesAreUnique(t *testing.T) {
	root := t.TempDir()
	a, err := newWorkspace(root)
	require.NoError(t, err)
	b, err := newWorkspace(root)
	require.NoError(t, err)
	assert.NotEqual(t, a.dir, b.dir)
}

func TestWorkspaceCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	ws, err := newWorkspace(root)
	require.NoError(t, err)
	assert.Equal(t, root, filepath.Dir(ws.dir))
}

func TestWorkspaceRelativeRootIsAbsolute(t *testing.T) {
	t.Chdir(t.TempDir())
	ws, err := newWorkspace(filepath.Join("tmp", "jcl"))
	require.NoError(t, err)
	defer ws.release()
	assert.True(t, filepath.IsAbs(ws.dir))
	assert.True(t, filepath.IsAbs(ws.binary()))
}
