package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevindra/jcl"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string, createdAt int64, out jcl.Outcome) jcl.RunRecord {
	return jcl.RunRecord{
		ID:         id,
		CreatedAt:  createdAt,
		Source:     "主関数() {}",
		Target:     "int main() {}",
		DurationMs: 12,
		Outcome:    out,
	}
}

func TestInitIdempotent(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "init.db"))
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx))
}

func TestSaveAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	want := record("r1", 1000, jcl.RunFinished("Hello\n", "", 0))
	require.NoError(t, s.SaveRun(ctx, want))

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveRunPreservesFailures(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	want := record("r2", 1000, jcl.CompileFailed("", "out.c:1: error", 1))
	require.NoError(t, s.SaveRun(ctx, want))

	got, err := s.GetRun(ctx, "r2")
	require.NoError(t, err)
	assert.False(t, got.OK)
	assert.Equal(t, jcl.StageCompile, got.Stage)
	assert.Equal(t, jcl.StateCompileFailed, got.State)
	assert.Equal(t, 1, got.ExitCode)
	assert.Equal(t, "out.c:1: error", got.Stderr)
}

func TestGetRunNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, jcl.ErrNotFound))
}

func TestListRunsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := range 5 {
		rec := record(fmt.Sprintf("r%d", i), int64(1000+i), jcl.RunFinished("", "", 0))
		require.NoError(t, s.SaveRun(ctx, rec))
	}

	got, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "r4", got[0].ID)
	assert.Equal(t, "r3", got[1].ID)
	assert.Equal(t, "r2", got[2].ID)
}

func TestListRunsEmpty(t *testing.T) {
	s := testStore(t)
	got, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveRunReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, record("r1", 1000, jcl.RunFinished("a", "", 0))))
	require.NoError(t, s.SaveRun(ctx, record("r1", 1000, jcl.RunFinished("b", "", 0))))

	got, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Stdout)
}

func TestConcurrentSaves(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.SaveRun(ctx, record(fmt.Sprintf("c%d", i), int64(i), jcl.RunFinished("", "", 0))))
		}()
	}
	wg.Wait()

	got, err := s.ListRuns(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}
