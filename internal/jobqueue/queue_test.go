package jobqueue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueCreatesDirAndMovesFile(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	path := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	q := New(root)
	require.NoError(t, q.Enqueue(42, path, "a.txt"))

	names, err := q.List(42)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, names)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestListOnMissingQueueReturnsEmpty(t *testing.T) {
	q := New(t.TempDir())
	names, err := q.List(999)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestMoveRelocatesFileAndRemovesEmptyDir(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	path := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	q := New(root)
	require.NoError(t, q.Enqueue(7, path, "a.txt"))

	dispatch := filepath.Join(t.TempDir(), "outgoing")
	require.NoError(t, q.Move(7, "a.txt", dispatch))

	_, err := os.Stat(filepath.Join(dispatch, "a.txt"))
	require.NoError(t, err)

	_, err = os.Stat(q.Dir(7))
	require.True(t, os.IsNotExist(err))
}

func TestListSortedIsDeterministic(t *testing.T) {
	root := t.TempDir()
	q := New(root)
	dir := q.Dir(1)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range []string{"c.txt", "a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
	names, err := q.ListSorted(1)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names)
}

func TestLFSHasChecksAllBitsSet(t *testing.T) {
	f := GoParallel | SplitFileList
	require.True(t, f.Has(GoParallel))
	require.True(t, f.Has(GoParallel|SplitFileList))
	require.False(t, f.Has(DeleteAllFiles))
}
