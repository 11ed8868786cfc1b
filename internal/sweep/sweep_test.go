package sweep

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/afd-project/afd/internal/dirconfig"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepDeletesOldUnknownFileWhenFlagSet(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "old.dat"), 2*time.Hour)

	dir := &dirconfig.DirectoryEntry{
		Alias:           "a1",
		Path:            root,
		UnknownFileTime: time.Hour,
		DeleteFlags:     dirconfig.DeleteUnknown,
	}
	summary, err := Sweep(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DeletedFiles)

	_, statErr := os.Stat(filepath.Join(root, "old.dat"))
	require.True(t, os.IsNotExist(statErr))
}

func TestSweepReportsWithoutDeletingWhenOnlyReportFlagSet(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "old.dat"), 2*time.Hour)

	dir := &dirconfig.DirectoryEntry{
		Alias:           "a1",
		Path:            root,
		UnknownFileTime: time.Hour,
		Policy:          dirconfig.Policy{ReportUnknown: true},
	}
	summary, err := Sweep(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.UnknownFiles)
	require.Equal(t, 0, summary.DeletedFiles)

	_, statErr := os.Stat(filepath.Join(root, "old.dat"))
	require.NoError(t, statErr)
}

func TestSweepLeavesFreshFilesAlone(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "fresh.dat"), time.Minute)

	dir := &dirconfig.DirectoryEntry{
		Alias:           "a1",
		Path:            root,
		UnknownFileTime: time.Hour,
		DeleteFlags:     dirconfig.DeleteUnknown,
	}
	summary, err := Sweep(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, summary.DeletedFiles)
	require.Equal(t, 0, summary.UnknownFiles)
}

func TestSweepDotLeadingFileReportedAsUnknownWhenNotDeletedAndReportFlagSet(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ".partial"), 2*time.Hour)

	dir := &dirconfig.DirectoryEntry{
		Alias:           "a1",
		Path:            root,
		UnknownFileTime: time.Hour,
		Policy:          dirconfig.Policy{ReportUnknown: true},
	}
	summary, err := Sweep(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.UnknownFiles)
	require.Equal(t, 0, summary.JunkFiles)
	require.Equal(t, 0, summary.DeletedFiles)
}

func TestSweepDotLeadingFileNotDeletedAndReportFlagUnsetCountsNothing(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ".partial"), 2*time.Hour)

	dir := &dirconfig.DirectoryEntry{
		Alias:           "a1",
		Path:            root,
		UnknownFileTime: time.Hour,
	}
	summary, err := Sweep(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, summary.JunkFiles)
	require.Equal(t, 0, summary.UnknownFiles)
	require.Equal(t, 0, summary.DeletedFiles)

	_, statErr := os.Stat(filepath.Join(root, ".partial"))
	require.NoError(t, statErr)
}

func TestSweepDotLeadingFileDeletedWhenOldLockedFlagSetAndPastThreshold(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ".partial"), 2*time.Hour)

	dir := &dirconfig.DirectoryEntry{
		Alias:           "a1",
		Path:            root,
		UnknownFileTime: time.Hour,
		LockedFileTime:  time.Hour,
		DeleteFlags:     dirconfig.DeleteOldLocked,
	}
	summary, err := Sweep(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DeletedFiles)
	require.Equal(t, 1, summary.JunkFiles)
}

func TestSweepZeroUnknownFileTimeUsesOneHourFallbackForDotFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ".recent"), 30*time.Minute)

	dir := &dirconfig.DirectoryEntry{
		Alias:           "a1",
		Path:            root,
		UnknownFileTime: 0,
	}
	summary, err := Sweep(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, summary.JunkFiles)
}

type stubHosts struct{ known map[string]bool }

func (s stubHosts) Resolves(host string) bool { return s.known[host] }

func TestSweepRecursesIntoQueueDirForKnownHost(t *testing.T) {
	root := t.TempDir()
	queueDir := filepath.Join(root, ".host1")
	require.NoError(t, os.MkdirAll(queueDir, 0o755))
	touch(t, filepath.Join(queueDir, "queued.dat"), 2*time.Hour)

	dir := &dirconfig.DirectoryEntry{
		Alias:          "a1",
		Path:           root,
		QueuedFileTime: time.Hour,
		DeleteFlags:    dirconfig.DeleteQueued,
	}
	summary, err := Sweep(dir, time.Now(), stubHosts{known: map[string]bool{"host1": true}})
	require.NoError(t, err)
	require.Equal(t, 1, summary.DeletedFiles)
}

func TestSummaryStringIncludesAlias(t *testing.T) {
	s := Summary{Alias: "a1", DeletedFiles: 2, DeletedBytes: 2048}
	require.Contains(t, s.String(), "a1")
}
