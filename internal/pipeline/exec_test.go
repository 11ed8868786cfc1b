package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/afd-project/afd/internal/deletelog"
	"github.com/afd-project/afd/internal/pool"
)

func TestSubstitutePlaceholdersQuotesShellSignificantChars(t *testing.T) {
	out := SubstitutePlaceholders("touch %s", []string{"needs space.txt"})
	require.Equal(t, `touch 'needs space.txt'`, out)

	out = SubstitutePlaceholders("cat %s", []string{"plain.txt"})
	require.Equal(t, "cat plain.txt", out)
}

func TestSubstitutePlaceholdersCapsAtTen(t *testing.T) {
	template := ""
	for i := 0; i < 12; i++ {
		template += "%s "
	}
	values := make([]string, 12)
	for i := range values {
		values[i] = "v"
	}
	out := SubstitutePlaceholders(template, values)
	require.Contains(t, out, "%s") // the 11th and 12th stay unsubstituted
}

func TestExecLockOffsetIsDeterministicPerFRAPos(t *testing.T) {
	require.Equal(t, ExecLockOffset(0), ExecLockOffset(0))
	require.NotEqual(t, ExecLockOffset(0), ExecLockOffset(1))
	require.Equal(t, int64(1)*fraRecordSize+lockExecFieldOffset, ExecLockOffset(1))
}

func TestExecStepRunsCommandAndDeletesOnSuccess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	step := &ExecStep{Command: "echo %s", Delete: true}
	require.NoError(t, step.Apply(p))

	_, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestExecStepDeleteAllOnErrClearsPool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hi"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	logger, hook := logrustest.NewNullLogger()
	step := &ExecStep{
		Command:        "exit 1",
		DeleteAllOnErr: true,
		DeleteLog:      deletelog.NewWriter(logger),
	}
	require.NoError(t, step.Apply(p))
	require.Empty(t, p.Entries)

	entries, _ := os.ReadDir(dir)
	require.Empty(t, entries)

	require.Len(t, hook.AllEntries(), 2)
	for _, e := range hook.AllEntries() {
		require.Equal(t, logrus.WarnLevel, e.Level)
		require.Equal(t, deletelog.ReasonExecFailedDelete.String(), e.Data["reason"])
	}
}
