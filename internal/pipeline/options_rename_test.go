package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/afd-project/afd/internal/pool"
	"github.com/stretchr/testify/require"
)

func TestRenameStepAppliesFirstMatchingRule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report_001.dat"), []byte("x"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	step := &RenameStep{Rules: []RenameRule{
		{Pattern: "report_*.dat", Replacement: "out_%0.txt"},
	}, Overwrite: true}
	require.NoError(t, step.Apply(p))

	require.True(t, p.Has("out_001.txt"))
	require.False(t, p.Has("report_001.dat"))
}

func TestRenameStepWithoutOverwriteGetsUniqueName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dat"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.txt"), []byte("y"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	step := &RenameStep{Rules: []RenameRule{
		{Pattern: "a.dat", Replacement: "target.txt"},
	}, Overwrite: false}
	require.NoError(t, step.Apply(p))

	require.True(t, p.Has("target.txt"))
	require.True(t, p.Has("target.txt-1"))
}

func TestRenameStepNoMatchIsNoOp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dat"), []byte("x"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	step := &RenameStep{Rules: []RenameRule{
		{Pattern: "nomatch_*.dat", Replacement: "out_%0.txt"},
	}}
	require.NoError(t, step.Apply(p))
	require.True(t, p.Has("a.dat"))
}

func TestGlobToCaptureRegexSingleWildcard(t *testing.T) {
	re, err := globToCaptureRegex("file_*.txt")
	require.NoError(t, err)
	m := re.FindStringSubmatch("file_42.txt")
	require.Equal(t, []string{"file_42.txt", "42"}, m)
}
