package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/afd-project/afd/internal/pool"
	"github.com/stretchr/testify/require"
)

type renameToStep struct{ from, to string }

func (s renameToStep) Name() string { return "test-rename" }
func (s renameToStep) Apply(p *pool.Pool) error {
	if err := os.Rename(filepath.Join(p.Dir, s.from), filepath.Join(p.Dir, s.to)); err != nil {
		return err
	}
	return p.Restore()
}

func TestRunDiffsCreatedPreservedRemoved(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	lines, err := Run(p, []Step{renameToStep{from: "a.txt", to: "a-renamed.txt"}})
	require.NoError(t, err)

	byOp := map[string]int{}
	for _, l := range lines {
		byOp[l.Op]++
	}
	require.Equal(t, 1, byOp[opCreated])
	require.Equal(t, 1, byOp[opPreserved])
	require.Equal(t, 1, byOp[opRemoved])
}

func TestRunStopsOnStepError(t *testing.T) {
	dir := t.TempDir()
	p := pool.New(dir)
	_, err := Run(p, []Step{sentinelFailingStep{}})
	require.Error(t, err)
}

type sentinelFailingStep struct{}

func (sentinelFailingStep) Name() string { return "sentinel" }
func (sentinelFailingStep) Apply(p *pool.Pool) error {
	return os.ErrInvalid
}
