package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/afd-project/afd/internal/counter"
	"github.com/afd-project/afd/internal/pool"
	"github.com/stretchr/testify/require"
)

type stubAssembler struct {
	called bool
	paths  []string
}

func (a *stubAssembler) Assemble(paths []string, out string) error {
	a.called = true
	a.paths = paths
	return os.WriteFile(out, []byte("merged"), 0o644)
}

func TestAssembleStepMergesAndRemovesSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("2"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	asm := &stubAssembler{}
	step := AssembleStep{Type: "ASCII", NameRule: "merged.out", Assembler: asm}
	require.NoError(t, step.Apply(p))

	require.True(t, asm.called)
	require.Len(t, asm.paths, 2)
	require.True(t, p.Has("merged.out"))
	require.False(t, p.Has("a.txt"))
	require.False(t, p.Has("b.txt"))
}

func TestAssembleStepIsNoOpOnEmptyPool(t *testing.T) {
	dir := t.TempDir()
	p := pool.New(dir)
	asm := &stubAssembler{}
	step := AssembleStep{Type: "WMO", NameRule: "x", Assembler: asm}
	require.NoError(t, step.Apply(p))
	require.False(t, asm.called)
}

func TestRenderNameRuleExpandsCounterAndTimePlaceholders(t *testing.T) {
	dir := t.TempDir()
	c, err := counter.Open(dir)
	require.NoError(t, err)
	defer c.Close()

	now := time.Date(2026, time.March, 5, 9, 30, 0, 0, time.UTC)
	name, err := RenderNameRule("bulletin_%n_%tY%tm%td", c, "job1", now)
	require.NoError(t, err)
	require.Equal(t, "bulletin_0001_20260305", name)
}

func TestRenderNameRuleWithoutCounterErrorsOnPercentN(t *testing.T) {
	_, err := RenderNameRule("x_%n", nil, "job1", time.Now().UTC())
	require.Error(t, err)
}

func TestRenderNameRuleLiteralTextPassesThrough(t *testing.T) {
	name, err := RenderNameRule("plain-name", nil, "job1", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, "plain-name", name)
}
