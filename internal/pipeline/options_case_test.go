package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/afd-project/afd/internal/pool"
	"github.com/stretchr/testify/require"
)

func TestBasenameStepTruncatesAtFirstDot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tar.gz"), []byte("x"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	require.NoError(t, BasenameStep{}.Apply(p))
	require.True(t, p.Has("a"))
}

func TestExtensionStepTruncatesAtLastDot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tar.gz"), []byte("x"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	require.NoError(t, ExtensionStep{}.Apply(p))
	require.True(t, p.Has("a.tar"))
}

func TestPrefixAddAndDel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	require.NoError(t, PrefixAddStep{Prefix: "pre_"}.Apply(p))
	require.True(t, p.Has("pre_file.txt"))

	require.NoError(t, PrefixDelStep{Prefix: "pre_"}.Apply(p))
	require.True(t, p.Has("file.txt"))
}

func TestPrefixDelIsNoOpWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	require.NoError(t, PrefixDelStep{Prefix: "missing_"}.Apply(p))
	require.True(t, p.Has("file.txt"))
}

func TestToUpperAndToLowerAreASCIIOnly(t *testing.T) {
	require.Equal(t, "ABC", asciiCase("abc", true))
	require.Equal(t, "abc", asciiCase("ABC", false))
}

func TestCaseStepResolvesCollisionWithSemicolonSuffix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.txt"), []byte("y"), 0o644))

	p := pool.New(dir)
	require.NoError(t, p.Restore())

	require.NoError(t, ToUpperStep{}.Apply(p))
	require.True(t, p.Has("A.txt"))
	require.True(t, p.Has("A.txt;1"))
}
