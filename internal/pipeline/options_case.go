package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/afd-project/afd/internal/pool"
	"github.com/pkg/errors"
)

// BasenameStep implements "basename": truncate the name at the
// first '.'. Collisions resolve against the on-disk directory with ";N".
type BasenameStep struct{}

func (BasenameStep) Name() string { return "basename" }

func (BasenameStep) Apply(p *pool.Pool) error {
	return renameEach(p, func(name string) string {
		if i := strings.IndexByte(name, '.'); i >= 0 {
			return name[:i]
		}
		return name
	})
}

// ExtensionStep implements "extension": truncate at the last '.'.
type ExtensionStep struct{}

func (ExtensionStep) Name() string { return "extension" }

func (ExtensionStep) Apply(p *pool.Pool) error {
	return renameEach(p, func(name string) string {
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			return name[:i]
		}
		return name
	})
}

// PrefixAddStep implements "prefix add <s>".
type PrefixAddStep struct{ Prefix string }

func (PrefixAddStep) Name() string { return "prefix add" }

func (s PrefixAddStep) Apply(p *pool.Pool) error {
	return renameEach(p, func(name string) string { return s.Prefix + name })
}

// PrefixDelStep implements "prefix del <s>" — a no-op unless the
// prefix is present.
type PrefixDelStep struct{ Prefix string }

func (PrefixDelStep) Name() string { return "prefix del" }

func (s PrefixDelStep) Apply(p *pool.Pool) error {
	return renameEach(p, func(name string) string {
		return strings.TrimPrefix(name, s.Prefix)
	})
}

// ToUpperStep / ToLowerStep implement "toupper"/"tolower":
// codepoint-wise case transform over the ASCII range only.
type ToUpperStep struct{}

func (ToUpperStep) Name() string { return "toupper" }
func (ToUpperStep) Apply(p *pool.Pool) error {
	return renameEach(p, func(name string) string { return asciiCase(name, true) })
}

type ToLowerStep struct{}

func (ToLowerStep) Name() string { return "tolower" }
func (ToLowerStep) Apply(p *pool.Pool) error {
	return renameEach(p, func(name string) string { return asciiCase(name, false) })
}

func asciiCase(s string, upper bool) string {
	b := []byte(s)
	for i, c := range b {
		if upper && c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		} else if !upper && c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// renameEach applies transform to every pool entry, resolving on-disk
// collisions with ";N", and restores the pool afterward since names
// changed.
func renameEach(p *pool.Pool, transform func(string) string) error {
	changed := false
	for _, e := range append([]pool.Entry(nil), p.Entries...) {
		target := transform(e.Name)
		if target == e.Name {
			continue
		}
		target = pool.UniqueNameOnDisk(p.Dir, target)
		oldPath := filepath.Join(p.Dir, e.Name)
		newPath := filepath.Join(p.Dir, target)
		if err := os.Rename(oldPath, newPath); err != nil {
			return errors.Wrapf(err, "rename %q -> %q", e.Name, target)
		}
		changed = true
	}
	if changed {
		return p.Restore()
	}
	return nil
}
