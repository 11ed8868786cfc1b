package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/afd-project/afd/internal/pool"
	"github.com/pkg/errors"
)

// RenameRule is one (pattern, replacement) pair of a named rename rule
// group, as looked up from $AFD_WORK_DIR/etc/rename.rule.
// Pattern may contain a single '*' wildcard; Replacement may reference
// the wildcard's capture with "%0".
type RenameRule struct {
	Pattern     string
	Replacement string
}

// RenameStep implements "rename <rule> [overwrite]".
type RenameStep struct {
	Rules     []RenameRule
	Overwrite bool
}

func (s *RenameStep) Name() string { return "rename" }

func (s *RenameStep) Apply(p *pool.Pool) error {
	changed := false
	for _, e := range append([]pool.Entry(nil), p.Entries...) {
		target, matched := applyRenameRules(s.Rules, e.Name)
		if !matched || target == e.Name {
			continue
		}
		if !s.Overwrite {
			target = p.UniqueName(target)
		}
		oldPath := filepath.Join(p.Dir, e.Name)
		newPath := filepath.Join(p.Dir, target)
		if err := renameWithFallback(oldPath, newPath); err != nil {
			return errors.Wrapf(err, "rename %q -> %q", e.Name, target)
		}
		changed = true
	}
	if changed {
		// A rename may have collided with (and overwritten, under
		// `overwrite`) a sibling pool entry, so a full rescan is always
		// required after this option whenever a sibling pool entry
		// collides.
		return p.Restore()
	}
	return nil
}

func applyRenameRules(rules []RenameRule, name string) (string, bool) {
	for _, r := range rules {
		if target, ok := matchRenameRule(r, name); ok {
			return target, true
		}
	}
	return name, false
}

// matchRenameRule compiles Pattern's single '*' wildcard into a capturing
// regex and substitutes the capture into Replacement at "%0" occurrences
// (the corpus's `pmatch`+`change_name` pairing, reimplemented idiomatically
// since change_name itself wasn't in the retrieved original source).
func matchRenameRule(r RenameRule, name string) (string, bool) {
	re, err := globToCaptureRegex(r.Pattern)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	out := r.Replacement
	for i := 1; i < len(m); i++ {
		out = strings.ReplaceAll(out, "%"+strconv.Itoa(i-1), m[i])
	}
	return out, true
}

func globToCaptureRegex(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString("(.*)")
		case '?':
			b.WriteString("(.)")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

// renameWithFallback handles the link/rename-collision error class:
// attempt an unlink-then-relink exactly once before giving up.
func renameWithFallback(oldPath, newPath string) error {
	err := os.Rename(oldPath, newPath)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		if rmErr := os.Remove(newPath); rmErr == nil {
			return os.Rename(oldPath, newPath)
		}
	}
	return err
}
