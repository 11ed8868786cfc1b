package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/afd-project/afd/internal/counter"
	"github.com/afd-project/afd/internal/pool"
	"github.com/pkg/errors"
)

// Assembler merges a set of source files into one, in the on-disk
// encoding for one of {VAX, LBF, HBF, DWD, ASCII, MSS, WMO}. Like
// Splitter, the per-format encoding is an opaque, out-of-scope concern
// delegated to an external process.
type Assembler interface {
	Assemble(paths []string, out string) error
}

// ExecAssembler shells out to an external "afd-assemble-<type>" binary,
// passing the output path followed by every source path.
type ExecAssembler struct {
	Binary string
}

func (a ExecAssembler) Assemble(paths []string, out string) error {
	args := append([]string{out}, paths...)
	cmd := exec.Command(a.Binary, args...)
	o, err := cmd.CombinedOutput()
	logCommandOutput(filepath.Dir(out), o)
	if err != nil {
		return errors.Wrapf(err, "assembler %s", a.Binary)
	}
	return nil
}

// AssembleStep implements the "assemble <type> <name-rule>" pipeline option.
type AssembleStep struct {
	Type      string
	NameRule  string
	Assembler Assembler
	Counter   *counter.Counter
}

func (s AssembleStep) Name() string { return "assemble " + s.Type }

func (s AssembleStep) Apply(p *pool.Pool) error {
	if len(p.Entries) == 0 {
		return nil
	}
	assembler := s.Assembler
	if assembler == nil {
		assembler = ExecAssembler{Binary: "afd-assemble-" + s.Type}
	}

	paths := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		paths[i] = filepath.Join(p.Dir, e.Name)
	}

	name, err := RenderNameRule(s.NameRule, s.Counter, p.Dir, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "assemble name-rule")
	}
	name = pool.UniqueNameOnDisk(p.Dir, name)
	outPath := filepath.Join(p.Dir, name)

	if err := assembler.Assemble(paths, outPath); err != nil {
		return errors.Wrapf(err, "assemble %q", name)
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing assembled source %q", path)
		}
	}
	return p.Restore()
}

// RenderNameRule expands a name-rule template: literal text, "%n" (a
// 4-digit counter value) and "%t<c>" time placeholders against now,
// where c is one of {a,A,b,B,d,j,y,Y,m,H,M,S,U}.
func RenderNameRule(rule string, ctr *counter.Counter, key string, now time.Time) (string, error) {
	var b strings.Builder
	r := []rune(rule)
	for i := 0; i < len(r); i++ {
		if r[i] == '%' && i+1 < len(r) {
			switch r[i+1] {
			case 'n':
				if ctr == nil {
					return "", errors.New("name-rule uses %n but no counter configured")
				}
				n, err := ctr.Next(key)
				if err != nil {
					return "", err
				}
				fmt.Fprintf(&b, "%04d", n)
				i++
				continue
			case 't':
				if i+2 < len(r) {
					b.WriteString(formatTimeChar(r[i+2], now))
					i += 2
					continue
				}
			}
		}
		b.WriteRune(r[i])
	}
	return b.String(), nil
}

func formatTimeChar(c rune, t time.Time) string {
	switch c {
	case 'a':
		return t.Format("Mon")
	case 'A':
		return t.Format("Monday")
	case 'b':
		return t.Format("Jan")
	case 'B':
		return t.Format("January")
	case 'd':
		return fmt.Sprintf("%02d", t.Day())
	case 'j':
		return fmt.Sprintf("%03d", t.YearDay())
	case 'y':
		return t.Format("06")
	case 'Y':
		return t.Format("2006")
	case 'm':
		return fmt.Sprintf("%02d", int(t.Month()))
	case 'H':
		return fmt.Sprintf("%02d", t.Hour())
	case 'M':
		return fmt.Sprintf("%02d", t.Minute())
	case 'S':
		return fmt.Sprintf("%02d", t.Second())
	case 'U':
		return strconv.Itoa((t.YearDay() + 6 - int(t.Weekday())) / 7)
	default:
		return ""
	}
}
