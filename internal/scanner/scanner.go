// Package scanner implements periodic directory enumeration, ordered
// file-mask evaluation, admission filtering, and copy caps.
package scanner

import (
	"os"
	"path/filepath"
	"time"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/dirconfig"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Candidate is one file admitted into the pool for a given FileMaskGroup,
// bound to the destination positions its winning mask names.
type Candidate struct {
	Name    string
	Size    int64
	MTime   time.Time
	DestPos []int // FileMaskGroup.Destinations indices this file binds to
}

// Result is the outcome of one scan tick for one DirectoryEntry.
type Result struct {
	Candidates []Candidate
	// Deferred is true when wait_for_filename held back every file this
	// tick.
	Deferred bool
}

// Scan enumerates dir.Path once and applies the ordered mask evaluation
// and admission filters. now is injected for deterministic testing of
// ignore_file_time.
func Scan(dir *dirconfig.DirectoryEntry, now time.Time) (Result, error) {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		// Transient/structural I/O errors are logged and skipped for
		// this tick; the scanner itself does not abort.
		afdlog.Warnf(dir.Alias, "scan failed: %v", err)
		return Result{}, errors.Wrapf(err, "scanning %q", dir.Path)
	}

	if dir.WaitForFilename != "" && !waitSatisfied(entries, dir.WaitForFilename) {
		return Result{Deferred: true}, nil
	}

	var result Result
	var copiedFiles int
	var copiedSize int64

	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !dir.Policy.AcceptDotFiles && len(name) > 0 && name[0] == '.' {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}

		if !admit(dir, fi, now) {
			continue
		}

		group, destPos, matched := MatchGroups(dir.FileGroups, name)
		if !matched {
			continue
		}
		_ = group

		if dir.MaxCopiedFiles > 0 && copiedFiles >= dir.MaxCopiedFiles {
			break
		}
		if dir.MaxCopiedFileSize > 0 && copiedSize+fi.Size() > dir.MaxCopiedFileSize {
			continue
		}

		result.Candidates = append(result.Candidates, Candidate{
			Name:    name,
			Size:    fi.Size(),
			MTime:   fi.ModTime(),
			DestPos: destPos,
		})
		copiedFiles++
		copiedSize += fi.Size()
	}
	return result, nil
}

// waitSatisfied implements the wait_for_filename admission gate: admit
// nothing this tick unless at least one present file matches pattern.
func waitSatisfied(entries []os.DirEntry, pattern string) bool {
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(pattern, de.Name()); ok {
			return true
		}
	}
	return false
}

// admit applies the ignore_size / ignore_file_time admission filters.
// The open question about ignore_size's comparison direction is
// resolved per its authoritative formula — see DESIGN.md "Open
// Question decisions".
func admit(dir *dirconfig.DirectoryEntry, fi os.FileInfo, now time.Time) bool {
	if dir.IgnoreSizeSign != 0 {
		s := fi.Size()
		b := dir.IgnoreSize
		if dir.IgnoreSizeSign&dirconfig.SizeEqual != 0 && s == b {
			return false
		}
		if dir.IgnoreSizeSign&dirconfig.SizeLess != 0 && s < b {
			return false
		}
		if dir.IgnoreSizeSign&dirconfig.SizeGreater != 0 && s > b {
			return false
		}
	}
	if dir.IgnoreTimeSign != 0 {
		age := now.Sub(fi.ModTime())
		b := dir.IgnoreFileTime
		if dir.IgnoreTimeSign&dirconfig.TimeEqual != 0 && age == b {
			return false
		}
		if dir.IgnoreTimeSign&dirconfig.TimeLess != 0 && age < b {
			return false
		}
		if dir.IgnoreTimeSign&dirconfig.TimeGreater != 0 && age > b {
			return false
		}
	}
	return true
}

// JoinPath is a small helper kept next to Scan for callers building full
// paths to admitted candidates.
func JoinPath(dir *dirconfig.DirectoryEntry, c Candidate) string {
	return filepath.Join(dir.Path, c.Name)
}
