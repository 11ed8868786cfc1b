// Package pool implements the FileNamePool working set for one job
// batch, and its recount/restore rebuild strategies.
package pool

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/pkg/errors"
)

// Entry is one file currently tracked by the pool.
type Entry struct {
	Name  string // base name, relative to Dir
	Size  int64
	MTime int64 // unix seconds
}

// Pool is the transient working set of file names for one pipeline run.
// It is owned exclusively by the worker executing the pipeline for one
// job batch (no locking here by design).
type Pool struct {
	Dir     string
	Entries []Entry
}

// New creates an empty pool rooted at dir. The directory itself is not
// required to exist yet (a pipeline step such as rename may create it).
func New(dir string) *Pool {
	return &Pool{Dir: dir}
}

// FilesToSend is the pool's current file count.
func (p *Pool) FilesToSend() int { return len(p.Entries) }

// FileSize is the pool's current byte-sum.
func (p *Pool) FileSize() int64 {
	var total int64
	for _, e := range p.Entries {
		total += e.Size
	}
	return total
}

// Add appends an entry (used by the directory scanner when first
// populating the pool from a directory enumeration).
func (p *Pool) Add(name string, size int64, mtime int64) {
	p.Entries = append(p.Entries, Entry{Name: name, Size: size, MTime: mtime})
}

// Names returns the current pool's file names, for production-log
// diffing or collision checks.
func (p *Pool) Names() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Entries))
	for _, e := range p.Entries {
		set[e.Name] = struct{}{}
	}
	return set
}

// Has reports whether name is currently a pool entry.
func (p *Pool) Has(name string) bool {
	for _, e := range p.Entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Recount re-stats every pool entry to refresh its size, without
// re-enumerating Dir (files in Dir that are not pool entries are not
// picked up) — used when a pipeline step did not rename or add/remove
// files. Entries whose file no longer exists are dropped.
func (p *Pool) Recount() error {
	var total int64
	for i := range p.Entries {
		full := filepath.Join(p.Dir, p.Entries[i].Name)
		fi, err := os.Stat(full)
		if err != nil {
			if os.IsNotExist(err) {
				// Entry vanished underneath us (e.g. deleted by an
				// exec option); drop it rather than fail the recount.
				continue
			}
			return errors.Wrapf(err, "recount: stat %q", full)
		}
		p.Entries[i].Size = fi.Size()
		total += fi.Size()
	}
	p.compact()
	return nil
}

// compact removes entries whose backing file no longer exists.
func (p *Pool) compact() {
	kept := p.Entries[:0]
	for _, e := range p.Entries {
		if _, err := os.Stat(filepath.Join(p.Dir, e.Name)); err == nil {
			kept = append(kept, e)
		}
	}
	p.Entries = kept
}

// Restore rebuilds the name buffer by enumerating Dir and sums sizes —
// used when names may have changed since the last pipeline step. Any
// subdirectory encountered is removed recursively (the
// pipeline does not support nested directories in a job pool) and a
// warning is logged.
func (p *Pool) Restore() error {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return errors.Wrapf(err, "restore: read dir %q", p.Dir)
	}
	var rebuilt []Entry
	for _, de := range entries {
		full := filepath.Join(p.Dir, de.Name())
		if de.IsDir() {
			afdlog.Warnf(p.Dir, "removing unexpected subdirectory %q from job pool", de.Name())
			if err := os.RemoveAll(full); err != nil {
				afdlog.Errorf(p.Dir, "failed to remove subdirectory %q: %v", de.Name(), err)
			}
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		rebuilt = append(rebuilt, Entry{Name: de.Name(), Size: fi.Size(), MTime: fi.ModTime().Unix()})
	}
	sort.Slice(rebuilt, func(i, j int) bool { return rebuilt[i].Name < rebuilt[j].Name })
	p.Entries = rebuilt
	return nil
}

// UniqueName resolves a collision by suffixing "-N" for increasing N
// until the name is unique within the pool. It does not itself rename
// anything; callers use the returned name as the rename target.
func (p *Pool) UniqueName(target string) string {
	if !p.Has(target) {
		return target
	}
	for n := 1; ; n++ {
		candidate := target + "-" + strconv.Itoa(n)
		if !p.Has(candidate) {
			return candidate
		}
	}
}

// UniqueNameOnDisk is UniqueName's sibling for on-disk collision
// resolution (basename/extension use ";1", ";2", … against the directory
// rather than the pool).
func UniqueNameOnDisk(dir, target string) string {
	full := filepath.Join(dir, target)
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return target
	}
	for n := 1; ; n++ {
		candidate := target + ";" + strconv.Itoa(n)
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}
