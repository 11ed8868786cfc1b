// Package sweep implements the old-file aging/deletion sweep run at a
// coarse cadence over every watched directory.
package sweep

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/dirconfig"
)

// HostResolver reports whether a dot-prefixed queue subdirectory name
// resolves to a known transfer-status host.
type HostResolver interface {
	Resolves(host string) bool
}

// Summary is the per-directory report emitted after a sweep pass.
type Summary struct {
	Alias        string
	JunkFiles    int
	JunkBytes    int64
	UnknownFiles int
	UnknownBytes int64
	DeletedFiles int
	DeletedBytes int64
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"%s: junk=%d (%s) unknown=%d (%s) deleted=%d (%s)",
		s.Alias,
		s.JunkFiles, humanize.Bytes(uint64(s.JunkBytes)),
		s.UnknownFiles, humanize.Bytes(uint64(s.UnknownBytes)),
		s.DeletedFiles, humanize.Bytes(uint64(s.DeletedBytes)),
	)
}

// Sweep runs one aging pass for a DirectoryEntry at now and returns its
// summary. hosts is consulted for queued-subdirectory recursion; it may
// be nil if the directory has no QUEUED delete flag set.
func Sweep(dir *dirconfig.DirectoryEntry, now time.Time, hosts HostResolver) (Summary, error) {
	summary := Summary{Alias: dir.Alias}

	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		return summary, errors.Wrapf(err, "sweep: reading %q", dir.Path)
	}

	for _, e := range entries {
		name := e.Name()
		if name == "." || name == ".." {
			continue
		}
		full := filepath.Join(dir.Path, name)

		if e.IsDir() {
			if strings.HasPrefix(name, ".") && dir.DeleteFlags&dirconfig.DeleteQueued != 0 {
				host := strings.TrimPrefix(name, ".")
				if hosts == nil || hosts.Resolves(host) {
					sweepQueueDir(full, dir, now, &summary)
				}
			}
			continue
		}

		fi, err := e.Info()
		if err != nil {
			continue
		}
		sweepFile(full, name, fi, dir, now, &summary)
	}

	return summary, nil
}

func sweepFile(full, name string, fi os.FileInfo, dir *dirconfig.DirectoryEntry, now time.Time, summary *Summary) {
	age := now.Sub(fi.ModTime())
	dotLeading := strings.HasPrefix(name, ".")

	isOld := age > dir.UnknownFileTime
	if dotLeading && dir.UnknownFileTime == 0 {
		isOld = age > time.Hour
	}
	if !isOld {
		return
	}

	if dotLeading {
		// A dot-leading file is always eligible for aging regardless of
		// the directory's general delete policy. It only counts as junk
		// when the general unknown-files delete flag is off, since that
		// flag's own accounting would otherwise double-count it. Left in
		// place, it is only surfaced via ReportUnknown, as "unknown"
		// rather than "junk".
		if dir.DeleteFlags&dirconfig.DeleteOldLocked != 0 && age > dir.LockedFileTime {
			junk := dir.DeleteFlags&dirconfig.DeleteUnknown == 0
			removeFile(full, fi, summary, junk)
		} else if dir.Policy.ReportUnknown {
			summary.UnknownFiles++
			summary.UnknownBytes += fi.Size()
		}
		return
	}

	if dir.DeleteFlags&dirconfig.DeleteUnknown != 0 {
		removeFile(full, fi, summary, false)
		return
	}
	if dir.Policy.ReportUnknown {
		summary.UnknownFiles++
		summary.UnknownBytes += fi.Size()
	}
}

func sweepQueueDir(dirPath string, dir *dirconfig.DirectoryEntry, now time.Time, summary *Summary) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		afdlog.Warnf(dir.Alias, "sweep: reading queue dir %q: %v", dirPath, err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dirPath, e.Name())
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(fi.ModTime()) > dir.QueuedFileTime {
			removeFile(full, fi, summary, false)
		}
	}
}

func removeFile(full string, fi os.FileInfo, summary *Summary, junk bool) {
	if err := os.Remove(full); err != nil {
		return
	}
	summary.DeletedFiles++
	summary.DeletedBytes += fi.Size()
	if junk {
		summary.JunkFiles++
		summary.JunkBytes += fi.Size()
	}
}
