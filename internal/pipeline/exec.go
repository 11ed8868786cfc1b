package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/deletelog"
	"github.com/afd-project/afd/internal/pool"
	"github.com/pkg/errors"
)

// ExecLockOffset is the deterministic per-directory lock offset used by
// the exec option's -l/-L sub-flags. It is exported as a shared
// constant so a future delivery-engine integration can use the same
// offset table.
//
// lockOffset = fraPos*fraRecordSize + LockExecFieldOffset
const (
	fraRecordSize       = 256 // bytes reserved per directory-status record
	lockExecFieldOffset = 64  // offset of the "files_queued"-adjacent exec lock field
)

func ExecLockOffset(fraPos int) int64 {
	return int64(fraPos)*int64(fraRecordSize) + int64(lockExecFieldOffset)
}

// ExecStep implements the "exec <cmd>" pipeline option, including its
// -d/-D/-t/-l/-L sub-flags and %s substitution (up to 10 placeholders).
type ExecStep struct {
	Command        string // template containing %s placeholders
	Delete         bool   // -d: delete original after run
	DeleteAllOnErr bool   // -D: on non-zero exit, delete all files in the pool
	Timeout        time.Duration
	LockPerFile    bool // -l
	LockWholeOp    bool // -L
	FRAPos         int
	Locker         Locker // injected so tests don't need a real FRA region

	JobID     uint32
	HostName  string            // "-" when no host is associated with this pool
	DeleteLog *deletelog.Writer // records every file removed by -D; nil disables logging
}

// Locker abstracts the write-lock taken at ExecLockOffset(FRAPos) for the
// duration of an exec invocation (-l) or the whole option (-L).
type Locker interface {
	Lock(offset int64) (unlock func(), err error)
}

func (s *ExecStep) Name() string { return "exec" }

func (s *ExecStep) Apply(p *pool.Pool) error {
	var unlockWhole func()
	if s.LockWholeOp && s.Locker != nil {
		u, err := s.Locker.Lock(ExecLockOffset(s.FRAPos))
		if err != nil {
			return errors.Wrap(err, "exec -L: acquiring whole-option lock")
		}
		unlockWhole = u
		defer unlockWhole()
	}

	names := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		names[i] = e.Name
	}

	anyFailed := false
	failedRC := 0
	for _, name := range names {
		rc, err := s.runOne(p.Dir, name)
		if err != nil {
			afdlog.Errorf(p.Dir, "exec for %q: %v", name, err)
		}
		if rc != 0 {
			anyFailed = true
			failedRC = rc
			afdlog.Errorf(p.Dir, "exec command exited %d for %q", rc, name)
			if s.DeleteAllOnErr {
				break
			}
		}
		if s.Delete {
			_ = os.Remove(filepath.Join(p.Dir, name))
		}
	}

	if anyFailed && s.DeleteAllOnErr {
		deletedNames := make([]string, 0, len(p.Entries))
		deletedSizes := make([]int64, 0, len(p.Entries))
		for _, e := range p.Entries {
			if err := os.Remove(filepath.Join(p.Dir, e.Name)); err == nil {
				deletedNames = append(deletedNames, e.Name)
				deletedSizes = append(deletedSizes, e.Size)
			}
		}
		if s.DeleteLog != nil {
			host := s.HostName
			if host == "" {
				host = "-"
			}
			cause := fmt.Sprintf("exec (%d)", failedRC)
			s.DeleteLog.WriteAll(deletedNames, deletedSizes, host, s.JobID, deletelog.ReasonExecFailedDelete, cause, time.Now())
		}
		afdlog.Warnf(p.Dir, "exec -D: pool cleared after command failure")
	}

	return p.Restore()
}

func (s *ExecStep) runOne(dir, name string) (int, error) {
	var unlock func()
	if s.LockPerFile && s.Locker != nil {
		u, err := s.Locker.Lock(ExecLockOffset(s.FRAPos))
		if err != nil {
			return -1, errors.Wrap(err, "exec -l: acquiring per-file lock")
		}
		unlock = u
	}
	if unlock != nil {
		defer unlock()
	}

	values := make([]string, 10)
	for i := range values {
		values[i] = name
	}
	cmdline := SubstitutePlaceholders(s.Command, values)

	ctx := context.Background()
	var cancel context.CancelFunc
	if s.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cmdline)
	cmd.Dir = dir
	out, runErr := cmd.CombinedOutput()
	logCommandOutput(dir, out)

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, runErr
	}
	return 0, nil
}

func logCommandOutput(dir string, out []byte) {
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		afdlog.Infof(dir, "exec: %s", sc.Text())
	}
}

// SubstitutePlaceholders replaces up to 10 "%s" occurrences with values
// in order, quoting any value containing shell-significant characters
// (';' or space).
func SubstitutePlaceholders(template string, values []string) string {
	out := template
	for i := 0; i < len(values) && i < 10; i++ {
		v := values[i]
		if strings.ContainsAny(v, "; ") {
			v = "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
		}
		out = strings.Replace(out, "%s", v, 1)
	}
	return out
}
