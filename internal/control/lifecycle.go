package control

import (
	"encoding/binary"
	"os"
	"syscall"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const activeFileName = "afd_active"

// activeFileSize holds one supervisor PID (int32) plus a one-byte
// shared-shutdown flag (afd.c: "(NO_OF_PROCESS+1)*sizeof(pid_t) +
// sizeof(unsigned int) + 1 + 1" in the original's richer layout; this
// port keeps the single supervisor PID the control channel actually
// needs plus the shutdown byte).
const activeFileSize = 4 + 1

const (
	shutdownClear byte = 0
	shutdownSet   byte = 1
)

// ActiveFile is the supervisor's persistent liveness record: its PID
// at a known offset and a one-byte shared shutdown flag at another,
// both mutated through an mmap so a separate shutdown tool can signal
// the running supervisor without IPC.
type ActiveFile struct {
	path string
	lock *flock.Flock
}

// NewActiveFile resolves the active-file path under fifoDir.
func NewActiveFile(fifoDir string) *ActiveFile {
	return &ActiveFile{path: fifoDir + "/" + activeFileName}
}

// Acquire takes the exclusive lock a running supervisor must hold and
// writes its own PID into the file, creating it if necessary. It
// refuses to start if the lock is already held by a running
// supervisor, the same exclusivity check the original start-up path
// performs before touching the active file.
func (a *ActiveFile) Acquire(pid int) error {
	lock := flock.New(a.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "control: acquire active-file lock")
	}
	if !locked {
		return errors.New("control: active file is already locked by a running supervisor")
	}
	a.lock = lock

	f, err := os.OpenFile(a.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return errors.Wrap(err, "control: open active file")
	}
	defer f.Close()

	if err := f.Truncate(activeFileSize); err != nil {
		_ = lock.Unlock()
		return errors.Wrap(err, "control: truncate active file")
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = lock.Unlock()
		return errors.Wrap(err, "control: mmap active file")
	}
	defer data.Unmap()

	binary.LittleEndian.PutUint32(data[0:4], uint32(pid))
	data[4] = shutdownClear
	return data.Flush()
}

// Release releases the supervisor's lock on the active file. It does
// not delete the file — the PID and shutdown byte are left as the
// last recorded state.
func (a *ActiveFile) Release() error {
	if a.lock == nil {
		return nil
	}
	return a.lock.Unlock()
}

// ReadPID returns the PID currently recorded in the active file,
// independent of lock ownership — a shutdown tool reads this to find
// the process to signal.
func (a *ActiveFile) ReadPID() (int, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return 0, errors.Wrap(err, "control: open active file for read")
	}
	defer f.Close()

	buf := make([]byte, 4)
	if _, err := f.Read(buf); err != nil {
		return 0, errors.Wrap(err, "control: read active file pid")
	}
	return int(binary.LittleEndian.Uint32(buf)), nil
}

// SetShutdownBit implements `-z`/the external shutdown tool's first
// step: mmap the active file and flip the shared shutdown byte so the
// running supervisor observes it on its next check.
func (a *ActiveFile) SetShutdownBit() error {
	f, err := os.OpenFile(a.path, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "control: open active file for shutdown bit")
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "control: mmap active file for shutdown bit")
	}
	defer data.Unmap()

	data[4] = shutdownSet
	return data.Flush()
}

// ShutdownRequested reports the shared shutdown byte's current state,
// for the supervisor's own tick loop to poll.
func (a *ActiveFile) ShutdownRequested() (bool, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return false, errors.Wrap(err, "control: open active file for shutdown poll")
	}
	defer f.Close()

	buf := make([]byte, activeFileSize)
	if _, err := f.Read(buf); err != nil {
		return false, errors.Wrap(err, "control: read active file")
	}
	return buf[4] == shutdownSet, nil
}

// EscalationStage names one step of the SIGINT->SIGKILL shutdown
// escalation the shutdown CLI flags drive.
type EscalationStage int

const (
	StageSIGINT EscalationStage = iota
	StageSIGKILL
	StageGaveUp
)

// SignalFunc matches os.Process.Signal's shape, so tests can stub it
// without sending real signals.
type SignalFunc func(pid int, sig os.Signal) error

// LivenessFunc reports whether pid is still alive.
type LivenessFunc func(pid int) bool

// Escalate implements the shutdown tool's polling escalation: SIGINT,
// wait up to sigintWait for the process to exit, SIGKILL, wait up to
// sigkillWait, then give up. Defaults to 120s/40s.
func Escalate(pid int, signal SignalFunc, alive LivenessFunc, sigintWait, sigkillWait time.Duration) (EscalationStage, error) {
	if sigintWait <= 0 {
		sigintWait = 120 * time.Second
	}
	if sigkillWait <= 0 {
		sigkillWait = 40 * time.Second
	}

	if err := signal(pid, syscall.SIGINT); err != nil {
		return StageGaveUp, errors.Wrap(err, "control: send SIGINT")
	}
	if waitForExit(pid, alive, sigintWait) {
		return StageSIGINT, nil
	}

	if err := signal(pid, syscall.SIGKILL); err != nil {
		return StageGaveUp, errors.Wrap(err, "control: send SIGKILL")
	}
	if waitForExit(pid, alive, sigkillWait) {
		return StageSIGKILL, nil
	}

	return StageGaveUp, errors.Errorf("control: pid %d did not exit after SIGINT+SIGKILL escalation", pid)
}

func waitForExit(pid int, alive LivenessFunc, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !alive(pid)
}
