// Package control implements the command/ACK FIFO protocol and the
// active-file lifecycle gate used to start, stop and query the daemon.
package control

import (
	"os"
	"syscall"
	"time"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/pkg/errors"
)

// Action is a single-byte command code sent down the command FIFO,
// named after init_afd.c's start_up constants.
type Action byte

const (
	ActionStart           Action = 1
	ActionCheckOnly       Action = 2
	ActionCheck           Action = 3
	ActionCtrlOnly        Action = 4
	ActionShutdown        Action = 5
	ActionSilentShutdown  Action = 6
	ActionStartBoth       Action = 7
	ActionMakeBlockFile   Action = 8
	ActionRemoveBlockFile Action = 9
	ActionHeartbeatCheck  Action = 10
	ActionHeartbeat       Action = 11
	ActionInitialize      Action = 12
	ActionFullInitialize  Action = 13
	ActionSetShutdownBit  Action = 14
)

// ACKN is the final byte a response FIFO read must end in for the
// reply to be considered valid (com.c: "buffer[length-1] != ACKN").
const ACKN byte = 6

// DefaultJobTimeout mirrors JOB_TIMEOUT: how long com() waits on the
// response FIFO before giving up without exiting the caller.
const DefaultJobTimeout = 10 * time.Second

const cmdFifoName = "dc_cmd.fifo"
const respFifoName = "dc_resp.fifo"

// FifoPair names the two FIFOs used for the command/ACK handshake,
// both kept under the daemon's fifodir.
type FifoPair struct {
	CmdPath  string
	RespPath string
}

// NewFifoPair resolves the standard FIFO names under fifoDir.
func NewFifoPair(fifoDir string) FifoPair {
	return FifoPair{
		CmdPath:  fifoDir + "/" + cmdFifoName,
		RespPath: fifoDir + "/" + respFifoName,
	}
}

// Ensure creates both FIFOs if they don't already exist.
func (p FifoPair) Ensure() error {
	for _, path := range []string{p.CmdPath, p.RespPath} {
		if err := syscall.Mkfifo(path, 0o600); err != nil && !os.IsExist(err) {
			return errors.Wrapf(err, "control: mkfifo %s", path)
		}
	}
	return nil
}

// Send implements com()'s writer side: open the command FIFO
// read/write, the response FIFO non-blocking, write the two-byte
// command, and wait up to timeout for an ACKN-terminated reply. A
// timeout logs and returns an error — it never exits the calling
// process (com.c's "So what do we do now" branch just returns
// INCORRECT).
func (p FifoPair) Send(action Action, peerName string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}

	writeFD, err := os.OpenFile(p.CmdPath, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrapf(err, "control: open command fifo %s", p.CmdPath)
	}
	defer writeFD.Close()

	readFD, err := os.OpenFile(p.RespPath, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return errors.Wrapf(err, "control: open response fifo %s", p.RespPath)
	}
	defer readFD.Close()

	if _, err := writeFD.Write([]byte{byte(action), 0}); err != nil {
		return errors.Wrapf(err, "control: write command to %s", p.CmdPath)
	}

	// The response fifo is opened non-blocking (com.c uses select() on
	// it instead); poll it until a reply arrives or timeout elapses.
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 10)
	for {
		n, err := readFD.Read(buf)
		if err == nil && n > 0 {
			if buf[n-1] != ACKN {
				afdlog.Warnf("control", "received garbage while reading from fifo for %s", peerName)
			}
			return nil
		}
		if time.Now().After(deadline) {
			afdlog.Warnf("control", "did not receive any reply from %s", peerName)
			return errors.Errorf("control: no reply from %s within %s", peerName, timeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Respond implements the peer side: write action, then ACKN.
func (p FifoPair) Respond() error {
	fd, err := os.OpenFile(p.RespPath, os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "control: open response fifo %s for write", p.RespPath)
	}
	defer fd.Close()
	_, err = fd.Write([]byte{byte(ActionCheck), ACKN})
	return err
}

// ReadCommand reads one action byte (plus trailing NUL) off the
// command FIFO, blocking until a writer sends one.
func ReadCommand(cmdPath string) (Action, error) {
	fd, err := os.OpenFile(cmdPath, os.O_RDONLY, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "control: open command fifo %s for read", cmdPath)
	}
	defer fd.Close()

	buf := make([]byte, 2)
	n, err := fd.Read(buf)
	if err != nil {
		return 0, errors.Wrap(err, "control: read command fifo")
	}
	if n == 0 {
		return 0, errors.New("control: empty command read")
	}
	return Action(buf[0]), nil
}
