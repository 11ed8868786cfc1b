package schedule

import (
	"errors"
	"syscall"
)

// isENOSPC reports whether err ultimately wraps ENOSPC, the only signal
// the disk-full retry loop treats as non-fatal.
func isENOSPC(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ENOSPC
	}
	return false
}
