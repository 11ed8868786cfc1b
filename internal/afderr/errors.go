// Package afderr collects the daemon's error taxonomy and re-exports
// github.com/pkg/errors' Wrap/Wrapf so callers don't need two imports.
package afderr

import "github.com/pkg/errors"

var (
	// New, Wrap and Wrapf are re-exported for convenience at call sites.
	New   = errors.New
	Wrap  = errors.Wrap
	Wrapf = errors.Wrapf
	Cause = errors.Cause
)

// Class categorizes an error by how the daemon should react to it. It
// exists so higher-level code (control channel, sweeper) can decide
// whether a failure is fatal to the worker or merely logged and skipped.
type Class int

const (
	// ClassConfig: unknown option, overlong numeric, bad rule name.
	ClassConfig Class = iota
	// ClassTransient: ENOENT/EEXIST/EPERM during filesystem operations.
	ClassTransient
	// ClassRuleMiss: a file simply did not match any rule (not an error).
	ClassRuleMiss
	// ClassCodec: exec/codec non-zero exit.
	ClassCodec
	// ClassCounter: counter-wrap anomaly.
	ClassCounter
	// ClassLock: locking conflict (sampler exclusivity, fifo absence).
	ClassLock
	// ClassDiskFull: ENOSPC during name allocation.
	ClassDiskFull
	// ClassFormat: stat file version/migration failure.
	ClassFormat
)

// Classified wraps an error with its taxonomy class.
type Classified struct {
	Class Class
	Err   error
}

func (c *Classified) Error() string { return c.Err.Error() }
func (c *Classified) Unwrap() error { return c.Err }

// Classify attaches a Class to err. A nil err returns nil.
func Classify(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &Classified{Class: class, Err: err}
}

// ClassOf extracts the Class of err, defaulting to ClassTransient when
// err was never classified: an unrecognized failure is treated as
// recoverable rather than aborting the owning worker.
func ClassOf(err error) Class {
	var c *Classified
	if errors.As(err, &c) {
		return c.Class
	}
	return ClassTransient
}

// Fatal reports whether a classified error should abort the owning
// worker outright rather than being logged and skipped. Only lock
// conflicts (sampler exclusivity) and format/migration failures are fatal
// to their worker; everything else is recoverable.
func Fatal(err error) bool {
	switch ClassOf(err) {
	case ClassLock, ClassFormat:
		return true
	default:
		return false
	}
}
