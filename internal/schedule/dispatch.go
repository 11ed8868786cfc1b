// Package schedule implements the calendar-driven time-job tick
// handler.
package schedule

import (
	"time"

	"github.com/afd-project/afd/internal/dirconfig"
	"github.com/afd-project/afd/internal/jobqueue"
)

// DispatchMessage is the "send_message" invocation recorded for the
// delivery engine.
type DispatchMessage struct {
	OutgoingDir string
	UniqueName  string
	SplitJobNo  int
	UniqueNo    uint32
	Creation    time.Time
	Job         *jobqueue.InstantJob
	FileCount   int
	TotalSize   int64
}

// Dispatcher emits one DispatchMessage, either inline or from a forked
// child — the fork/track decision is made by the caller (Tick), not by
// the Dispatcher itself.
type Dispatcher interface {
	Dispatch(msg DispatchMessage) error
}

// InlineDispatcherFunc adapts a plain function to Dispatcher, e.g. for
// the inline path used when the job does not qualify for GO_PARALLEL
// handling.
type InlineDispatcherFunc func(msg DispatchMessage) error

func (f InlineDispatcherFunc) Dispatch(msg DispatchMessage) error { return f(msg) }

// HostStatus reports a destination host's current dispatcher-visible
// status: eligible only when host status is <= 2 and the host is not
// disabled.
type HostStatus interface {
	Status(fsaPos int) int
	Disabled(fsaPos int) bool
}

// ProcessTracker enforces the global and per-FRA process caps that gate
// GO_PARALLEL forking.
type ProcessTracker interface {
	GlobalCount() int
	GlobalCap() int
	FRACount(fraPos int) int
	FRACap(fraPos int) int
	Increment(fraPos int)
}

// RecomputeNextStart returns the next instant after now matched by the
// job's calendar entries, used to recompute next_start_time after a job
// is handled; false when the job has no calendar entries.
func RecomputeNextStart(job *jobqueue.InstantJob, now time.Time) (time.Time, bool) {
	return dirconfig.NextAfter(job.TimeEntry, now)
}
