package schedule

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/jobqueue"
)

// TickItem pairs an InstantJob with the per-directory knobs the tick
// handler needs but that do not live on the job itself, such as
// max_copied_files.
type TickItem struct {
	Job            *jobqueue.InstantJob
	MaxCopiedFiles int
	NeedsTransform bool // whether local options require CreateName over GetDirNumber
}

// Scheduler runs the calendar-driven time-job tick handler over a set
// of time-jobs.
type Scheduler struct {
	Queue          *jobqueue.Queue
	OutgoingDir    string
	FairnessCap    int // default 800
	DiskFullRescan time.Duration

	Dispatcher     Dispatcher // inline path
	ParallelLaunch Dispatcher // GO_PARALLEL path
	HostStatus     HostStatus
	Tracker        ProcessTracker

	dirNoSeq   int
	splitSeq   int
	isDiskFull func(error) bool
}

// Tick processes every item whose Job.NextStartTime <= now, honoring the
// fairness cap, and recomputes next_start_time for handled jobs.
func (s *Scheduler) Tick(items []TickItem, now time.Time) error {
	filesHandled := 0
	cap := s.FairnessCap
	if cap <= 0 {
		cap = 800
	}

	for _, item := range items {
		if item.Job.NextStartTime > now.Unix() {
			continue
		}
		n, err := s.handleTimeDir(item, now)
		if err != nil {
			return errors.Wrapf(err, "handling time-job %d", item.Job.JobID)
		}
		filesHandled += n
		if next, ok := RecomputeNextStart(item.Job, now); ok {
			item.Job.NextStartTime = next.Unix()
		}
		if filesHandled > cap {
			afdlog.Warnf("schedule", "fairness cap %d exceeded (%d files), deferring remaining jobs to next tick", cap, filesHandled)
			break
		}
	}
	return nil
}

func (s *Scheduler) handleTimeDir(item TickItem, now time.Time) (int, error) {
	names, err := s.Queue.ListSorted(item.Job.JobID)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, nil
	}

	limit := item.MaxCopiedFiles
	if limit <= 0 || limit > len(names) {
		limit = len(names)
	}
	batch := names[:limit]

	s.dirNoSeq++
	s.splitSeq++
	targetDir, unique, err := s.allocateTargetDir(item, now)
	if err != nil {
		return 0, err
	}

	var totalSize int64
	for _, name := range batch {
		if err := s.Queue.Move(item.Job.JobID, name, targetDir); err != nil {
			return 0, err
		}
		if fi, statErr := os.Stat(filepath.Join(targetDir, name)); statErr == nil {
			totalSize += fi.Size()
		}
	}

	msg := DispatchMessage{
		OutgoingDir: targetDir,
		UniqueName:  unique,
		SplitJobNo:  s.splitSeq,
		Creation:    now,
		Job:         item.Job,
		FileCount:   len(batch),
		TotalSize:   totalSize,
	}

	if err := s.dispatch(item.Job, msg); err != nil {
		return len(batch), err
	}
	return len(batch), nil
}

// dispatch chooses between the parallel-fork path and the inline path.
func (s *Scheduler) dispatch(job *jobqueue.InstantJob, msg DispatchMessage) error {
	if job.LFS.Has(jobqueue.GoParallel) && s.qualifiesForParallel(job) {
		if err := s.ParallelLaunch.Dispatch(msg); err != nil {
			return err
		}
		s.Tracker.Increment(job.FRAPos)
		return nil
	}
	return s.Dispatcher.Dispatch(msg)
}

func (s *Scheduler) qualifiesForParallel(job *jobqueue.InstantJob) bool {
	if s.Tracker == nil || s.HostStatus == nil || s.ParallelLaunch == nil {
		return false
	}
	if s.Tracker.GlobalCount() >= s.Tracker.GlobalCap() {
		return false
	}
	if s.Tracker.FRACount(job.FRAPos) >= s.Tracker.FRACap(job.FRAPos) {
		return false
	}
	if s.HostStatus.Status(job.FSAPos) > 2 {
		return false
	}
	if s.HostStatus.Disabled(job.FSAPos) {
		return false
	}
	return true
}

// allocateTargetDir allocates the batch's target directory, with a
// disk-full retry loop: sleep DiskFullRescan and retry on ENOSPC; any
// other create error is fatal for this job invocation.
func (s *Scheduler) allocateTargetDir(item TickItem, now time.Time) (dir, unique string, err error) {
	isDiskFull := s.isDiskFull
	if isDiskFull == nil {
		isDiskFull = defaultIsDiskFull
	}
	for {
		dir, unique = CreateTargetDir(s.OutgoingDir, item.Job, now, s.dirNoSeq, s.splitSeq, item.NeedsTransform)
		mkErr := os.MkdirAll(dir, 0o755)
		if mkErr == nil {
			return dir, unique, nil
		}
		if isDiskFull(mkErr) {
			afdlog.Warnf("schedule", "disk full allocating %q, retrying in %s", dir, s.DiskFullRescan)
			time.Sleep(s.DiskFullRescan)
			continue
		}
		return "", "", errors.Wrapf(mkErr, "allocating target dir for job %d", item.Job.JobID)
	}
}

func defaultIsDiskFull(err error) bool {
	return isENOSPC(err)
}
