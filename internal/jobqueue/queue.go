package jobqueue

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Queue is the on-disk TimeJobQueue: a set of subdirectories keyed by
// stringified job_id, each holding files waiting for their calendar
// window. A job's subdirectory is created the first time a batch
// arrives during an inactive calendar window.
type Queue struct {
	Root string
}

// New roots a Queue at dir (typically <workdir>/files/time_queue).
func New(dir string) *Queue {
	return &Queue{Root: dir}
}

// Dir returns the subdirectory holding jobID's queued files.
func (q *Queue) Dir(jobID uint32) string {
	return filepath.Join(q.Root, strconv.FormatUint(uint64(jobID), 10))
}

// Enqueue places one file into jobID's queue directory, creating it if
// necessary. The source file is moved, not copied.
func (q *Queue) Enqueue(jobID uint32, srcPath, name string) error {
	dir := q.Dir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating time-queue dir for job %d", jobID)
	}
	dest := filepath.Join(dir, name)
	if err := os.Rename(srcPath, dest); err != nil {
		return errors.Wrapf(err, "enqueueing %q for job %d", name, jobID)
	}
	return nil
}

// List returns the regular file names currently queued for jobID, in
// enumeration order (oldest directory entry first is not guaranteed by
// the filesystem, so callers that need FIFO order should rely on
// ListSorted instead).
func (q *Queue) List(jobID uint32) ([]string, error) {
	entries, err := os.ReadDir(q.Dir(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "listing time-queue dir for job %d", jobID)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListSorted is List with a stable lexicographic order, used by the
// scheduler so repeated ticks process a queue deterministically.
func (q *Queue) ListSorted(jobID uint32) ([]string, error) {
	names, err := q.List(jobID)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Move relocates one queued file from jobID's queue directory into
// destDir, keeping its name, and removes the queue subdirectory once it
// is empty.
func (q *Queue) Move(jobID uint32, name, destDir string) error {
	dir := q.Dir(jobID)
	src := filepath.Join(dir, name)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating dispatch dir %q", destDir)
	}
	if err := os.Rename(src, filepath.Join(destDir, name)); err != nil {
		return errors.Wrapf(err, "moving %q out of time-queue for job %d", name, jobID)
	}
	q.removeIfEmpty(dir)
	return nil
}

func (q *Queue) removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}
}
