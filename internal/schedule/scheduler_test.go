package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/afd-project/afd/internal/dirconfig"
	"github.com/afd-project/afd/internal/jobqueue"
)

func mustCalendar(t *testing.T, raw string) dirconfig.CalendarEntry {
	t.Helper()
	ce, err := dirconfig.ParseCalendar(raw)
	require.NoError(t, err)
	return ce
}

func TestTickDispatchesInlineAndAdvancesNextStart(t *testing.T) {
	root := t.TempDir()
	q := jobqueue.New(root)
	src := t.TempDir()
	path := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	job := &jobqueue.InstantJob{JobID: 5, NextStartTime: 0, TimeEntry: []dirconfig.CalendarEntry{mustCalendar(t, "* * * * *")}}
	require.NoError(t, q.Enqueue(job.JobID, path, "a.txt"))

	var dispatched []DispatchMessage
	s := &Scheduler{
		Queue:       q,
		OutgoingDir: t.TempDir(),
		FairnessCap: 800,
		Dispatcher:  InlineDispatcherFunc(func(msg DispatchMessage) error { dispatched = append(dispatched, msg); return nil }),
	}

	now := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Tick([]TickItem{{Job: job, MaxCopiedFiles: 10}}, now))

	require.Len(t, dispatched, 1)
	require.Equal(t, 1, dispatched[0].FileCount)
	require.Equal(t, int64(5), dispatched[0].TotalSize)
	require.True(t, job.NextStartTime > now.Unix())
}

func TestTickSkipsJobsNotYetDue(t *testing.T) {
	q := jobqueue.New(t.TempDir())
	job := &jobqueue.InstantJob{JobID: 1, NextStartTime: time.Now().Add(time.Hour).Unix()}

	called := false
	s := &Scheduler{
		Queue:      q,
		Dispatcher: InlineDispatcherFunc(func(msg DispatchMessage) error { called = true; return nil }),
	}
	require.NoError(t, s.Tick([]TickItem{{Job: job}}, time.Now()))
	require.False(t, called)
}

func TestTickRespectsMaxCopiedFilesPerIteration(t *testing.T) {
	root := t.TempDir()
	q := jobqueue.New(root)
	src := t.TempDir()
	for _, n := range []string{"a", "b", "c"} {
		p := filepath.Join(src, n)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		require.NoError(t, q.Enqueue(9, p, n))
	}

	job := &jobqueue.InstantJob{JobID: 9}
	var dispatched []DispatchMessage
	s := &Scheduler{
		Queue:       q,
		OutgoingDir: t.TempDir(),
		Dispatcher:  InlineDispatcherFunc(func(msg DispatchMessage) error { dispatched = append(dispatched, msg); return nil }),
	}
	require.NoError(t, s.Tick([]TickItem{{Job: job, MaxCopiedFiles: 2}}, time.Now()))
	require.Equal(t, 2, dispatched[0].FileCount)

	remaining, err := q.List(9)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

type fakeTracker struct {
	globalCount, globalCap int
	fraCount, fraCap       int
}

func (f *fakeTracker) GlobalCount() int     { return f.globalCount }
func (f *fakeTracker) GlobalCap() int       { return f.globalCap }
func (f *fakeTracker) FRACount(int) int     { return f.fraCount }
func (f *fakeTracker) FRACap(int) int       { return f.fraCap }
func (f *fakeTracker) Increment(fraPos int) { f.fraCount++ }

type fakeHostStatus struct {
	status   int
	disabled bool
}

func (h fakeHostStatus) Status(int) int    { return h.status }
func (h fakeHostStatus) Disabled(int) bool { return h.disabled }

func TestTickUsesParallelLaunchWhenQualified(t *testing.T) {
	root := t.TempDir()
	q := jobqueue.New(root)
	src := t.TempDir()
	p := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	require.NoError(t, q.Enqueue(3, p, "a.txt"))

	job := &jobqueue.InstantJob{JobID: 3, LFS: jobqueue.GoParallel}
	tracker := &fakeTracker{globalCap: 10, fraCap: 10}

	parallelCalled := false
	s := &Scheduler{
		Queue:          q,
		OutgoingDir:    t.TempDir(),
		Dispatcher:     InlineDispatcherFunc(func(msg DispatchMessage) error { t.Fatal("should not use inline path"); return nil }),
		ParallelLaunch: InlineDispatcherFunc(func(msg DispatchMessage) error { parallelCalled = true; return nil }),
		Tracker:        tracker,
		HostStatus:     fakeHostStatus{status: 1},
	}
	require.NoError(t, s.Tick([]TickItem{{Job: job, MaxCopiedFiles: 10}}, time.Now()))
	require.True(t, parallelCalled)
	require.Equal(t, 1, tracker.fraCount)
}

func TestTickFallsBackToInlineWhenHostDisabled(t *testing.T) {
	root := t.TempDir()
	q := jobqueue.New(root)
	src := t.TempDir()
	p := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	require.NoError(t, q.Enqueue(4, p, "a.txt"))

	job := &jobqueue.InstantJob{JobID: 4, LFS: jobqueue.GoParallel}
	tracker := &fakeTracker{globalCap: 10, fraCap: 10}

	inlineCalled := false
	s := &Scheduler{
		Queue:          q,
		OutgoingDir:    t.TempDir(),
		Dispatcher:     InlineDispatcherFunc(func(msg DispatchMessage) error { inlineCalled = true; return nil }),
		ParallelLaunch: InlineDispatcherFunc(func(msg DispatchMessage) error { t.Fatal("should not use parallel path"); return nil }),
		Tracker:        tracker,
		HostStatus:     fakeHostStatus{disabled: true},
	}
	require.NoError(t, s.Tick([]TickItem{{Job: job, MaxCopiedFiles: 10}}, time.Now()))
	require.True(t, inlineCalled)
}

func TestCreateTargetDirUsesCreateNameWhenTransformNeeded(t *testing.T) {
	job := &jobqueue.InstantJob{JobID: 1}
	dir, unique := CreateTargetDir("/out", job, time.Now(), 0, 0, true)
	require.Equal(t, filepath.Join("/out", unique), dir)
}

func TestCreateTargetDirUsesDeterministicLayoutOtherwise(t *testing.T) {
	job := &jobqueue.InstantJob{JobID: 0x2a}
	creation := time.Unix(1000, 0)
	dir, unique := CreateTargetDir("/out", job, creation, 3, 7, false)
	require.Equal(t, filepath.Join("/out", "2a", "3"), dir)
	require.Contains(t, unique, "_7")
}
