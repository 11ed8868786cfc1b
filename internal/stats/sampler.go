package stats

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// HostCounterSource supplies this tick's raw monotonic host counters,
// re-attaching to the transfer subsystem's live FSA array at fsaPos.
type HostCounterSource interface {
	ReadHost(fsaPos int) (HostCounters, error)
}

// DirCounterSource is HostCounterSource's directory-input counterpart,
// keyed by FRA position.
type DirCounterSource interface {
	ReadDir(fraPos int) (DirCounters, error)
}

// Sampler drives one stat file's periodic tick: read raw counters,
// normalize wraps, accumulate rings, and archive on year rollover.
type Sampler struct {
	File   *File
	Hosts  HostCounterSource
	Dirs   DirCounterSource
	FSAPos []int // per-record FSA position, same order as File.Hosts
	FRAPos []int // per-record FRA position, same order as File.Dirs

	MaxPlausibleDelta uint32
	ArchiveDir        string

	lastTick time.Time
}

// Tick samples every host/dir record, advances each ring by one slot,
// and archives any record whose year just rolled over. It does not
// compare the ring counters with the wall clock: a tick that arrives
// late or early still advances the ring by exactly one slot, and the
// gap is not represented in the ring.
func (s *Sampler) Tick(now time.Time) error {
	if len(s.FSAPos) != len(s.File.Hosts) {
		return errors.New("stats: FSAPos length must match File.Hosts length")
	}
	if len(s.FRAPos) != len(s.File.Dirs) {
		return errors.New("stats: FRAPos length must match File.Dirs length")
	}

	maxDelta := s.MaxPlausibleDelta
	if maxDelta == 0 {
		maxDelta = MaxFilesPerScan(s.File.tick)
	}

	var rolledHostNames, rolledDirNames []string
	var rolledHostYears, rolledDirYears [][DaysPerYear]Slot

	for i := range s.File.Hosts {
		raw, err := s.Hosts.ReadHost(s.FSAPos[i])
		if err != nil {
			return errors.Wrapf(err, "stats: read host counters for %s", s.File.Hosts[i].Name)
		}
		s.File.Hosts[i].SampleHost(raw, maxDelta)
		if dayClosed := s.File.Hosts[i].Ring.Advance(); dayClosed && s.File.Hosts[i].Ring.DayCounter == 0 {
			rolledHostNames = append(rolledHostNames, s.File.Hosts[i].Name)
			rolledHostYears = append(rolledHostYears, s.File.Hosts[i].Ring.Year)
			ResetYear(&s.File.Hosts[i].Ring)
		}
	}

	for i := range s.File.Dirs {
		raw, err := s.Dirs.ReadDir(s.FRAPos[i])
		if err != nil {
			return errors.Wrapf(err, "stats: read dir counters for %s", s.File.Dirs[i].Name)
		}
		s.File.Dirs[i].SampleDir(raw, maxDelta)
		if dayClosed := s.File.Dirs[i].Ring.Advance(); dayClosed && s.File.Dirs[i].Ring.DayCounter == 0 {
			rolledDirNames = append(rolledDirNames, s.File.Dirs[i].Name)
			rolledDirYears = append(rolledDirYears, s.File.Dirs[i].Ring.Year)
			ResetYear(&s.File.Dirs[i].Ring)
		}
	}

	if len(rolledHostNames) > 0 || len(rolledDirNames) > 0 {
		if err := s.archive(now, rolledHostNames, rolledHostYears, rolledDirNames, rolledDirYears); err != nil {
			return err
		}
	}

	if err := s.File.Sync(); err != nil {
		return errors.Wrap(err, "stats: sync after tick")
	}
	s.lastTick = now
	return nil
}

func (s *Sampler) archive(now time.Time, hostNames []string, hostYears [][DaysPerYear]Slot, dirNames []string, dirYears [][DaysPerYear]Slot) error {
	if s.ArchiveDir == "" {
		return errors.New("stats: year rollover occurred but ArchiveDir is unset")
	}
	// The year that just closed is the one ending "now" (the last full
	// day folded into Year before the wrap), not the new year now
	// starting.
	closedYear := now.Year()
	if now.YearDay() <= 1 {
		closedYear--
	}
	archivePath := filepath.Join(s.ArchiveDir, filepath.Base(s.File.path)+"."+strconv.Itoa(closedYear))
	return ArchiveYear(archivePath, closedYear, hostNames, hostYears, dirNames, dirYears)
}
