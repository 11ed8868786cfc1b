package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeHostSource struct{ counters map[int]HostCounters }

func (f fakeHostSource) ReadHost(fsaPos int) (HostCounters, error) {
	return f.counters[fsaPos], nil
}

type fakeDirSource struct{ counters map[int]DirCounters }

func (f fakeDirSource) ReadDir(fraPos int) (DirCounters, error) {
	return f.counters[fraPos], nil
}

func TestSamplerTickAdvancesRingAndPersistsPrevCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afd_stat")
	sf, err := Open(path, 5, []string{"host1"}, []string{"dirA"})
	require.NoError(t, err)
	defer sf.Close()

	sampler := &Sampler{
		File:   sf,
		Hosts:  fakeHostSource{counters: map[int]HostCounters{0: {FilesDone: 3}}},
		Dirs:   fakeDirSource{counters: map[int]DirCounters{0: {FilesReceived: 2}}},
		FSAPos: []int{0},
		FRAPos: []int{0},
	}

	require.NoError(t, sampler.Tick(time.Now()))
	require.EqualValues(t, 3, sf.Hosts[0].PrevFilesDone)
	require.EqualValues(t, 2, sf.Dirs[0].PrevFilesReceived)
	require.Equal(t, 1, sf.Hosts[0].Ring.SecCounter)
}

func TestSamplerTickRejectsMismatchedPositionSlices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afd_stat")
	sf, err := Open(path, 5, []string{"host1"}, nil)
	require.NoError(t, err)
	defer sf.Close()

	sampler := &Sampler{
		File:   sf,
		Hosts:  fakeHostSource{},
		Dirs:   fakeDirSource{},
		FSAPos: nil,
	}
	require.Error(t, sampler.Tick(time.Now()))
}

func TestSamplerArchivesOnYearRollover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "afd_stat")
	sf, err := Open(path, 5, []string{"host1"}, nil)
	require.NoError(t, err)
	defer sf.Close()

	archiveDir := t.TempDir()
	sampler := &Sampler{
		File:       sf,
		Hosts:      fakeHostSource{counters: map[int]HostCounters{0: {FilesDone: 1}}},
		Dirs:       fakeDirSource{},
		FSAPos:     []int{0},
		FRAPos:     []int{},
		ArchiveDir: archiveDir,
	}

	sf.Hosts[0].Ring.Hour = make([]Slot, 1)
	sf.Hosts[0].Ring.DayCounter = DaysPerYear - 1
	sf.Hosts[0].Ring.HourCounter = HoursPerDay - 1

	now := time.Now()
	require.NoError(t, sampler.Tick(now))
	require.Equal(t, 0, sf.Hosts[0].Ring.DayCounter)
	require.EqualValues(t, 0, sf.Hosts[0].Ring.Year[0].Files, "year ring resets after archiving")
}
