package stats

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenFreshFileCreatesRecordsForEveryName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afd_stat")
	sf, err := Open(path, 5, []string{"host1", "host2"}, []string{"dirA"})
	require.NoError(t, err)
	defer sf.Close()

	require.Len(t, sf.Hosts, 2)
	require.Equal(t, "host1", sf.Hosts[0].Name)
	require.Equal(t, "host2", sf.Hosts[1].Name)
	require.Len(t, sf.Dirs, 1)
	require.Equal(t, "dirA", sf.Dirs[0].Name)
}

func TestOpenSecondAttachRefusesLease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afd_stat")
	sf, err := Open(path, 5, []string{"host1"}, nil)
	require.NoError(t, err)
	defer sf.Close()

	_, err = Open(path, 5, []string{"host1"}, nil)
	require.Error(t, err)
}

func TestCloseThenReopenPreservesCounters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "afd_stat")

	sf, err := Open(path, 5, []string{"host1"}, nil)
	require.NoError(t, err)
	sf.Hosts[0].SampleHost(HostCounters{FilesDone: 7, BytesSend: 700}, 50)
	require.NoError(t, sf.Close())

	sf2, err := Open(path, 5, []string{"host1"}, nil)
	require.NoError(t, err)
	defer sf2.Close()

	require.EqualValues(t, 7, sf2.Hosts[0].PrevFilesDone)
	require.EqualValues(t, 700, sf2.Hosts[0].PrevBytesSend)
	require.EqualValues(t, 7, sf2.Hosts[0].Ring.Hour[0].Files)
}

func TestMigrateAcceptsVersion1AndRefusesUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "afd_stat")

	sf, err := Open(path, 5, []string{"host1"}, nil)
	require.NoError(t, err)
	require.NoError(t, sf.Close())

	require.NoError(t, Migrate(path, 1))
	// Migrate from a version we don't understand must fail outright.
	require.Error(t, Migrate(path, 99))
}

func TestRecordSizeAccountsForAllThreeRings(t *testing.T) {
	size := recordSize(720)
	require.Equal(t, recordHeaderSize+720*slotSize+HoursPerDay*slotSize+DaysPerYear*slotSize, size)
}
