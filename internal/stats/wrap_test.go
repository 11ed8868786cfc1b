package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaxFilesPerScanUsesDefaultOnZero(t *testing.T) {
	require.EqualValues(t, 50, MaxFilesPerScan(0))
	require.EqualValues(t, 100, MaxFilesPerScan(10))
}

func TestWrapDeltaNormalRead(t *testing.T) {
	require.EqualValues(t, 5, WrapDelta(10, 15, 50))
}

func TestWrapDeltaGenuineCounterWrap(t *testing.T) {
	// prev=0xFFFFFFF0, cur=5, max=50 -> delta 21 across the 32-bit wrap.
	require.EqualValues(t, 21, WrapDelta(0xFFFFFFF0, 5, 50))
}

func TestWrapDeltaSupervisorResetTreatedAsFreshBaseline(t *testing.T) {
	// A drop far larger than any plausible wrap (e.g. counter reset to
	// near zero after a restart) should be reported as cur, not folded
	// through the modulus.
	require.EqualValues(t, 3, WrapDelta(1000000, 3, 50))
}

func TestWrapDeltaBoundaryAtMaxPlausibleDelta(t *testing.T) {
	// prev sits exactly maxPlausibleDelta below the modulus: still a
	// legitimate wrap.
	prev := uint32(uint32Modulus - 50)
	require.EqualValues(t, 55, WrapDelta(prev, 5, 50))
}
