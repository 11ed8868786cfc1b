package stats

import (
	"encoding/binary"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// yearArchiveHeaderSize is the archival file's header: version(1) +
// reserved(3) + recordCount(4).
const yearArchiveHeaderSize = 8

// yearRecordSize is one archived host/dir's year ring only — no
// hour/day rings, since an archive only ever holds closed years in
// the reduced afd_year_istat layout.
const yearRecordSize = nameMax + 1 + 3 + DaysPerYear*slotSize

// ArchiveYear writes the just-completed Year rings of the given hosts
// and dirs to archivePath in the reduced afd_year_istat layout. It does
// not touch the live records: Sampler builds the "<stat file>.<year>"
// path and calls ResetYear on each archived ring afterwards.
func ArchiveYear(archivePath string, year int, hostNames []string, hostYears [][DaysPerYear]Slot, dirNames []string, dirYears [][DaysPerYear]Slot) error {
	count := len(hostNames) + len(dirNames)
	total := yearArchiveHeaderSize + count*yearRecordSize

	f, err := os.OpenFile(archivePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "stats: open year archive")
	}
	defer f.Close()

	if err := f.Truncate(int64(total)); err != nil {
		return errors.Wrap(err, "stats: truncate year archive")
	}
	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "stats: mmap year archive")
	}
	defer data.Unmap()

	data[0] = CurrentVersion
	binary.LittleEndian.PutUint32(data[4:8], uint32(count))

	off := yearArchiveHeaderSize
	for i, name := range hostNames {
		putName(data[off:off+nameMax+1], name)
		ringOff := off + nameMax + 1 + 3
		for d := 0; d < DaysPerYear; d++ {
			putSlot(data[ringOff+d*slotSize:ringOff+(d+1)*slotSize], hostYears[i][d])
		}
		off += yearRecordSize
	}
	for i, name := range dirNames {
		putName(data[off:off+nameMax+1], name)
		ringOff := off + nameMax + 1 + 3
		for d := 0; d < DaysPerYear; d++ {
			putSlot(data[ringOff+d*slotSize:ringOff+(d+1)*slotSize], dirYears[i][d])
		}
		off += yearRecordSize
	}
	return data.Flush()
}

// ResetYear zeroes a record's Year ring and DayCounter after a
// successful archive, so the live file's year ring is zero
// immediately after rollover and the new year starts clean.
func ResetYear(r *Ring) {
	r.Year = [DaysPerYear]Slot{}
	r.DayCounter = 0
}
