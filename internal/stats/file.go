package stats

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// CurrentVersion is the on-disk format version this build writes.
// Migrate refuses any (old, new) pair it does not explicitly recognize.
const CurrentVersion uint8 = 2

// nameMax bounds a host alias or directory alias stored on disk.
const nameMax = 64

const slotSize = 32 // Files(4) Bytes(8) Errors(4) Connections(4) FilesReceived(4) BytesReceived(8)

// recordHeaderSize is an upper bound on the fixed portion of one
// record ahead of its Hour/Day/Year slot arrays (name+len+pad,
// start time, and the wider of the host/dir prev-counter sets — see
// encodeHostRecord/encodeDirRecord for the exact field layout each
// writes within this bound). A few trailing bytes are left unused
// padding per record; that's cheaper than two separate fixed sizes.
const recordHeaderSize = nameMax + 1 + 3 + 8 + 4 + 4 + 4 + 4 + 8 + 4 + 4 + 4 + 8

// headerSize is the file header: version(1) + reserved(3) +
// tickSeconds(4) + hourSlots(4) + hostCount(4) + dirCount(4).
// Word-sized like the original's AFD_WORD_OFFSET_0 convention for its
// own stat-file header (convert_fra.c).
const headerSize = 1 + 3 + 4 + 4 + 4 + 4

func recordSize(hourSlots int) int {
	return recordHeaderSize + hourSlots*slotSize + HoursPerDay*slotSize + DaysPerYear*slotSize
}

// File is a versioned, memory-mapped, exclusively-leased stat file
// holding every HostStatRecord and DirStatRecord, supporting
// crash/restart reattachment without losing in-progress counters.
type File struct {
	path   string
	f      *os.File
	data   mmap.MMap
	lock   *flock.Flock
	locked bool

	version    uint8
	tick       int
	hourSlots  int
	hostCount  int
	dirCount   int
	recordSize int

	Hosts []HostStatRecord
	Dirs  []DirStatRecord
}

// Open maps path into memory, acquiring an exclusive lease (a second
// supervisor attaching to the same file is a configuration error, not
// a condition to silently tolerate). A missing file is created fresh
// with the given host/dir aliases and tick.
func Open(path string, tickSeconds int, hostNames, dirNames []string) (*File, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "stats: acquire lease")
	}
	if !locked {
		return nil, errors.New("stats: file already leased by another process")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, errors.Wrap(err, "stats: open")
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		_ = lock.Unlock()
		return nil, errors.Wrap(err, "stats: stat")
	}

	sf := &File{path: path, f: f, lock: lock, locked: true}
	if fi.Size() == 0 {
		if err := sf.initFresh(tickSeconds, hostNames, dirNames); err != nil {
			_ = f.Close()
			_ = lock.Unlock()
			return nil, err
		}
		return sf, nil
	}

	if err := sf.attachExisting(); err != nil {
		_ = f.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return sf, nil
}

func (sf *File) initFresh(tickSeconds int, hostNames, dirNames []string) error {
	if tickSeconds <= 0 {
		tickSeconds = DefaultTickSeconds
	}
	sf.version = CurrentVersion
	sf.tick = tickSeconds
	sf.hourSlots = SecsPerHour(tickSeconds)
	sf.hostCount = len(hostNames)
	sf.dirCount = len(dirNames)
	sf.recordSize = recordSize(sf.hourSlots)

	now := time.Now()
	sf.Hosts = make([]HostStatRecord, sf.hostCount)
	for i, n := range hostNames {
		sf.Hosts[i] = HostStatRecord{Name: n, StartTime: now, Ring: NewRing(tickSeconds)}
	}
	sf.Dirs = make([]DirStatRecord, sf.dirCount)
	for i, n := range dirNames {
		sf.Dirs[i] = DirStatRecord{Name: n, StartTime: now, Ring: NewRing(tickSeconds)}
	}

	total := headerSize + (sf.hostCount+sf.dirCount)*sf.recordSize
	if err := sf.f.Truncate(int64(total)); err != nil {
		return errors.Wrap(err, "stats: truncate fresh file")
	}
	data, err := mmap.Map(sf.f, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "stats: mmap fresh file")
	}
	sf.data = data
	sf.writeHeader()
	sf.syncRecordsLocked()
	return sf.data.Flush()
}

func (sf *File) attachExisting() error {
	data, err := mmap.Map(sf.f, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "stats: mmap existing file")
	}
	sf.data = data
	if len(data) < headerSize {
		return errors.New("stats: file too small to contain a header")
	}
	sf.version = data[0]
	sf.tick = int(binary.LittleEndian.Uint32(data[4:8]))
	sf.hourSlots = int(binary.LittleEndian.Uint32(data[8:12]))
	sf.hostCount = int(binary.LittleEndian.Uint32(data[12:16]))
	sf.dirCount = int(binary.LittleEndian.Uint32(data[16:20]))
	sf.recordSize = recordSize(sf.hourSlots)

	if sf.version != CurrentVersion {
		return errors.Errorf("stats: file is version %d, this build requires %d; run migration first", sf.version, CurrentVersion)
	}

	want := headerSize + (sf.hostCount+sf.dirCount)*sf.recordSize
	if len(data) != want {
		return errors.Errorf("stats: file size %d does not match header-declared layout %d (truncated or corrupt)", len(data), want)
	}

	sf.Hosts = make([]HostStatRecord, sf.hostCount)
	sf.Dirs = make([]DirStatRecord, sf.dirCount)
	off := headerSize
	for i := 0; i < sf.hostCount; i++ {
		sf.Hosts[i] = decodeHostRecord(data[off:off+sf.recordSize], sf.hourSlots)
		off += sf.recordSize
	}
	for i := 0; i < sf.dirCount; i++ {
		sf.Dirs[i] = decodeDirRecord(data[off:off+sf.recordSize], sf.hourSlots)
		off += sf.recordSize
	}
	return nil
}

func (sf *File) writeHeader() {
	sf.data[0] = sf.version
	sf.data[1], sf.data[2], sf.data[3] = 0, 0, 0
	binary.LittleEndian.PutUint32(sf.data[4:8], uint32(sf.tick))
	binary.LittleEndian.PutUint32(sf.data[8:12], uint32(sf.hourSlots))
	binary.LittleEndian.PutUint32(sf.data[12:16], uint32(sf.hostCount))
	binary.LittleEndian.PutUint32(sf.data[16:20], uint32(sf.dirCount))
}

// Sync re-encodes every record into the mapped region and flushes it
// to the backing file, the durability requirement every sampler tick
// must honor before moving on.
func (sf *File) Sync() error {
	sf.syncRecordsLocked()
	return sf.data.Flush()
}

func (sf *File) syncRecordsLocked() {
	off := headerSize
	for i := range sf.Hosts {
		encodeHostRecord(sf.data[off:off+sf.recordSize], sf.hourSlots, &sf.Hosts[i])
		off += sf.recordSize
	}
	for i := range sf.Dirs {
		encodeDirRecord(sf.data[off:off+sf.recordSize], sf.hourSlots, &sf.Dirs[i])
		off += sf.recordSize
	}
}

// Close flushes, unmaps, and releases the exclusive lease.
func (sf *File) Close() error {
	var firstErr error
	if sf.data != nil {
		if err := sf.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := sf.data.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := sf.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if sf.locked {
		if err := sf.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
		sf.locked = false
	}
	return firstErr
}

func putSlot(buf []byte, s Slot) {
	binary.LittleEndian.PutUint32(buf[0:4], s.Files)
	binary.LittleEndian.PutUint64(buf[4:12], s.Bytes)
	binary.LittleEndian.PutUint32(buf[12:16], s.Errors)
	binary.LittleEndian.PutUint32(buf[16:20], s.Connections)
	binary.LittleEndian.PutUint32(buf[20:24], s.FilesReceived)
	binary.LittleEndian.PutUint64(buf[24:32], s.BytesReceived)
}

func getSlot(buf []byte) Slot {
	return Slot{
		Files:         binary.LittleEndian.Uint32(buf[0:4]),
		Bytes:         binary.LittleEndian.Uint64(buf[4:12]),
		Errors:        binary.LittleEndian.Uint32(buf[12:16]),
		Connections:   binary.LittleEndian.Uint32(buf[16:20]),
		FilesReceived: binary.LittleEndian.Uint32(buf[20:24]),
		BytesReceived: binary.LittleEndian.Uint64(buf[24:32]),
	}
}

func putName(buf []byte, name string) {
	n := copy(buf[0:nameMax], name)
	for i := n; i < nameMax; i++ {
		buf[i] = 0
	}
	buf[nameMax] = byte(n)
}

func getName(buf []byte) string {
	n := int(buf[nameMax])
	if n > nameMax {
		n = nameMax
	}
	return string(buf[0:n])
}

func encodeRing(buf []byte, hourSlots int, r *Ring) {
	off := 0
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(r.SecCounter))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(r.HourCounter))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(r.DayCounter))
	off += 4
	for i := 0; i < hourSlots; i++ {
		var s Slot
		if i < len(r.Hour) {
			s = r.Hour[i]
		}
		putSlot(buf[off:off+slotSize], s)
		off += slotSize
	}
	for i := 0; i < HoursPerDay; i++ {
		putSlot(buf[off:off+slotSize], r.Day[i])
		off += slotSize
	}
	for i := 0; i < DaysPerYear; i++ {
		putSlot(buf[off:off+slotSize], r.Year[i])
		off += slotSize
	}
}

func decodeRing(buf []byte, hourSlots int) Ring {
	off := 0
	r := Ring{Hour: make([]Slot, hourSlots)}
	r.SecCounter = int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	r.HourCounter = int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	r.DayCounter = int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	for i := 0; i < hourSlots; i++ {
		r.Hour[i] = getSlot(buf[off : off+slotSize])
		off += slotSize
	}
	for i := 0; i < HoursPerDay; i++ {
		r.Day[i] = getSlot(buf[off : off+slotSize])
		off += slotSize
	}
	for i := 0; i < DaysPerYear; i++ {
		r.Year[i] = getSlot(buf[off : off+slotSize])
		off += slotSize
	}
	return r
}

// ringEncodedSize is the byte span encodeRing/decodeRing occupy ahead
// of the prev-counter fields in a record buffer.
func ringEncodedSize(hourSlots int) int {
	return 12 + hourSlots*slotSize + HoursPerDay*slotSize + DaysPerYear*slotSize
}

func encodeHostRecord(buf []byte, hourSlots int, rec *HostStatRecord) {
	putName(buf, rec.Name)
	off := nameMax + 1 + 3
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(rec.StartTime.Unix()))
	off += 8
	encodeRing(buf[off:off+ringEncodedSize(hourSlots)], hourSlots, &rec.Ring)
	off += ringEncodedSize(hourSlots)
	binary.LittleEndian.PutUint32(buf[off:off+4], rec.PrevFilesDone)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], rec.PrevBytesSend)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:off+4], rec.PrevErrors)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], rec.PrevConnections)
}

func decodeHostRecord(buf []byte, hourSlots int) HostStatRecord {
	var rec HostStatRecord
	rec.Name = getName(buf)
	off := nameMax + 1 + 3
	rec.StartTime = time.Unix(int64(binary.LittleEndian.Uint64(buf[off:off+8])), 0)
	off += 8
	rec.Ring = decodeRing(buf[off:off+ringEncodedSize(hourSlots)], hourSlots)
	off += ringEncodedSize(hourSlots)
	rec.PrevFilesDone = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	rec.PrevBytesSend = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	rec.PrevErrors = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	rec.PrevConnections = binary.LittleEndian.Uint32(buf[off : off+4])
	return rec
}

func encodeDirRecord(buf []byte, hourSlots int, rec *DirStatRecord) {
	putName(buf, rec.Name)
	off := nameMax + 1 + 3
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(rec.StartTime.Unix()))
	off += 8
	encodeRing(buf[off:off+ringEncodedSize(hourSlots)], hourSlots, &rec.Ring)
	off += ringEncodedSize(hourSlots)
	binary.LittleEndian.PutUint32(buf[off:off+4], rec.PrevFilesReceived)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], rec.PrevBytesReceived)
}

func decodeDirRecord(buf []byte, hourSlots int) DirStatRecord {
	var rec DirStatRecord
	rec.Name = getName(buf)
	off := nameMax + 1 + 3
	rec.StartTime = time.Unix(int64(binary.LittleEndian.Uint64(buf[off:off+8])), 0)
	off += 8
	rec.Ring = decodeRing(buf[off:off+ringEncodedSize(hourSlots)], hourSlots)
	off += ringEncodedSize(hourSlots)
	rec.PrevFilesReceived = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	rec.PrevBytesReceived = binary.LittleEndian.Uint64(buf[off : off+8])
	return rec
}

// Migrate rewrites an older-version file into CurrentVersion in place.
// Only the (old, new) pairs this build explicitly understands are
// accepted; anything else is refused outright rather than guessed at —
// migration is all-or-nothing, never partial.
func Migrate(path string, fromVersion uint8) error {
	if fromVersion != 1 {
		return errors.Errorf("stats: no migration path from version %d to %d", fromVersion, CurrentVersion)
	}
	// Version 1 used an identical record layout but lacked the
	// tick/hourSlots header fields (they were implicitly
	// STAT_RESCAN_TIME=5 / 720). Rewriting the header in place is
	// sufficient; record bytes are unchanged.
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "stats: open for migration")
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "stats: mmap for migration")
	}
	defer data.Unmap()

	if len(data) < headerSize {
		return errors.New("stats: file too small to migrate")
	}
	data[0] = CurrentVersion
	binary.LittleEndian.PutUint32(data[4:8], uint32(DefaultTickSeconds))
	binary.LittleEndian.PutUint32(data[8:12], uint32(SecsPerHour(DefaultTickSeconds)))
	return data.Flush()
}
