package stats

import "time"

// HostStatRecord is one destination host's statistics record.
type HostStatRecord struct {
	Name      string
	StartTime time.Time
	Ring      Ring

	PrevFilesDone   uint32
	PrevBytesSend   uint64
	PrevErrors      uint32
	PrevConnections uint32
}

// DirStatRecord is one watched directory's statistics record.
type DirStatRecord struct {
	Name      string
	StartTime time.Time
	Ring      Ring

	PrevFilesReceived uint32
	PrevBytesReceived uint64
}

// HostCounters is one tick's raw monotonic readings from the transfer
// subsystem for a host.
type HostCounters struct {
	FilesDone   uint32
	BytesSend   uint64
	Errors      uint32
	Connections uint32
}

// DirCounters is one tick's raw monotonic readings for a directory.
type DirCounters struct {
	FilesReceived uint32
	BytesReceived uint64
}

// SampleHost computes this tick's delta for rec from raw and writes it
// into the ring, applying counter-wrap policy to FilesDone and Errors/
// Connections and clamping a negative byte delta to zero.
func (rec *HostStatRecord) SampleHost(raw HostCounters, maxPlausibleDelta uint32) Slot {
	delta := Slot{
		Files:       WrapDelta(rec.PrevFilesDone, raw.FilesDone, maxPlausibleDelta),
		Errors:      WrapDelta(rec.PrevErrors, raw.Errors, maxPlausibleDelta),
		Connections: WrapDelta(rec.PrevConnections, raw.Connections, maxPlausibleDelta),
	}
	if raw.BytesSend >= rec.PrevBytesSend {
		delta.Bytes = raw.BytesSend - rec.PrevBytesSend
	}
	rec.PrevFilesDone = raw.FilesDone
	rec.PrevBytesSend = raw.BytesSend
	rec.PrevErrors = raw.Errors
	rec.PrevConnections = raw.Connections

	rec.Ring.Sample(delta)
	return delta
}

// SampleDir is SampleHost's directory-input counterpart.
func (rec *DirStatRecord) SampleDir(raw DirCounters, maxPlausibleDelta uint32) Slot {
	delta := Slot{
		FilesReceived: WrapDelta(rec.PrevFilesReceived, raw.FilesReceived, maxPlausibleDelta),
	}
	if raw.BytesReceived >= rec.PrevBytesReceived {
		delta.BytesReceived = raw.BytesReceived - rec.PrevBytesReceived
	}
	rec.PrevFilesReceived = raw.FilesReceived
	rec.PrevBytesReceived = raw.BytesReceived

	rec.Ring.Sample(delta)
	return delta
}
