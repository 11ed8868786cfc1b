// Package deletelog records every file the daemon removes on its own
// initiative, so an operator can reconstruct why a file disappeared.
// It mirrors the reason taxonomy of the original delete log (dl.host_name
// carrying a packed "<host> <reason-hex>" field, dl.file_name/file_size/
// job_number, and a free-text cause appended after the name) but as a
// structured logrus record rather than a fixed-width binary buffer.
package deletelog

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Reason identifies why the daemon deleted a file on its own, mirroring
// the original delete log's reason codes (AGE_INPUT, EXEC_FAILED_DEL, ...).
type Reason int

const (
	// ReasonAgeInput marks a file removed by the aging sweep for being
	// older than its directory's configured thresholds.
	ReasonAgeInput Reason = iota
	// ReasonExecFailedDelete marks a file removed because the exec
	// option's -D flag fired after its command exited non-zero.
	ReasonExecFailedDelete
)

func (r Reason) String() string {
	switch r {
	case ReasonAgeInput:
		return "AGE_INPUT"
	case ReasonExecFailedDelete:
		return "EXEC_FAILED_DEL"
	default:
		return "UNKNOWN"
	}
}

// Record is one deleted file's entry.
type Record struct {
	Time     time.Time
	FileName string
	HostName string // "-" when no host is associated, as in the aging sweep
	FileSize int64
	JobID    uint32
	Reason   Reason
	Cause    string // free-text detail, e.g. "exec (1) (dir_check.go:86)"
}

// Writer appends Records to a process-wide delete log. Unlike afdlog's
// free-text entity logger, every line carries the same structured fields
// so the log can be grepped or parsed by reason code and job number.
type Writer struct {
	logger *logrus.Logger
}

// NewWriter wraps an already-configured logrus.Logger (its output and
// formatter are the caller's concern, e.g. routed to a dedicated file).
func NewWriter(logger *logrus.Logger) *Writer {
	return &Writer{logger: logger}
}

// Write appends one Record.
func (w *Writer) Write(rec Record) {
	w.logger.WithFields(logrus.Fields{
		"time":      rec.Time.Format(time.RFC3339),
		"file_name": rec.FileName,
		"host_name": rec.HostName,
		"file_size": rec.FileSize,
		"job_id":    rec.JobID,
		"reason":    rec.Reason.String(),
		"cause":     rec.Cause,
	}).Warn("file deleted")
}

// WriteAll appends one Record per name in names, all sharing the same
// reason, job and cause, as when a pipeline step clears an entire pool
// at once.
func (w *Writer) WriteAll(names []string, sizes []int64, hostName string, jobID uint32, reason Reason, cause string, now time.Time) {
	for i, name := range names {
		var size int64
		if i < len(sizes) {
			size = sizes[i]
		}
		w.Write(Record{
			Time:     now,
			FileName: name,
			HostName: hostName,
			FileSize: size,
			JobID:    jobID,
			Reason:   reason,
			Cause:    cause,
		})
	}
}
