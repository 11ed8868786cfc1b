package schedule

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/afd-project/afd/internal/jobqueue"
)

// CreateTargetDir builds the first-admitted-file target directory for a
// batch: either via CreateName (when local options require
// transformation, yielding "<outdir>/<unique>/") or via GetDirNumber
// (yielding the deterministic
// "<job_id_hex>/<dir_no_hex>/<creation_hex>_<unique_hex>_<split_hex>"
// layout).
func CreateTargetDir(outgoingDir string, job *jobqueue.InstantJob, creation time.Time, dirNo, splitJobNo int, needsTransform bool) (dir, unique string) {
	if needsTransform {
		return CreateName(outgoingDir, job)
	}
	return GetDirNumber(outgoingDir, job, creation, dirNo, splitJobNo)
}

// CreateName allocates "<outdir>/<unique>/" using a random unique token,
// the same random-suffix collision-avoidance idiom used elsewhere in
// this codebase for staging names; here the token itself is the full
// unique name rather than a suffix, since local options may already
// have renamed the batch.
func CreateName(outgoingDir string, job *jobqueue.InstantJob) (dir, unique string) {
	unique = uuid.NewString()
	return filepath.Join(outgoingDir, unique), unique
}

// GetDirNumber allocates the deterministic layout used when no local
// option requires name transformation:
// "<job_id_hex>/<dir_no_hex>/<creation_hex>_<unique_hex>_<split_hex>".
func GetDirNumber(outgoingDir string, job *jobqueue.InstantJob, creation time.Time, dirNo, splitJobNo int) (dir, unique string) {
	jobHex := fmt.Sprintf("%x", job.JobID)
	dirHex := fmt.Sprintf("%x", dirNo)
	creationHex := fmt.Sprintf("%x", creation.Unix())
	uniqueHex := fmt.Sprintf("%x", job.JobID^uint32(creation.UnixNano()))
	splitHex := fmt.Sprintf("%x", splitJobNo)

	unique = fmt.Sprintf("%s_%s_%s", creationHex, uniqueHex, splitHex)
	dir = filepath.Join(outgoingDir, jobHex, dirHex)
	return dir, unique
}
