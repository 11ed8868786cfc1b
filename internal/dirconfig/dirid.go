package dirconfig

import "hash/crc32"

// ComputeDirID derives the stable 32-bit CRC dir_id from (path, alias).
// Re-reading configuration may reassign job_ids but must never change
// dir_id for a path whose alias is unchanged — hashing exactly (path,
// alias) and nothing else (no mtime, no ordering-dependent counter) is
// what guarantees that.
func ComputeDirID(path, alias string) uint32 {
	h := crc32.NewIEEE()
	_, _ = h.Write([]byte(path))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(alias))
	return h.Sum32()
}

// ComputeJobID derives a job_id from the producing config slice: the
// directory's dir_id plus the destination group's recipients and local
// options, so the same directory+destination config always yields the
// same job_id across a reload, while a changed option list (local or
// standard) gets a fresh id.
func ComputeJobID(dirID uint32, destPos int, recipients, localOptions, standardOptions []string) uint32 {
	h := crc32.NewIEEE()
	var tmp [4]byte
	tmp[0] = byte(dirID)
	tmp[1] = byte(dirID >> 8)
	tmp[2] = byte(dirID >> 16)
	tmp[3] = byte(dirID >> 24)
	_, _ = h.Write(tmp[:])
	_, _ = h.Write([]byte{byte(destPos), byte(destPos >> 8)})
	for _, r := range recipients {
		_, _ = h.Write([]byte(r))
		_, _ = h.Write([]byte{0})
	}
	for _, o := range localOptions {
		_, _ = h.Write([]byte(o))
		_, _ = h.Write([]byte{0})
	}
	for _, o := range standardOptions {
		_, _ = h.Write([]byte(o))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum32()
}
