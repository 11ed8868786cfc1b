package dirconfig

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// EncodeFileMaskBlob serializes groups into the on-disk layout of
// files/incoming/filters/<dir_alias>:
//
//	int32 group_count
//	{ int32 fc; int32 fbl_padded_to_4; byte[fbl_padded] masks }*
//
// where fc is the number of patterns in the group and masks is the
// concatenation of each pattern as a NUL-terminated string, padded with
// NUL bytes to a multiple of 4. A leading '!' marks a Negative pattern,
// matching the C source's inverse-filter convention.
func EncodeFileMaskBlob(groups []FileMaskGroup) []byte {
	var buf bytes.Buffer
	writeInt32(&buf, int32(len(groups)))
	for _, g := range groups {
		var patterns []string
		for _, m := range g.Masks {
			for _, pat := range m.Patterns {
				s := pat.Pattern
				if pat.Negative {
					s = "!" + s
				}
				patterns = append(patterns, s)
			}
		}
		var body bytes.Buffer
		for _, s := range patterns {
			body.WriteString(s)
			body.WriteByte(0)
		}
		padded := padTo4(body.Bytes())
		writeInt32(&buf, int32(len(patterns)))
		writeInt32(&buf, int32(len(padded)))
		buf.Write(padded)
	}
	return buf.Bytes()
}

// DecodeFileMaskBlob parses the layout written by EncodeFileMaskBlob. It
// returns the flat list of patterns per group; callers reconstruct
// FileMaskEntry/destination bindings separately since the blob format
// itself carries only the patterns — destination bindings live in the
// directory's own option block, not the filter-file blob.
func DecodeFileMaskBlob(data []byte) ([][]MaskPattern, error) {
	r := bytes.NewReader(data)
	groupCount, err := readInt32(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading group_count")
	}
	if groupCount < 0 {
		return nil, errors.New("negative group_count")
	}
	groups := make([][]MaskPattern, 0, groupCount)
	for i := int32(0); i < groupCount; i++ {
		fc, err := readInt32(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading fc for group %d", i)
		}
		fbl, err := readInt32(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading fbl for group %d", i)
		}
		if fbl < 0 {
			return nil, errors.Errorf("negative fbl in group %d", i)
		}
		raw := make([]byte, fbl)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, errors.Wrapf(err, "reading masks for group %d", i)
		}
		patterns := splitNulTerminated(raw, int(fc))
		group := make([]MaskPattern, 0, len(patterns))
		for _, s := range patterns {
			mp := MaskPattern{Pattern: s}
			if len(s) > 0 && s[0] == '!' {
				mp.Negative = true
				mp.Pattern = s[1:]
			}
			group = append(group, mp)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	buf.Write(tmp[:])
}

func readInt32(r io.Reader) (int32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(tmp[:])), nil
}

func padTo4(b []byte) []byte {
	rem := len(b) % 4
	if rem == 0 {
		return b
	}
	return append(b, make([]byte, 4-rem)...)
}

func splitNulTerminated(raw []byte, count int) []string {
	out := make([]string, 0, count)
	start := 0
	for i := 0; i < len(raw) && len(out) < count; i++ {
		if raw[i] == 0 {
			out = append(out, string(raw[start:i]))
			start = i + 1
		}
	}
	return out
}
