package pipeline

import (
	"bytes"
	"hash/crc32"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/counter"
	"github.com/afd-project/afd/internal/pool"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

const (
	soh = 0x01
	etx = 0x03
)

// Splitter divides one bulletin file into its constituent records. The
// actual per-format framing ({VAX, LBF, HBF, MSS, MRZ, GRIB, WMO,
// ASCII}) is an opaque, out-of-scope decoder invoked as an external
// process, same as Codec.
type Splitter interface {
	Split(path string) ([][]byte, error)
}

// ExecSplitter shells out to an external "afd-extract-<type>" binary
// that writes NUL-separated records to stdout.
type ExecSplitter struct {
	Binary string
}

func (s ExecSplitter) Split(path string) ([][]byte, error) {
	cmd := exec.Command(s.Binary, path)
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "splitter %s", s.Binary)
	}
	parts := bytes.Split(out, []byte{0})
	var records [][]byte
	for _, p := range parts {
		if len(p) > 0 {
			records = append(records, p)
		}
	}
	return records, nil
}

// ExtractStep implements "extract <type> [-c/-C][-n/-N][-s/-S]
// [filter]": split pool files into one file per record of the named
// format, optionally CRC-suffixed, unique-numbered, and SOH/ETX-framed.
// After extraction, the pool is rebuilt.
type ExtractStep struct {
	Type         string
	AddCRC       bool
	RemoveCRC    bool
	AddNumber    bool
	RemoveNumber bool
	AddSOHETX    bool
	RemoveSOHETX bool
	Filter       string
	Splitter     Splitter
	Counter      *counter.Counter
}

func (s ExtractStep) Name() string { return "extract " + s.Type }

func (s ExtractStep) Apply(p *pool.Pool) error {
	splitter := s.Splitter
	if splitter == nil {
		splitter = ExecSplitter{Binary: "afd-extract-" + s.Type}
	}

	any := false
	for _, e := range append([]pool.Entry(nil), p.Entries...) {
		if s.Filter != "" {
			ok, err := doublestar.Match(s.Filter, e.Name)
			if err != nil || !ok {
				continue
			}
		}
		path := filepath.Join(p.Dir, e.Name)
		records, err := splitter.Split(path)
		if err != nil {
			return errors.Wrapf(err, "extract %q", e.Name)
		}
		if records == nil {
			continue
		}
		for i, rec := range records {
			rec = s.frame(rec)
			name := e.Name + "." + strconv.Itoa(i)
			if s.Counter != nil {
				n, cerr := s.Counter.Next(p.Dir)
				if cerr != nil {
					return errors.Wrap(cerr, "extract unique-number counter")
				}
				name = e.Name + "-" + strconv.FormatUint(uint64(n), 10)
			}
			name = pool.UniqueNameOnDisk(p.Dir, name)
			if werr := os.WriteFile(filepath.Join(p.Dir, name), rec, 0o644); werr != nil {
				return errors.Wrapf(werr, "write extracted record %q", name)
			}
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			afdlog.Warnf(p.Dir, "extract: removing source %q: %v", e.Name, err)
		}
		any = true
	}
	if any {
		return p.Restore()
	}
	return nil
}

func (s ExtractStep) frame(rec []byte) []byte {
	if s.AddSOHETX && !s.RemoveSOHETX {
		framed := make([]byte, 0, len(rec)+2)
		framed = append(framed, soh)
		framed = append(framed, rec...)
		framed = append(framed, etx)
		rec = framed
	} else if s.RemoveSOHETX && len(rec) >= 2 && rec[0] == soh && rec[len(rec)-1] == etx {
		rec = rec[1 : len(rec)-1]
	}
	if s.AddCRC && !s.RemoveCRC {
		sum := crc32.ChecksumIEEE(rec)
		out := make([]byte, 0, len(rec)+4)
		out = append(out, rec...)
		out = append(out, byte(sum), byte(sum>>8), byte(sum>>16), byte(sum>>24))
		rec = out
	}
	return rec
}
