package pipeline

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/pool"
	"github.com/pkg/errors"
)

// Codec is the boundary for the bulletin-format converters (tiff2gts,
// fax2gts, gts2tiff, grib2wmo [cccc], wmo2ascii, afw2wmo) and for the
// non-SOH/ETX convert kinds; extract and assemble use the separate
// Splitter and Assembler interfaces. These decoders are out
// of scope for reimplementation — the core only needs to invoke them
// as opaque converters and observe the returned size, so Codec wraps
// an external process rather than reimplementing any bulletin format.
type Codec interface {
	// Convert transforms the file at path in place and returns its new
	// size. A size <= 0 signals the file should be dropped from the pool.
	Convert(path string) (int64, error)
}

// ExecCodec shells out to an external converter binary, passing path as
// its sole argument and reporting the post-run file size.
type ExecCodec struct {
	Binary string
	Args   []string
}

func (c ExecCodec) Convert(path string) (int64, error) {
	args := append(append([]string(nil), c.Args...), path)
	cmd := exec.Command(c.Binary, args...)
	out, err := cmd.CombinedOutput()
	logCommandOutput(filepath.Dir(path), out)
	if err != nil {
		return 0, errors.Wrapf(err, "codec %s", c.Binary)
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return fi.Size(), nil
}

// NopCodec passes the file through unchanged, reporting its current
// size. Used in tests and for codec kinds not configured for a
// directory.
type NopCodec struct{}

func (NopCodec) Convert(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// CodecStep applies one named opaque codec (tiff2gts, fax2gts, gts2tiff,
// grib2wmo, wmo2ascii, afw2wmo) to every file in the pool.
type CodecStep struct {
	Kind  string
	Codec Codec
}

func (s CodecStep) Name() string { return s.Kind }

func (s CodecStep) Apply(p *pool.Pool) error {
	codec := s.Codec
	if codec == nil {
		codec = NopCodec{}
	}
	removed := false
	for _, e := range append([]pool.Entry(nil), p.Entries...) {
		path := filepath.Join(p.Dir, e.Name)
		size, err := codec.Convert(path)
		if err != nil {
			return errors.Wrapf(err, "%s on %q", s.Kind, e.Name)
		}
		if size <= 0 {
			_ = os.Remove(path)
			removed = true
			afdlog.Warnf(p.Dir, "%s produced empty output for %q, dropped", s.Kind, e.Name)
		}
	}
	if removed {
		return p.Restore()
	}
	return p.Recount()
}
