package pipeline

import (
	"os"
	"path/filepath"

	"github.com/afd-project/afd/internal/pool"
	"github.com/pkg/errors"
)

// ConvertStep implements "convert <kind>" for the in-place formats
// {sohetx, sohetx2wmo0, sohetx2wmo1, sohetxwmo, wmo, mrz2wmo}. SOH/ETX
// framing is generic and implemented directly; the WMO/MRZ bulletin
// encodings themselves are opaque and delegated to a Codec, same
// mechanism as the tiff2gts-style converters.
type ConvertStep struct {
	Kind  string
	Codec Codec // used for kinds this process can't frame itself
}

const (
	kindSOHETX      = "sohetx"
	kindSOHETX2WMO0 = "sohetx2wmo0"
	kindSOHETX2WMO1 = "sohetx2wmo1"
	kindSOHETXWMO   = "sohetxwmo"
	kindWMO         = "wmo"
	kindMRZ2WMO     = "mrz2wmo"
)

func (s ConvertStep) Name() string { return "convert " + s.Kind }

func (s ConvertStep) Apply(p *pool.Pool) error {
	removed := false
	for _, e := range append([]pool.Entry(nil), p.Entries...) {
		path := filepath.Join(p.Dir, e.Name)
		dropped, err := s.convertOne(path)
		if err != nil {
			return errors.Wrapf(err, "convert %q", e.Name)
		}
		if dropped {
			removed = true
		}
	}
	if removed {
		return p.Restore()
	}
	return p.Recount()
}

func (s ConvertStep) convertOne(path string) (dropped bool, err error) {
	switch s.Kind {
	case kindSOHETX:
		return false, wrapSOHETX(path)
	default:
		codec := s.Codec
		if codec == nil {
			codec = NopCodec{}
		}
		size, err := codec.Convert(path)
		if err != nil {
			return false, err
		}
		if size <= 0 {
			_ = os.Remove(path)
			return true, nil
		}
		return false, nil
	}
}

// wrapSOHETX frames a file's contents in SOH...ETX if not already framed.
func wrapSOHETX(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) >= 2 && data[0] == soh && data[len(data)-1] == etx {
		return nil
	}
	out := make([]byte, 0, len(data)+2)
	out = append(out, soh)
	out = append(out, data...)
	out = append(out, etx)
	return os.WriteFile(path, out, 0o644)
}
