package dirconfig

import "time"

// DupCheckType is the <check type> code of the dupcheck directive.
type DupCheckType int

const (
	DupCheckFilenameOnly DupCheckType = 1
	DupCheckFileContent  DupCheckType = 2
	DupCheckFileContName DupCheckType = 3
)

// DupCheckAction is the <action> code of the dupcheck directive; note DeleteWarn and
// StoreWarn are their own codes, not just a union of bits, matching
// original_source/src/common/eval_dupcheck_options.c's val switch.
type DupCheckAction int

const (
	DupCheckDelete     DupCheckAction = 24
	DupCheckStore      DupCheckAction = 25
	DupCheckWarn       DupCheckAction = 26
	DupCheckDeleteWarn DupCheckAction = 33
	DupCheckStoreWarn  DupCheckAction = 34
)

// DupCheckCRC is the <CRC type> code; only CRC32 (16) is recognized.
type DupCheckCRC int

const DupCheckCRC32 DupCheckCRC = 16

// DupCheckConfig is the compiled dupcheck directive.
type DupCheckConfig struct {
	Enabled bool
	Timeout time.Duration
	Type    DupCheckType
	Delete  bool
	Store   bool
	Warn    bool
	CRC     DupCheckCRC
}

const defaultDupCheckTimeout = 3600 * time.Second

// parseDupCheck parses `dupcheck [timeout[ type[ action[ crc]]]]`.
// Every field is independently optional; an unrecognized value falls
// back to its documented default with a warning, and parsing does not
// abort on the first bad field — it keeps consuming subsequent optional
// fields exactly as original_source's eval_dupcheck_options.c does.
func parseDupCheck(p *parser, e *DirectoryEntry, line int) DupCheckConfig {
	cfg := DupCheckConfig{
		Enabled: true,
		Timeout: defaultDupCheckTimeout,
		Type:    DupCheckFilenameOnly,
		Delete:  true,
		CRC:     DupCheckCRC32,
	}

	if p.peekIsNumber() {
		n := parseInt64(p, int64(defaultDupCheckTimeout/time.Second))
		cfg.Timeout = time.Duration(n) * time.Second
	} else {
		return cfg
	}

	if p.peekIsNumber() {
		val := parseInt(p, int(DupCheckFilenameOnly))
		switch DupCheckType(val) {
		case DupCheckFilenameOnly, DupCheckFileContent, DupCheckFileContName:
			cfg.Type = DupCheckType(val)
		default:
			e.warn(line, "dupcheck", "unknown check type, defaulting to filename-only")
			cfg.Type = DupCheckFilenameOnly
		}
	} else {
		return cfg
	}

	if p.peekIsNumber() {
		val := parseInt(p, int(DupCheckDelete))
		cfg.Delete, cfg.Store, cfg.Warn = false, false, false
		switch DupCheckAction(val) {
		case DupCheckDelete:
			cfg.Delete = true
		case DupCheckStore:
			cfg.Store = true
		case DupCheckWarn:
			cfg.Warn = true
		case DupCheckDeleteWarn:
			cfg.Delete, cfg.Warn = true, true
		case DupCheckStoreWarn:
			cfg.Store, cfg.Warn = true, true
		default:
			e.warn(line, "dupcheck", "unknown action, defaulting to delete")
			cfg.Delete = true
		}
	} else {
		return cfg
	}

	if p.peekIsNumber() {
		val := parseInt(p, int(DupCheckCRC32))
		if DupCheckCRC(val) != DupCheckCRC32 {
			e.warn(line, "dupcheck", "unknown CRC type, defaulting to CRC32")
		}
		cfg.CRC = DupCheckCRC32
	}

	return cfg
}
