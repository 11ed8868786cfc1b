package dirconfig

import (
	"strconv"
	"strings"
	"time"

	"github.com/afd-project/afd/internal/afdlog"
)

// MaxFRATimeEntries caps the number of calendar entries appended by
// repeated `time` options.
const MaxFRATimeEntries = 48

// optionSpec describes one recognized multi-word option token and its
// handler. Specs are tried longest-name-first so "do not delete unknown
// files" is matched before the shorter "delete unknown files".
type optionSpec struct {
	name    []string // whitespace-split option name, e.g. {"delete","unknown","files"}
	handler func(p *parser, e *DirectoryEntry, line int)
}

// ParseOptions tokenizes one directory's option block (the text stored
// under files/incoming/filters/<alias>) and applies it to e.
// No parse failure is fatal: unknown tokens, overlong numerics and
// duplicate options are recorded as ParseWarnings; for an unknown or
// duplicate option the rest of its line is discarded and the parser
// resynchronizes at the next line, consuming to end of input.
func ParseOptions(alias, block string, e *DirectoryEntry) {
	e.Alias = alias
	if e.usedOptions == nil {
		e.usedOptions = make(map[string]int)
	}
	e.EndCharacter = -1

	p := &parser{toks: tokenizeLines(block)}
	for p.more() {
		line := p.line()
		spec, ok := p.match(specs)
		if !ok {
			tok := p.next()
			e.warn(line, tok, "unknown option, discarded")
			for p.more() && p.line() == line {
				p.next()
			}
			continue
		}
		if first, seen := e.usedOptions[spec.key()]; seen {
			e.warn(line, spec.key(), "option already set at line "+strconv.Itoa(first)+", ignoring")
			for p.more() && p.line() == line {
				p.next()
			}
			continue
		}
		e.usedOptions[spec.key()] = line
		spec.handler(p, e, line)
	}

	backfillOldFileTime(e)
}

func (s optionSpec) key() string { return strings.Join(s.name, " ") }

// parser walks a flat token stream; line tracks the 1-based source line
// of the token most recently returned by next()/peekLine.
type parser struct {
	toks []token
	pos  int
}

type token struct {
	text string
	line int
}

func tokenizeLines(block string) []token {
	var toks []token
	for i, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, f := range strings.Fields(line) {
			toks = append(toks, token{text: f, line: i + 1})
		}
	}
	return toks
}

func (p *parser) more() bool { return p.pos < len(p.toks) }

func (p *parser) line() int {
	if p.pos < len(p.toks) {
		return p.toks[p.pos].line
	}
	return 0
}

func (p *parser) next() string {
	if !p.more() {
		return ""
	}
	t := p.toks[p.pos]
	p.pos++
	return t.text
}

// peekLower returns the lowercased token at offset without consuming it.
func (p *parser) peekLower(offset int) (string, bool) {
	i := p.pos + offset
	if i >= len(p.toks) {
		return "", false
	}
	return strings.ToLower(p.toks[i].text), true
}

// match tries each spec (longest name first, since specs is pre-sorted)
// against the upcoming tokens, consuming and returning the first hit.
func (p *parser) match(specs []optionSpec) (optionSpec, bool) {
	for _, s := range specs {
		if p.matches(s.name) {
			p.pos += len(s.name)
			return s, true
		}
	}
	return optionSpec{}, false
}

func (p *parser) matches(name []string) bool {
	for i, want := range name {
		got, ok := p.peekLower(i)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// restOfLine collects tokens until the line number changes or input ends
// — used for free-form arguments like an exec command or a glob pattern
// that itself might be split across option-parsing only by newline.
func (p *parser) restOfLine() string {
	if !p.more() {
		return ""
	}
	line := p.line()
	var parts []string
	for p.more() && p.line() == line {
		parts = append(parts, p.next())
	}
	return strings.Join(parts, " ")
}

// peekIsNumber reports whether the next token parses as an integer,
// without consuming it. Used for optional numeric arguments.
func (p *parser) peekIsNumber() bool {
	s, ok := p.peekLower(0)
	if !ok {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func (e *DirectoryEntry) warn(line int, option, detail string) {
	e.Warnings = append(e.Warnings, ParseWarning{Alias: e.Alias, Line: line, Option: option, Detail: detail})
	afdlog.Warnf(e.Alias, "line %d: %s: %s", line, option, detail)
}

// parseHours parses an optional integer-hours argument, returning
// (value, consumed). A missing or non-numeric argument leaves the
// default untouched — overlong values keep the default and are warned
// about by the caller.
func parseHours(p *parser) (time.Duration, bool) {
	if !p.peekIsNumber() {
		return 0, false
	}
	n, err := strconv.ParseInt(p.next(), 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Hour, true
}

func parseInt(p *parser, dflt int) int {
	if !p.peekIsNumber() {
		return dflt
	}
	n, err := strconv.Atoi(p.next())
	if err != nil {
		return dflt
	}
	return n
}

func parseInt64(p *parser, dflt int64) int64 {
	if !p.peekIsNumber() {
		return dflt
	}
	n, err := strconv.ParseInt(p.next(), 10, 64)
	if err != nil {
		return dflt
	}
	return n
}

// backfillOldFileTime fills any *_file_time field still at its zero
// sentinel with OldFileTime, as a final pass after the whole block has
// been parsed — `old file time` may appear before or after the specific
// delete options, grounded on original_source/src/amg/eval_dir_options.c.
func backfillOldFileTime(e *DirectoryEntry) {
	if e.OldFileTime == 0 {
		return
	}
	if e.UnknownFileTime == 0 {
		e.UnknownFileTime = e.OldFileTime
	}
	if e.QueuedFileTime == 0 {
		e.QueuedFileTime = e.OldFileTime
	}
	if e.LockedFileTime == 0 {
		e.LockedFileTime = e.OldFileTime
	}
}

func parseSign(tok string) (rest string, eq, lt, gt bool) {
	switch {
	case strings.HasPrefix(tok, "="):
		return tok[1:], true, false, false
	case strings.HasPrefix(tok, "<"):
		return tok[1:], false, true, false
	case strings.HasPrefix(tok, ">"):
		return tok[1:], false, false, true
	default:
		return tok, false, false, false
	}
}

var specs = buildSpecs()

func buildSpecs() []optionSpec {
	s := []optionSpec{
		{[]string{"do", "not", "delete", "unknown", "files"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.DeleteFlags &^= DeleteUnknown
		}},
		{[]string{"delete", "unknown", "files"}, func(p *parser, e *DirectoryEntry, _ int) {
			if h, ok := parseHours(p); ok {
				if h < 0 {
					e.UnknownFileTime = -1 // never by age
				} else {
					e.UnknownFileTime = h
				}
			}
			e.DeleteFlags |= DeleteUnknown
		}},
		{[]string{"delete", "queued", "files"}, func(p *parser, e *DirectoryEntry, _ int) {
			if h, ok := parseHours(p); ok {
				e.QueuedFileTime = h
			}
			e.DeleteFlags |= DeleteQueued
		}},
		{[]string{"delete", "old", "locked", "files"}, func(p *parser, e *DirectoryEntry, line int) {
			h, ok := parseHours(p)
			if !ok {
				e.warn(line, "delete old locked files", "hours required, option dropped")
				return
			}
			e.LockedFileTime = h
			e.DeleteFlags |= DeleteOldLocked
		}},
		{[]string{"report", "unknown", "files"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.ReportUnknown = true
		}},
		{[]string{"do", "not", "report", "unknown", "files"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.ReportUnknown = false
		}},
		{[]string{"old", "file", "time"}, func(p *parser, e *DirectoryEntry, line int) {
			h, ok := parseHours(p)
			if !ok {
				e.warn(line, "old file time", "hours required, option dropped")
				return
			}
			e.OldFileTime = h
		}},
		{[]string{"end", "character"}, func(p *parser, e *DirectoryEntry, line int) {
			n := parseInt(p, -1)
			if n < 0 {
				e.warn(line, "end character", "decimal value required, kept default")
				return
			}
			e.EndCharacter = n
		}},
		{[]string{"priority"}, func(p *parser, e *DirectoryEntry, line int) {
			tok, ok := p.peekLower(0)
			if !ok || len(tok) != 1 || tok[0] < '0' || tok[0] > '9' {
				e.warn(line, "priority", "expected single digit '0'..'9', kept default")
				return
			}
			p.next()
			e.Policy.Priority = tok[0]
		}},
		{[]string{"max", "process"}, func(p *parser, e *DirectoryEntry, _ int) { e.MaxProcess = parseInt(p, e.MaxProcess) }},
		{[]string{"max", "errors"}, func(p *parser, e *DirectoryEntry, _ int) { e.MaxErrors = parseInt(p, e.MaxErrors) }},
		{[]string{"max", "files"}, func(p *parser, e *DirectoryEntry, _ int) { e.MaxFiles = parseInt(p, e.MaxFiles) }},
		{[]string{"max", "size"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.MaxSize = parseInt64(p, e.MaxSize)
		}},
		{[]string{"time"}, func(p *parser, e *DirectoryEntry, line int) {
			raw := p.restOfLine()
			ce, err := ParseCalendar(raw)
			if err != nil {
				e.warn(line, "time", "invalid calendar spec %q: "+err.Error())
				return
			}
			if len(e.TimeEntry) >= MaxFRATimeEntries {
				e.warn(line, "time", "MAX_FRA_TIME_ENTRIES exceeded, entry dropped")
				return
			}
			e.TimeEntry = append(e.TimeEntry, ce)
		}},
		{[]string{"keep", "connected"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.KeepConnected = time.Duration(parseInt(p, 0)) * time.Second
		}},
		{[]string{"create", "source", "dir"}, func(p *parser, e *DirectoryEntry, line int) {
			e.CreateSourceDir.Enabled = true
			if tok, ok := p.peekLower(0); ok && len(tok) >= 3 && len(tok) <= 4 && isOctal(tok) {
				p.next()
				mode, err := strconv.ParseUint(tok, 8, 32)
				if err != nil {
					e.warn(line, "create source dir", "invalid octal mode, using default 0755")
					e.CreateSourceDir.Mode = 0755
					return
				}
				e.CreateSourceDir.Mode = uint32(mode)
			} else {
				e.CreateSourceDir.Mode = 0755
			}
		}},
		{[]string{"do", "not", "create", "source", "dir"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.CreateSourceDir.Enabled = false
		}},
		{[]string{"do", "not", "get", "dir", "list"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.DoNotGetDirList = true
		}},
		{[]string{"do", "not", "remove"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.DoNotRemove = true
		}},
		{[]string{"store", "retrieve", "list", "once"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.StoreRetrieveList = true
			e.Policy.StoreRetrieveOnce = true
		}},
		{[]string{"store", "retrieve", "list"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.StoreRetrieveList = true
		}},
		{[]string{"force", "reread"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.ForceReread = true
		}},
		{[]string{"wait", "for"}, func(p *parser, e *DirectoryEntry, line int) {
			tok, ok := p.peekLower(0)
			if !ok {
				e.warn(line, "wait for", "missing name or pattern, option dropped")
				return
			}
			e.WaitForFilename = p.next()
			_ = tok
		}},
		{[]string{"accumulate", "size"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.AccumulateSize = parseInt64(p, e.AccumulateSize)
		}},
		{[]string{"accumulate"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Accumulate = parseInt(p, e.Accumulate)
		}},
		{[]string{"do", "not", "parallelize"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.DoNotParallelize = true
		}},
		{[]string{"dupcheck"}, func(p *parser, e *DirectoryEntry, line int) {
			e.DupCheck = parseDupCheck(p, e, line)
		}},
		{[]string{"accept", "dot", "files"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.AcceptDotFiles = true
		}},
		{[]string{"inotify"}, func(p *parser, e *DirectoryEntry, line int) {
			n := parseInt(p, -1)
			if n < 0 {
				e.warn(line, "inotify", "bitmask required, kept default")
				return
			}
			mask := InotifyFlag(n)
			if mask&^ValidInotifyMask != 0 {
				e.warn(line, "inotify", "invalid bitmask, reset to default")
				e.Inotify = 0
				return
			}
			e.Inotify = mask
		}},
		{[]string{"ignore", "size"}, func(p *parser, e *DirectoryEntry, line int) {
			tok, ok := p.peekLower(0)
			if !ok {
				e.warn(line, "ignore size", "missing size, option dropped")
				return
			}
			p.next()
			rest, eq, lt, gt := parseSign(tok)
			n, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				e.warn(line, "ignore size", "invalid size, option dropped")
				return
			}
			e.IgnoreSize = n
			if eq {
				e.IgnoreSizeSign |= SizeEqual
			}
			if lt {
				e.IgnoreSizeSign |= SizeLess
			}
			if gt {
				e.IgnoreSizeSign |= SizeGreater
			}
			if !eq && !lt && !gt {
				e.IgnoreSizeSign |= SizeEqual
			}
		}},
		{[]string{"ignore", "file", "time"}, func(p *parser, e *DirectoryEntry, line int) {
			tok, ok := p.peekLower(0)
			if !ok {
				e.warn(line, "ignore file time", "missing seconds, option dropped")
				return
			}
			p.next()
			rest, eq, lt, gt := parseSign(tok)
			n, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				e.warn(line, "ignore file time", "invalid seconds, option dropped")
				return
			}
			e.IgnoreFileTime = time.Duration(n) * time.Second
			if eq {
				e.IgnoreTimeSign |= TimeEqual
			}
			if lt {
				e.IgnoreTimeSign |= TimeLess
			}
			if gt {
				e.IgnoreTimeSign |= TimeGreater
			}
			if !eq && !lt && !gt {
				e.IgnoreTimeSign |= TimeEqual
			}
		}},
		{[]string{"important", "dir"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.Policy.Important = true
		}},
		{[]string{"info", "time"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.InfoTime = time.Duration(parseInt(p, 0)) * time.Second
		}},
		{[]string{"warn", "time"}, func(p *parser, e *DirectoryEntry, _ int) {
			e.WarnTime = time.Duration(parseInt(p, 0)) * time.Second
		}},
	}
	// Longest option name first so e.g. "do not delete unknown files"
	// wins over "delete unknown files" when both prefixes are present.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && len(s[j].name) > len(s[j-1].name); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
	return s
}

func isOctal(s string) bool {
	for _, c := range s {
		if c < '0' || c > '7' {
			return false
		}
	}
	return len(s) > 0
}
