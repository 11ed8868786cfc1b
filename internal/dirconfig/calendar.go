package dirconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CalendarEntry is a compiled time_entry: a 5-field cron-like calendar
// expression (minute hour day-of-month month day-of-week), each field a
// bitset of the legal values for that field, as used by the "time"
// directory option.
type CalendarEntry struct {
	Minute     [60]bool
	Hour       [24]bool
	DayOfMonth [32]bool // 1..31
	Month      [13]bool // 1..12
	DayOfWeek  [7]bool  // 0=Sunday
	raw        string
}

func (c CalendarEntry) String() string { return c.raw }

// ParseCalendar parses a 5-field whitespace-separated calendar
// expression. Each field accepts "*", a single value, a comma list, a
// range "a-b", or a stepped range "*/n" / "a-b/n", matching common cron
// grammar (the original format predates POSIX cron; this parser
// intentionally generalizes to it so reload and calendar matching can
// share one representation).
func ParseCalendar(raw string) (CalendarEntry, error) {
	fields := strings.Fields(raw)
	if len(fields) != 5 {
		return CalendarEntry{}, fmt.Errorf("expected 5 fields (min hour dom month dow), got %d", len(fields))
	}
	var ce CalendarEntry
	ce.raw = raw
	if err := fillField(fields[0], 0, 59, ce.Minute[:]); err != nil {
		return ce, fmt.Errorf("minute: %w", err)
	}
	if err := fillField(fields[1], 0, 23, ce.Hour[:]); err != nil {
		return ce, fmt.Errorf("hour: %w", err)
	}
	if err := fillField(fields[2], 1, 31, ce.DayOfMonth[:]); err != nil {
		return ce, fmt.Errorf("day-of-month: %w", err)
	}
	if err := fillField(fields[3], 1, 12, ce.Month[:]); err != nil {
		return ce, fmt.Errorf("month: %w", err)
	}
	if err := fillField(fields[4], 0, 6, ce.DayOfWeek[:]); err != nil {
		return ce, fmt.Errorf("day-of-week: %w", err)
	}
	return ce, nil
}

func fillField(spec string, lo, hi int, bits []bool) error {
	for _, part := range strings.Split(spec, ",") {
		step := 1
		base := part
		if i := strings.IndexByte(part, '/'); i >= 0 {
			base = part[:i]
			n, err := strconv.Atoi(part[i+1:])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid step in %q", part)
			}
			step = n
		}
		var start, end int
		switch {
		case base == "*":
			start, end = lo, hi
		case strings.Contains(base, "-"):
			rangeParts := strings.SplitN(base, "-", 2)
			a, err1 := strconv.Atoi(rangeParts[0])
			b, err2 := strconv.Atoi(rangeParts[1])
			if err1 != nil || err2 != nil {
				return fmt.Errorf("invalid range %q", base)
			}
			start, end = a, b
		default:
			n, err := strconv.Atoi(base)
			if err != nil {
				return fmt.Errorf("invalid value %q", base)
			}
			start, end = n, n
		}
		if start < lo || end > hi || start > end {
			return fmt.Errorf("value out of range [%d,%d]: %q", lo, hi, part)
		}
		for v := start; v <= end; v += step {
			bits[v] = true
		}
	}
	return nil
}

// Matches reports whether t falls inside this calendar entry's window,
// combining day-of-month and day-of-week with OR (standard cron
// semantics when both are restricted).
func (c CalendarEntry) Matches(t time.Time) bool {
	return c.Minute[t.Minute()] &&
		c.Hour[t.Hour()] &&
		c.Month[int(t.Month())] &&
		(c.DayOfMonth[t.Day()] || c.DayOfWeek[int(t.Weekday())])
}

// NextAfter returns the earliest instant strictly after `after` at which
// any of entries matches, scanning minute-by-minute up to two years out.
// It backs recomputing a directory's next_start_time from its time
// calendar entries. A zero time and false are returned if no entry
// ever matches (empty entries list).
func NextAfter(entries []CalendarEntry, after time.Time) (time.Time, bool) {
	if len(entries) == 0 {
		return time.Time{}, false
	}
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.AddDate(2, 0, 0)
	for t.Before(limit) {
		for _, ce := range entries {
			if ce.Matches(t) {
				return t, true
			}
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, false
}
