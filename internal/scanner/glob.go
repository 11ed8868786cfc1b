package scanner

import (
	"github.com/afd-project/afd/internal/dirconfig"
	"github.com/bmatcuk/doublestar/v4"
)

// MatchGroups walks groups (and within each group, its FileMaskEntries,
// and within each entry, its patterns) in order. The first pattern that
// matches name wins — if it is a negative
// ("not-this-one") pattern the file is dropped outright regardless of
// any later group/entry/pattern; otherwise the file binds to every
// destination position the winning entry names, and no further
// group/entry/pattern is consulted.
func MatchGroups(groups []dirconfig.FileMaskGroup, name string) (group *dirconfig.FileMaskGroup, destPos []int, matched bool) {
	for gi := range groups {
		g := &groups[gi]
		for _, entry := range g.Masks {
			for _, pat := range entry.Patterns {
				ok, err := doublestar.Match(pat.Pattern, name)
				if err != nil || !ok {
					continue
				}
				if pat.Negative {
					return nil, nil, false
				}
				return g, entry.DestPos, true
			}
		}
	}
	return nil, nil, false
}
