// Package blacklist implements a versioned, hot-swappable URL filter: a
// set of regular expressions that, if any matches a URL, excludes it from
// crawling.
package blacklist

import (
	"fmt"
	"regexp"
)

// List is an immutable snapshot of blacklist patterns. The zero List
// matches nothing, mirroring EmptyBlackList.
type List struct {
	version  uint64
	hasVers  bool
	patterns []*regexp.Regexp
}

// Empty returns a List that never matches, optionally tagged with version.
func Empty(version uint64) List {
	return List{version: version, hasVers: true}
}

// New compiles patterns into a List tagged with version. An empty patterns
// slice behaves like Empty.
func New(version uint64, patterns []string) (List, error) {
	if len(patterns) == 0 {
		return Empty(version), nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return List{}, fmt.Errorf("context: compiling blacklist pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return List{version: version, hasVers: true, patterns: compiled}, nil
}

// Version returns the list's version number and whether it was ever set
// (an unversioned List, e.g. one built directly from a single pattern via
// FromPattern, returns ok=false).
func (l List) Version() (uint64, bool) {
	return l.version, l.hasVers
}

// FromPattern compiles a single unversioned pattern, useful for ad-hoc
// filters not backed by a manager.
func FromPattern(pattern string) (List, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return List{}, fmt.Errorf("context: compiling blacklist pattern %q: %w", pattern, err)
	}
	return List{patterns: []*regexp.Regexp{re}}, nil
}

// HasMatchFor reports whether any pattern in the list matches target.
func (l List) HasMatchFor(target string) bool {
	for _, re := range l.patterns {
		if re.MatchString(target) {
			return true
		}
	}
	return false
}
