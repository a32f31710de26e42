// Package pattern resolves file paths against the glob patterns carried
// by spec and rule entries. Compiled patterns are memoized, so matching
// is O(patterns) regexp probes per path, which is fine for indexes in
// the hundreds to low thousands of entries but should be revisited
// before reuse at larger scale.
package pattern

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/coordkit/manifest/internal/manifest"
)

var logger = log.New(os.Stderr, "[pattern] ", log.LstdFlags)

// cache memoizes glob compilation. A nil entry marks a malformed
// pattern that has already been warned about.
var (
	cacheMu sync.Mutex
	cache   = make(map[string]*regexp.Regexp)
)

// SetLogger replaces the package logger. Passing nil restores the
// stderr default.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(os.Stderr, "[pattern] ", log.LstdFlags)
	}
	logger = l
}

// Matches reports whether path matches the glob pattern.
//
// Supported syntax: `*` matches any run of characters within a path
// segment, `**` matches any run of segments, `?` matches a single
// character, and `[...]` character classes (with `[!...]` negation).
// A malformed pattern never matches and is logged once.
func Matches(path, pattern string) bool {
	re := compiled(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(path)
}

// compiled returns the cached regexp for pattern, compiling on first
// use. Malformed patterns are cached as nil after a single warning.
func compiled(pattern string) *regexp.Regexp {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	re, ok := cache[pattern]
	if ok {
		return re
	}
	re, err := compile(pattern)
	if err != nil {
		logger.Printf("WARNING: malformed pattern %q: %v", pattern, err)
		re = nil
	}
	cache[pattern] = re
	return re
}

// GoverningSpecs returns the sorted ids of every spec whose
// affectedFiles patterns match path.
func GoverningSpecs(path string, specs map[string]*manifest.SpecEntry) []string {
	var ids []string
	for id, spec := range specs {
		for _, p := range spec.AffectedFiles {
			if Matches(path, p) {
				ids = append(ids, id)
				break
			}
		}
	}
	slices.Sort(ids)
	return ids
}

// ApplicableRules returns the sorted names of every rule whose
// appliesTo.filePatterns match path.
func ApplicableRules(path string, rules map[string]*manifest.RuleEntry) []string {
	var names []string
	for name, rule := range rules {
		for _, p := range rule.AppliesTo.FilePatterns {
			if Matches(path, p) {
				names = append(names, name)
				break
			}
		}
	}
	slices.Sort(names)
	return names
}

// compile translates a glob pattern to an anchored regexp.
func compile(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// "**/" matches zero or more whole segments
					b.WriteString("(?:[^/]+/)*")
					i += 3
				} else {
					b.WriteString(".*")
					i += 2
				}
			} else {
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			if j < len(pattern) && (pattern[j] == '!' || pattern[j] == '^') {
				j++
			}
			// a leading ] is literal inside a class
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				return nil, fmt.Errorf("unterminated character class")
			}
			class := pattern[i : j+1]
			if strings.HasPrefix(class, "[!") {
				class = "[^" + class[2:]
			}
			b.WriteString(class)
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}
